// Command opcon is the operational combat simulation CLI.
package main

import (
	"os"

	"github.com/roach88/opcon/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
