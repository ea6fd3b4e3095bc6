package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/opcon/internal/config"
	"github.com/roach88/opcon/internal/store"
	"github.com/roach88/opcon/internal/unit"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // optional YAML config file
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the opcon CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors go to stderr, or to stdout as an error envelope under
// --format json. A failing command that already wrote its JSON result
// (test, validate, run) is not reported twice.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	code := GetExitCode(err)

	var exitErr *ExitError
	reported := errors.As(err, &exitErr) && exitErr.Reported
	if opts.Format == "json" {
		if !reported {
			f := &OutputFormatter{Format: opts.Format, Writer: stdout}
			f.Error(errorCode(err), err.Error(), nil)
		}
		return code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return code
}

// errorCode names err for the JSON envelope.
func errorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		return "E_RUN_NOT_FOUND"
	case errors.Is(err, unit.ErrUnknownUnit):
		return "E_UNKNOWN_UNIT"
	default:
		return "E_COMMAND"
	}
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "opcon",
		Short: "opcon - operational combat simulation",
		Long: `opcon resolves combat actions with the Theory of Evidence Model and
runs scripted scenarios through a discrete-event scheduler.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file")

	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSitrepCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd, opts
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads the config file and environment, and builds the
// logger for cmd. --verbose forces debug level.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.NewLogger(cmd.ErrOrStderr()), nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
