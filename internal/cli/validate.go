package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opcon/internal/catalogue"
	"github.com/roach88/opcon/internal/harness"
)

// ValidationIssue is one file that failed to validate.
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Checked int               `json:"checked"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate scenarios and template catalogues",
		Long: `Check scenarios and catalogues without running anything.

A directory containing .cue files is loaded as a CUE catalogue. A YAML
file with a top-level "templates" key and no "name" is a YAML catalogue.
Any other YAML file is a scenario; it is built into a world, so unknown
templates, parents and methods are reported.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	result := ValidationResult{Valid: true}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "path not found", err)
		}
		result.Checked++
		formatter.VerboseLog("Validating %s", path)
		if err := validatePath(path, info.IsDir()); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationIssue{Path: path, Message: err.Error()})
		}
	}

	if err := formatter.Render(result, func(w io.Writer) error {
		for _, e := range result.Errors {
			fmt.Fprintf(w, "✗ %s\n  %s\n", e.Path, e.Message)
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ %d file(s) valid\n", result.Checked)
		}
		return nil
	}); err != nil {
		return err
	}
	if !result.Valid {
		return reportedFailure(fmt.Sprintf("%d of %d invalid", len(result.Errors), result.Checked))
	}
	return nil
}

func validatePath(path string, isDir bool) error {
	if isDir {
		_, err := catalogue.LoadCUE(path)
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isCatalogueYAML(data) {
		_, err := catalogue.LoadYAML(path)
		return err
	}
	s, err := harness.LoadScenario(path)
	if err != nil {
		return err
	}
	_, err = harness.New(s)
	return err
}

// isCatalogueYAML reports whether a YAML document looks like a template
// catalogue rather than a scenario.
func isCatalogueYAML(data []byte) bool {
	var hasName, hasTemplates bool
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "name:"):
			hasName = true
		case strings.HasPrefix(line, "templates:"):
			hasTemplates = true
		}
	}
	return hasTemplates && !hasName
}
