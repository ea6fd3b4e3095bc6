package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/opcon/internal/c4i"
	"github.com/roach88/opcon/internal/harness"
	"github.com/roach88/opcon/internal/unit"
)

// SitrepOptions holds flags for the sitrep command.
type SitrepOptions struct {
	*RootOptions
	Unit    string
	Initial bool
}

// NewSitrepCommand creates the sitrep command.
func NewSitrepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SitrepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sitrep <scenario.yaml>",
		Short: "Print C4I situation reports for a scenario",
		Long: `Run a scenario and print a situation report for each unit: deployment,
human factor and command levels with their colour bands.

--initial reports the state before any event runs.

Examples:
  opcon sitrep ./scenarios/ambush.yaml
  opcon sitrep ./scenarios/ambush.yaml --unit b-coy --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSitrep(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Unit, "unit", "", "report only this unit uid")
	cmd.Flags().BoolVar(&opts.Initial, "initial", false, "report before running the scenario")

	return cmd
}

func runSitrep(opts *SitrepOptions, path string, cmd *cobra.Command) error {
	cfg, logger, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	applySeed(cfg, scenario)

	h, err := harness.New(scenario, harnessOptions(cfg, logger, nil)...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build scenario", err)
	}
	if !opts.Initial {
		ctx, cancel := signalContext(cmd)
		defer cancel()
		if _, err := h.Execute(ctx); err != nil {
			return WrapExitError(ExitCommandError, "scenario aborted", err)
		}
	}

	var units []*unit.Unit
	if opts.Unit != "" {
		u, ok := h.World().Unit(opts.Unit)
		if !ok {
			return WrapExitError(ExitCommandError, "no such unit", fmt.Errorf("%w: %s", unit.ErrUnknownUnit, opts.Unit))
		}
		units = []*unit.Unit{u}
	} else {
		units = h.World().Units()
	}

	reports := make([]c4i.Report, 0, len(units))
	for _, u := range units {
		reports = append(reports, h.Facade().SituationReport(u))
	}

	return opts.formatter(cmd).Render(reports, func(w io.Writer) error {
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprint(w, r.String())
		}
		return nil
	})
}
