package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/opcon/internal/c4i"
	"github.com/roach88/opcon/internal/config"
	"github.com/roach88/opcon/internal/harness"
	"github.com/roach88/opcon/internal/store"
	"github.com/roach88/opcon/internal/toem"
	"github.com/roach88/opcon/internal/unit"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	RunName  string
}

// RunSummary is the result of one scenario run.
type RunSummary struct {
	Scenario    string              `json:"scenario"`
	Run         string              `json:"run,omitempty"`
	Pass        bool                `json:"pass"`
	SimTime     time.Time           `json:"sim_time"`
	Executed    int                 `json:"executed"`
	Pending     int                 `json:"pending"`
	Resolutions int                 `json:"resolutions"`
	EventErrors []string            `json:"event_errors,omitempty"`
	Errors      []string            `json:"errors,omitempty"`
	Units       []harness.UnitState `json:"units"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario through the scheduler",
		Long: `Load a scenario, run its world to run_until and report the final state.

With a database (--db or OPCON_DB) the pending schedule is saved under the
run name and every resolution is appended to the resolution log. The run
name defaults to the scenario name.

Exit codes:
  0 - Scenario ran and its assertions passed
  1 - One or more assertions failed
  2 - Command error (bad scenario, database unavailable)

Examples:
  opcon run ./scenarios/ambush.yaml
  opcon run --db ./opcon.db --run ambush-1 ./scenarios/ambush.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RunName, "run", "", "name to save the run under")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, logger, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.DB = opts.Database
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	applySeed(cfg, scenario)

	runName := opts.RunName
	if runName == "" {
		runName = scenario.Name
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	var (
		st      *store.Store
		logErr  error
		resolns int
	)
	if cfg.DB != "" {
		logger.Info("opening database", "path", cfg.DB)
		st, err = store.Open(cfg.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	hook := func(at time.Time, u *unit.Unit, res toem.Result) {
		resolns++
		logger.Debug("resolution", "unit", u.ID, "label", res.Label, "increment", res.Increment)
		if st == nil || logErr != nil {
			return
		}
		if _, err := st.LogResolution(ctx, runName, at, u.ID, res); err != nil {
			logErr = err
		}
	}

	h, err := harness.New(scenario, harnessOptions(cfg, logger, hook)...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build scenario", err)
	}

	logger.Info("running scenario", "scenario", scenario.Name, "until", scenario.RunUntil)
	result, err := h.Execute(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitCommandError, "interrupted", err)
		}
		return WrapExitError(ExitCommandError, "scenario aborted", err)
	}
	if logErr != nil {
		return WrapExitError(ExitCommandError, "failed to log resolution", logErr)
	}

	world := h.World()
	summary := RunSummary{
		Scenario:    scenario.Name,
		Pass:        result.Pass,
		SimTime:     world.Now(),
		Executed:    len(result.Trace),
		Pending:     len(world.Pending()),
		Resolutions: resolns,
		Errors:      result.Errors,
		Units:       result.Units,
	}
	for _, ev := range result.EventErrors() {
		summary.EventErrors = append(summary.EventErrors, fmt.Sprintf("%s: %s", ev.Name(), ev.Error))
	}

	if st != nil {
		if err := world.Save(ctx, st, runName); err != nil {
			return WrapExitError(ExitCommandError, "failed to save schedule", err)
		}
		summary.Run = runName
		logger.Info("schedule saved", "run", runName, "pending", summary.Pending)
	}

	if err := opts.formatter(cmd).Render(summary, func(w io.Writer) error {
		return writeRunSummary(w, summary)
	}); err != nil {
		return err
	}
	if !summary.Pass {
		return reportedFailure(fmt.Sprintf("%d assertion(s) failed", len(summary.Errors)))
	}
	return nil
}

// applySeed lets a configured seed replace the scenario's, unless the
// scenario scripts its variates.
func applySeed(cfg *config.Config, s *harness.Scenario) {
	if cfg.Seed != nil && len(s.Variates) == 0 {
		s.Seed = *cfg.Seed
	}
}

func harnessOptions(cfg *config.Config, logger *slog.Logger, hook func(time.Time, *unit.Unit, toem.Result)) []harness.Option {
	opts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithMaxEventsPerBucket(cfg.MaxEventsPerBucket),
		harness.WithFacadeOptions(c4i.WithCap(cfg.HumanFactorCap), c4i.WithInRange(cfg.CommInRange)),
	}
	if hook != nil {
		opts = append(opts, harness.WithResolveHook(hook))
	}
	return opts
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func writeRunSummary(w io.Writer, s RunSummary) error {
	mark := "✓"
	if !s.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, s.Scenario)
	fmt.Fprintf(w, "  sim time:    %s\n", s.SimTime.Format(time.RFC3339))
	fmt.Fprintf(w, "  executed:    %d\n", s.Executed)
	fmt.Fprintf(w, "  pending:     %d\n", s.Pending)
	fmt.Fprintf(w, "  resolutions: %d\n", s.Resolutions)
	if s.Run != "" {
		fmt.Fprintf(w, "  saved as:    %s\n", s.Run)
	}
	for _, e := range s.EventErrors {
		fmt.Fprintf(w, "  event error: %s\n", e)
	}
	for _, u := range s.Units {
		fmt.Fprintf(w, "  %-12s %-16s morale %d fatigue %d suppression %d\n",
			u.UID, u.Stance, u.Morale, u.Fatigue, u.Suppression)
	}
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}
