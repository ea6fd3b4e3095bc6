package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/opcon/internal/ir"
	"github.com/roach88/opcon/internal/schedule"
	"github.com/roach88/opcon/internal/store"
)

// ScheduleOptions holds flags shared by the schedule subcommands.
type ScheduleOptions struct {
	*RootOptions
	Database string
	Parent   string
}

// EventView is the printable form of a stored schedule record.
type EventView struct {
	At     time.Time   `json:"at"`
	Seq    int         `json:"seq"`
	Kind   string      `json:"kind"`
	Parent string      `json:"parent"`
	Method string      `json:"method,omitempty"`
	Args   ir.IRArray  `json:"args,omitempty"`
	Kwargs ir.IRObject `json:"kwargs,omitempty"`
	Tag    string      `json:"tag,omitempty"`
	Data   ir.IRValue  `json:"data,omitempty"`
}

// ScheduleDump is a saved run with its pending events.
type ScheduleDump struct {
	Run    store.Run   `json:"run"`
	Events []EventView `json:"events"`
}

// NewScheduleCommand creates the schedule command group.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect saved runs",
		Long: `Inspect the schedules and resolution logs saved by "opcon run --db".

The database comes from --db, or the configured db path.

Examples:
  opcon schedule list --db ./opcon.db
  opcon schedule show ambush --db ./opcon.db --parent b-coy
  opcon schedule resolutions ambush --db ./opcon.db
  opcon schedule rm ambush --db ./opcon.db`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List saved runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(opts, cmd)
		},
	}

	show := &cobra.Command{
		Use:           "show <run>",
		Short:         "Print a run's pending events in execution order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRun(opts, args[0], cmd)
		},
	}
	show.Flags().StringVar(&opts.Parent, "parent", "", "only events of this parent uid")

	resolutions := &cobra.Command{
		Use:           "resolutions <run>",
		Short:         "Print a run's resolution log",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showResolutions(opts, args[0], cmd)
		},
	}

	rm := &cobra.Command{
		Use:           "rm <run>",
		Short:         "Delete a saved run",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return removeRun(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(list, show, resolutions, rm)
	return cmd
}

// openStore resolves the database path and opens it. The caller closes
// the store.
func (o *ScheduleOptions) openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, logger, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path := o.Database
	if path == "" {
		path = cfg.DB
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set OPCON_DB")
	}
	logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func listRuns(opts *ScheduleOptions, cmd *cobra.Command) error {
	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return opts.formatter(cmd).Render(runs, func(w io.Writer) error {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No saved runs.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%-20s %s  %d event(s)\n", r.Name, r.SimTime.Format(time.RFC3339), r.EventCount)
		}
		return nil
	})
}

func showRun(opts *ScheduleOptions, run string, cmd *cobra.Command) error {
	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	info, err := st.GetRun(ctx, run)
	if err != nil {
		return storeError(err)
	}

	var records []schedule.Record
	if opts.Parent != "" {
		records, err = st.EventsForParent(ctx, run, opts.Parent)
	} else {
		_, records, err = st.LoadSchedule(ctx, run)
	}
	if err != nil {
		return storeError(err)
	}

	dump := ScheduleDump{Run: info, Events: make([]EventView, 0, len(records))}
	for _, r := range records {
		dump.Events = append(dump.Events, EventView{
			At:     r.At,
			Seq:    r.Seq,
			Kind:   r.Kind.String(),
			Parent: r.ParentID,
			Method: r.Method,
			Args:   r.Args,
			Kwargs: r.Kwargs,
			Tag:    r.Tag,
			Data:   r.Data,
		})
	}

	return opts.formatter(cmd).Render(dump, func(w io.Writer) error {
		fmt.Fprintf(w, "Run %s at %s (%d pending)\n", info.Name, info.SimTime.Format(time.RFC3339), info.EventCount)
		for _, ev := range dump.Events {
			fmt.Fprintf(w, "  %s #%d %s\n", ev.At.Format(time.RFC3339), ev.Seq, describeEvent(ev))
		}
		return nil
	})
}

func describeEvent(ev EventView) string {
	if ev.Kind == schedule.KindMemo.String() {
		return fmt.Sprintf("memo %s#%s", ev.Parent, ev.Tag)
	}
	var parts []string
	for _, a := range ev.Args {
		parts = append(parts, fmt.Sprint(a))
	}
	for _, k := range ev.Kwargs.SortedKeys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ev.Kwargs[k]))
	}
	return fmt.Sprintf("call %s.%s(%s)", ev.Parent, ev.Method, strings.Join(parts, ", "))
}

func showResolutions(opts *ScheduleOptions, run string, cmd *cobra.Command) error {
	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.Resolutions(cmd.Context(), run)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read resolutions", err)
	}
	if rows == nil {
		rows = []store.Resolution{}
	}
	return opts.formatter(cmd).Render(rows, func(w io.Writer) error {
		if len(rows) == 0 {
			fmt.Fprintf(w, "No resolutions logged for %s.\n", run)
			return nil
		}
		for _, r := range rows {
			verdict := "fail"
			if r.Result.Success {
				verdict = "ok"
			}
			fmt.Fprintf(w, "%s %-10s %-14s %-4s p0 %d inc %+d",
				r.SimTime.Format(time.RFC3339), r.UnitID, r.Result.Label, verdict, r.Result.P0, r.Result.Increment)
			if len(r.Result.Blame) > 0 {
				fmt.Fprintf(w, " blame: %s", strings.Join(r.Result.Blame, ", "))
			}
			fmt.Fprintln(w)
		}
		return nil
	})
}

func removeRun(opts *ScheduleOptions, run string, cmd *cobra.Command) error {
	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteRun(cmd.Context(), run); err != nil {
		return storeError(err)
	}
	return opts.formatter(cmd).Success(fmt.Sprintf("Deleted run %s", run))
}

// storeError maps store failures to exit codes. A tampered schedule is a
// failure of the data, not of the command.
func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		return WrapExitError(ExitCommandError, "run not found", err)
	case errors.Is(err, store.ErrCorrupt):
		return WrapExitError(ExitFailure, "schedule integrity check failed", err)
	default:
		return WrapExitError(ExitCommandError, "failed to read schedule", err)
	}
}
