package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opcon/internal/toem"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Outcome  string
	BaseProb string
	Skill    string
	Pros     []string
	Cons     []string
	Variate  float64
	Seed     uint64
	List     bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <label>",
		Short: "Resolve a single TOEM argument",
		Long: `Build an argument from lexicon phrases, resolve it once and print the
outcome, the exponent walk and the blamed items.

The variate comes from --variate when given, otherwise from a PCG source
seeded by --seed (or the configured seed).

Examples:
  opcon resolve attack --skill regular --con "under fire" --variate 0.51
  opcon resolve "cross river" --base-prob unlikely --pro supported --seed 7
  opcon resolve --list`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.List {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.List {
				return listConcepts(opts, cmd)
			}
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "descriptive outcome label")
	cmd.Flags().StringVar(&opts.BaseProb, "base-prob", "neutral", "base probability phrase")
	cmd.Flags().StringVar(&opts.Skill, "skill", "", "skill level phrase")
	cmd.Flags().StringArrayVar(&opts.Pros, "pro", nil, "modifier in favour (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Cons, "con", nil, "modifier against (repeatable)")
	cmd.Flags().Float64Var(&opts.Variate, "variate", 0, "uniform variate in [0, 1)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "seed for the uniform source")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list lexicon phrases and exit")

	return cmd
}

func runResolve(opts *ResolveOptions, label string, cmd *cobra.Command) error {
	cfg, logger, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}

	seed := opts.Seed
	if !cmd.Flags().Changed("seed") && cfg.Seed != nil {
		seed = *cfg.Seed
	}

	arg, err := toem.New(label,
		toem.WithOutcome(opts.Outcome),
		toem.WithBaseProb(opts.BaseProb),
		toem.WithSkillLevel(opts.Skill),
		toem.WithSource(toem.NewSeededSource(seed)),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid argument", err)
	}
	for _, p := range opts.Pros {
		if err := arg.AddProString(p); err != nil {
			return WrapExitError(ExitCommandError, "invalid pro", err)
		}
	}
	for _, c := range opts.Cons {
		if err := arg.AddConString(c); err != nil {
			return WrapExitError(ExitCommandError, "invalid con", err)
		}
	}

	if cmd.Flags().Changed("variate") {
		if opts.Variate < 0 || opts.Variate >= 1 {
			return NewExitError(ExitCommandError, fmt.Sprintf("variate %g outside [0, 1)", opts.Variate))
		}
		_, err = arg.ResolveWith(opts.Variate)
	} else {
		_, err = arg.Resolve()
	}
	if err != nil {
		return WrapExitError(ExitFailure, "resolution failed", err)
	}

	res, _ := arg.Result()
	logger.Debug("resolved", "label", res.Label, "p0", res.P0, "p_final", res.PFinal,
		"variate", res.Variate, "increment", res.Increment)

	return opts.formatter(cmd).Render(res, func(w io.Writer) error {
		return writeResolution(w, res)
	})
}

func writeResolution(w io.Writer, res toem.Result) error {
	verdict := "failure"
	if res.Success {
		verdict = "success"
	}
	fmt.Fprintf(w, "%s: %s\n", res.Label, verdict)
	if res.Outcome != "" {
		fmt.Fprintf(w, "  outcome:   %s\n", res.Outcome)
	}
	fmt.Fprintf(w, "  variate:   %.4f\n", res.Variate)
	fmt.Fprintf(w, "  p0:        %d (%.4f)\n", res.P0, toem.PValue(res.P0))
	fmt.Fprintf(w, "  p_final:   %d\n", res.PFinal)
	fmt.Fprintf(w, "  increment: %+d\n", res.Increment)
	if len(res.Blame) > 0 {
		fmt.Fprintf(w, "  blame:     %s\n", strings.Join(res.Blame, ", "))
	}
	return nil
}

func listConcepts(opts *ResolveOptions, cmd *cobra.Command) error {
	phrases := toem.Concepts()
	return opts.formatter(cmd).Render(phrases, func(w io.Writer) error {
		for _, p := range phrases {
			if p == "" {
				continue
			}
			offset, _ := toem.Lookup(p)
			fmt.Fprintf(w, "%-14s %+d\n", p, offset)
		}
		return nil
	})
}
