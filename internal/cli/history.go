package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/racerepro/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// RunDetail is the history of a single run.
type RunDetail struct {
	Run           store.Run         `json:"run"`
	Iterations    []store.Iteration `json:"iterations"`
	Paths         []string          `json:"paths"`
	FailedRepro   string            `json:"failed_repro,omitempty"`
	FailedAtIndex int               `json:"failed_at,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs and their repro strings",
		Long: `Read the journal written by "racerepro explore --db".

Without --run, lists every run. With --run, shows each iteration of that run
with the sequence it followed and the sequence it registered, and the repro
string of the latest failed iteration.

Examples:
  racerepro history --db ./journal.db
  racerepro history --db ./journal.db --run 0190a1b2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run in detail")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := newFormatter(cmd, opts.RootOptions)

	st, err := store.OpenExisting(opts.Database)
	if errors.Is(err, store.ErrJournalNotFound) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, "failed to open database", err, nil)
	}
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err, nil)
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeDatabase, "failed to list runs", err, nil)
		}
		return out.Emit(runs, func(w io.Writer) { writeRunsText(w, runs) })
	}

	detail, err := loadRunDetail(ctx, st, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, "run not found: "+opts.RunID, nil, nil)
	}
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeDatabase, "failed to read run", err, nil)
	}

	return out.Emit(detail, func(w io.Writer) { writeRunDetailText(w, detail, opts.Verbose) })
}

func loadRunDetail(ctx context.Context, st *store.Store, runID string) (*RunDetail, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	iterations, err := st.ReadIterations(ctx, runID)
	if err != nil {
		return nil, err
	}

	paths, err := st.ReadPaths(ctx, runID)
	if err != nil {
		return nil, err
	}

	detail := &RunDetail{Run: run, Iterations: iterations, Paths: paths}

	failed, ok, err := st.LatestFailure(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		detail.FailedRepro = failed.Sequence
		detail.FailedAtIndex = failed.Seq
	}

	return detail, nil
}

func writeRunsText(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-8s %-10s %-20s iterations=%d leaves=%d\n",
			r.ID, r.Mode, r.Status, r.Scenario, r.Iterations, r.Leaves)
	}
}

func writeRunDetailText(w io.Writer, d *RunDetail, verbose bool) {
	r := d.Run
	fmt.Fprintf(w, "Run: %s\n", r.ID)
	fmt.Fprintf(w, "Scenario: %s (%s)\n", r.Scenario, r.Mode)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	if r.Repro != "" {
		fmt.Fprintf(w, "Repro: %s\n", r.Repro)
	}
	fmt.Fprintf(w, "Iterations: %d\n", r.Iterations)
	fmt.Fprintf(w, "Interleavings: %d\n", r.Leaves)
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}

	fmt.Fprintln(w, "\nIterations:")
	for _, it := range d.Iterations {
		status := "ok"
		if it.Error != "" {
			status = "FAILED"
		}
		fmt.Fprintf(w, "  [%d] %s  %s\n", it.Seq, status, it.Sequence)
		if verbose {
			fmt.Fprintf(w, "      followed: %s\n", it.SequenceToFollow)
		}
		if it.Error != "" {
			fmt.Fprintf(w, "      error: %s\n", it.Error)
		}
	}

	if d.FailedRepro != "" {
		fmt.Fprintf(w, "\nLatest failure (iteration %d), replay with:\n  --repro %q\n", d.FailedAtIndex, d.FailedRepro)
	}
}
