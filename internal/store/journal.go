package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run modes.
const (
	ModeExplore = "explore"
	ModeReplay  = "replay"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusConverged = "converged"
	StatusReplayed  = "replayed"
	StatusFailed    = "failed"
	StatusLimit     = "limit"
	StatusCancelled = "cancelled"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one exploration or replay of a scenario.
type Run struct {
	ID         string
	Scenario   string
	Mode       string
	Repro      string
	Status     string
	Iterations int
	Leaves     int
	Error      string
}

// Iteration is the journal entry of a finished iteration.
type Iteration struct {
	RunID            string
	Seq              int
	SequenceToFollow string
	Sequence         string
	Registered       int
	Leaves           int
	More             bool
	Error            string
}

// CreateRun inserts a run in StatusRunning.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, mode, repro, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Scenario, run.Mode, run.Repro, run.Status)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// WriteIteration appends an iteration to a run.
// Duplicate (run_id, seq) writes are silently ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteIteration(ctx context.Context, it Iteration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO iterations
		(run_id, seq, sequence_to_follow, sequence, registered, leaves, more, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		it.RunID,
		it.Seq,
		it.SequenceToFollow,
		it.Sequence,
		it.Registered,
		it.Leaves,
		boolToInt(it.More),
		it.Error,
	)
	if err != nil {
		return fmt.Errorf("write iteration: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run and the complete sequences it
// explored, in one transaction.
func (s *Store) FinishRun(ctx context.Context, run Run, paths []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, iterations = ?, leaves = ?, error = ?
		WHERE id = ?
	`, run.Status, run.Iterations, run.Leaves, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrRunNotFound)
	}

	for i, p := range paths {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO paths (run_id, idx, sequence) VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, run.ID, i, p); err != nil {
			return fmt.Errorf("finish run: write path: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finish run: commit: %w", err)
	}
	return nil
}

// ReadRun returns the run with the given id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, mode, repro, status, iterations, leaves, error
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run, oldest first.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, mode, repro, status, iterations, leaves, error
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadIterations returns the iterations of a run in order.
//
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadIterations(ctx context.Context, runID string) ([]Iteration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, sequence_to_follow, sequence, registered, leaves, more, error
		FROM iterations
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	iterations := []Iteration{}
	for rows.Next() {
		it, err := scanIteration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		iterations = append(iterations, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}
	return iterations, nil
}

// LatestFailure returns the last failed iteration of a run, whose Sequence is
// the repro string to replay. ok is false if no iteration failed.
func (s *Store) LatestFailure(ctx context.Context, runID string) (Iteration, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, seq, sequence_to_follow, sequence, registered, leaves, more, error
		FROM iterations
		WHERE run_id = ? AND error != ''
		ORDER BY seq DESC
		LIMIT 1
	`, runID)

	it, err := scanIteration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Iteration{}, false, nil
	}
	if err != nil {
		return Iteration{}, false, fmt.Errorf("read latest failure: %w", err)
	}
	return it, true, nil
}

// ReadPaths returns the complete sequences recorded for a run.
//
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadPaths(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence FROM paths WHERE run_id = ? ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paths: %w", err)
	}
	return paths, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (Run, error) {
	var run Run
	err := r.Scan(
		&run.ID,
		&run.Scenario,
		&run.Mode,
		&run.Repro,
		&run.Status,
		&run.Iterations,
		&run.Leaves,
		&run.Error,
	)
	return run, err
}

func scanIteration(r rowScanner) (Iteration, error) {
	var it Iteration
	var more int
	err := r.Scan(
		&it.RunID,
		&it.Seq,
		&it.SequenceToFollow,
		&it.Sequence,
		&it.Registered,
		&it.Leaves,
		&more,
		&it.Error,
	)
	it.More = more != 0
	return it, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
