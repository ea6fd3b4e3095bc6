package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/opcon/internal/schedule"
)

var (
	// ErrRunNotFound is returned when no run is saved under a name.
	ErrRunNotFound = errors.New("run not found")

	// ErrCorrupt is returned when a run's events no longer match its hash.
	ErrCorrupt = errors.New("stored schedule does not match its hash")
)

// Run summarises a saved run.
type Run struct {
	Name         string    `json:"name"`
	SimTime      time.Time `json:"sim_time"`
	EventCount   int       `json:"event_count"`
	ScheduleHash string    `json:"schedule_hash"`
}

// SaveSchedule replaces whatever is stored under run with records and the
// simulation time now. The write is a single transaction.
func (s *Store) SaveSchedule(ctx context.Context, run string, now time.Time, records []schedule.Record) error {
	if run == "" {
		return fmt.Errorf("save schedule: empty run name")
	}
	hash, err := scheduleHash(records)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save schedule: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE name = ?`, run); err != nil {
		return fmt.Errorf("save schedule: clear run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (name, sim_time, event_count, schedule_hash)
		VALUES (?, ?, ?, ?)
	`, run, now.UnixNano(), len(records), hash); err != nil {
		return fmt.Errorf("save schedule: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scheduled_events
		(run, at, seq, kind, parent_id, method, args, kwargs, tag, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save schedule: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		args, err := marshalArgs(r.Args)
		if err != nil {
			return fmt.Errorf("save schedule: %s: %w", r.Method, err)
		}
		kwargs, err := marshalKwargs(r.Kwargs)
		if err != nil {
			return fmt.Errorf("save schedule: %s: %w", r.Method, err)
		}
		data, err := marshalData(r.Data)
		if err != nil {
			return fmt.Errorf("save schedule: %s: %w", r.Tag, err)
		}
		if _, err := stmt.ExecContext(ctx,
			run,
			r.At.UnixNano(),
			r.Seq,
			r.Kind.String(),
			r.ParentID,
			r.Method,
			args,
			kwargs,
			r.Tag,
			data,
		); err != nil {
			return fmt.Errorf("save schedule: insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save schedule: commit: %w", err)
	}
	return nil
}

// LoadSchedule returns the simulation time and records saved under run, in
// execution order. Timestamps come back in UTC.
func (s *Store) LoadSchedule(ctx context.Context, run string) (time.Time, []schedule.Record, error) {
	info, err := s.GetRun(ctx, run)
	if err != nil {
		return time.Time{}, nil, err
	}

	records, err := s.queryRecords(ctx, `
		SELECT at, seq, kind, parent_id, method, args, kwargs, tag, data
		FROM scheduled_events
		WHERE run = ?
		ORDER BY at ASC, seq ASC
	`, run)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("load schedule %q: %w", run, err)
	}

	hash, err := scheduleHash(records)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("load schedule %q: %w", run, err)
	}
	if hash != info.ScheduleHash || len(records) != info.EventCount {
		return time.Time{}, nil, fmt.Errorf("load schedule %q: %w", run, ErrCorrupt)
	}
	return info.SimTime, records, nil
}

// EventsForParent returns the saved records owned by parentID.
func (s *Store) EventsForParent(ctx context.Context, run, parentID string) ([]schedule.Record, error) {
	records, err := s.queryRecords(ctx, `
		SELECT at, seq, kind, parent_id, method, args, kwargs, tag, data
		FROM scheduled_events
		WHERE run = ? AND parent_id = ?
		ORDER BY at ASC, seq ASC
	`, run, parentID)
	if err != nil {
		return nil, fmt.Errorf("events for %q: %w", parentID, err)
	}
	return records, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]schedule.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []schedule.Record
	for rows.Next() {
		var (
			at                   int64
			seq                  int
			kind                 string
			argsJSON, kwargsJSON string
			data                 sql.NullString
			r                    schedule.Record
		)
		if err := rows.Scan(&at, &seq, &kind, &r.ParentID, &r.Method, &argsJSON, &kwargsJSON, &r.Tag, &data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if r.Kind, err = schedule.ParseKind(kind); err != nil {
			return nil, err
		}
		if r.Args, err = unmarshalArgs(argsJSON); err != nil {
			return nil, err
		}
		if r.Kwargs, err = unmarshalKwargs(kwargsJSON); err != nil {
			return nil, err
		}
		if r.Data, err = unmarshalData(data); err != nil {
			return nil, err
		}
		r.At = time.Unix(0, at).UTC()
		r.Seq = seq
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

// GetRun returns the summary of one run.
func (s *Store) GetRun(ctx context.Context, run string) (Run, error) {
	var (
		r       Run
		simTime int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, sim_time, event_count, schedule_hash FROM runs WHERE name = ?
	`, run).Scan(&r.Name, &simTime, &r.EventCount, &r.ScheduleHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %q", ErrRunNotFound, run)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %q: %w", run, err)
	}
	r.SimTime = time.Unix(0, simTime).UTC()
	return r, nil
}

// ListRuns returns every saved run ordered by name.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, sim_time, event_count, schedule_hash
		FROM runs
		ORDER BY name ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			simTime int64
		)
		if err := rows.Scan(&r.Name, &simTime, &r.EventCount, &r.ScheduleHash); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		r.SimTime = time.Unix(0, simTime).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its events. Resolutions are kept.
func (s *Store) DeleteRun(ctx context.Context, run string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE name = ?`, run)
	if err != nil {
		return fmt.Errorf("delete run %q: %w", run, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrRunNotFound, run)
	}
	return nil
}
