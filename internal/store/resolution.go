package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/opcon/internal/toem"
)

// Resolution is one row of the resolution log.
type Resolution struct {
	ID      int64       `json:"id"`
	Run     string      `json:"run"`
	SimTime time.Time   `json:"sim_time"`
	UnitID  string      `json:"unit_id"`
	Result  toem.Result `json:"result"`
}

// LogResolution appends a resolved argument to the log.
func (s *Store) LogResolution(ctx context.Context, run string, at time.Time, unitID string, res toem.Result) (int64, error) {
	blame, err := marshalBlame(res.Blame)
	if err != nil {
		return 0, fmt.Errorf("log resolution: %w", err)
	}

	success := 0
	if res.Success {
		success = 1
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO resolutions
		(run, sim_time, unit_id, label, outcome, p0, p_final, variate, increment, success, blame)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run,
		at.UnixNano(),
		unitID,
		res.Label,
		res.Outcome,
		res.P0,
		res.PFinal,
		res.Variate,
		res.Increment,
		success,
		blame,
	)
	if err != nil {
		return 0, fmt.Errorf("log resolution: %w", err)
	}
	return result.LastInsertId()
}

// Resolutions returns a run's log in simulation-time order. Rows logged at
// the same instant keep insertion order.
func (s *Store) Resolutions(ctx context.Context, run string) ([]Resolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run, sim_time, unit_id, label, outcome, p0, p_final, variate, increment, success, blame
		FROM resolutions
		WHERE run = ?
		ORDER BY sim_time ASC, id ASC
	`, run)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	var out []Resolution
	for rows.Next() {
		var (
			r       Resolution
			simTime int64
			success int
			blame   string
		)
		if err := rows.Scan(&r.ID, &r.Run, &simTime, &r.UnitID,
			&r.Result.Label, &r.Result.Outcome, &r.Result.P0, &r.Result.PFinal,
			&r.Result.Variate, &r.Result.Increment, &success, &blame); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		r.SimTime = time.Unix(0, simTime).UTC()
		r.Result.Success = success == 1
		if r.Result.Blame, err = unmarshalBlame(blame); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}
	return out, nil
}
