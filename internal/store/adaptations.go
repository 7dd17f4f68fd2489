package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

// #region types

// AdaptationStatus is the lifecycle state of a persisted adaptation.
type AdaptationStatus string

const (
	StatusSuggested  AdaptationStatus = "suggested"
	StatusAccepted   AdaptationStatus = "accepted"
	StatusRejected   AdaptationStatus = "rejected"
	StatusRolledBack AdaptationStatus = "rolled_back"
)

// Adaptation is the persisted, user-actionable proposal with lifecycle
// status. PreviousState is captured before any change is applied and is
// immutable once written.
type Adaptation struct {
	ID            string
	GoalID        string
	Type          string
	Reason        string
	Status        AdaptationStatus
	PreviousState plan.StateSnapshot
	NewState      plan.NewState
	CreatedBy     string
	ProcessedAt   *time.Time
	BlockedUntil  *time.Time
	CreatedAt     time.Time
}

// #endregion types

// #region insert

// InsertAdaptation persists a new adaptation record.
func (s *Store) InsertAdaptation(ctx context.Context, a Adaptation) error {
	prev, err := marshalJSON(a.PreviousState)
	if err != nil {
		return fmt.Errorf("previous state: %w", err)
	}
	next, err := marshalJSON(a.NewState)
	if err != nil {
		return fmt.Errorf("new state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO adaptations (id, goal_id, type, reason, status, previous_state,
		                          new_state, created_by, processed_at, blocked_until, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.GoalID, a.Type, a.Reason, string(a.Status), prev, next,
		a.CreatedBy, nullTime(a.ProcessedAt), nullTime(a.BlockedUntil), fmtTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert adaptation: %w", err)
	}
	return nil
}

// #endregion insert

// #region get

// GetAdaptation retrieves one adaptation by ID.
func (s *Store) GetAdaptation(ctx context.Context, id string) (Adaptation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, goal_id, type, reason, status, previous_state, new_state,
		        created_by, processed_at, blocked_until, created_at
		 FROM adaptations WHERE id = ?`, id)
	a, err := scanAdaptation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Adaptation{}, ErrNotFound
	}
	if err != nil {
		return Adaptation{}, fmt.Errorf("get adaptation %s: %w", id, err)
	}
	return a, nil
}

// ListAdaptationsByGoal returns a goal's adaptations, newest first.
func (s *Store) ListAdaptationsByGoal(ctx context.Context, goalID string) ([]Adaptation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, goal_id, type, reason, status, previous_state, new_state,
		        created_by, processed_at, blocked_until, created_at
		 FROM adaptations WHERE goal_id = ? ORDER BY created_at DESC`, goalID)
	if err != nil {
		return nil, fmt.Errorf("list adaptations: %w", err)
	}
	defer rows.Close()

	var out []Adaptation
	for rows.Next() {
		a, err := scanAdaptation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan adaptation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAdaptation(scan func(...any) error) (Adaptation, error) {
	var a Adaptation
	var status, prev, next, createdAt string
	var processedAt, blockedUntil sql.NullString

	if err := scan(&a.ID, &a.GoalID, &a.Type, &a.Reason, &status, &prev, &next,
		&a.CreatedBy, &processedAt, &blockedUntil, &createdAt); err != nil {
		return Adaptation{}, err
	}
	a.Status = AdaptationStatus(status)
	if err := json.Unmarshal([]byte(prev), &a.PreviousState); err != nil {
		return Adaptation{}, fmt.Errorf("unmarshal previous state: %w", err)
	}
	if err := json.Unmarshal([]byte(next), &a.NewState); err != nil {
		return Adaptation{}, fmt.Errorf("unmarshal new state: %w", err)
	}
	a.ProcessedAt = parseNullTime(processedAt)
	a.BlockedUntil = parseNullTime(blockedUntil)
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return a, nil
}

// #endregion get

// #region transition

// TransitionAdaptation performs the atomic conditional status update
// guarding every lifecycle transition. Returns false when the record was
// not in the expected status (zero rows affected), which callers must
// treat as a state conflict. ProcessedAt and blockedUntil are only
// written when non-nil.
func (s *Store) TransitionAdaptation(ctx context.Context, id string, from, to AdaptationStatus, processedAt, blockedUntil *time.Time) (bool, error) {
	set := "status = ?"
	args := []any{string(to)}
	if processedAt != nil {
		set += ", processed_at = ?"
		args = append(args, fmtTime(*processedAt))
	}
	if blockedUntil != nil {
		set += ", blocked_until = ?"
		args = append(args, fmtTime(*blockedUntil))
	}
	args = append(args, id, string(from))

	res, err := s.db.ExecContext(ctx,
		"UPDATE adaptations SET "+set+" WHERE id = ? AND status = ?", args...)
	if err != nil {
		return false, fmt.Errorf("transition adaptation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows: %w", err)
	}
	return n > 0, nil
}

// #endregion transition

// #region block

// ActiveBlock returns the latest blocked_until among rejected or
// rolled-back adaptations of the given type for the goal, or nil when
// the type is not currently blocked. Timestamps are compared in Go:
// RFC3339Nano strings do not sort lexicographically.
func (s *Store) ActiveBlock(ctx context.Context, goalID, adaptationType string, now time.Time) (*time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT blocked_until FROM adaptations
		 WHERE goal_id = ? AND type = ?
		   AND status IN (?, ?)
		   AND blocked_until IS NOT NULL`,
		goalID, adaptationType, string(StatusRejected), string(StatusRolledBack),
	)
	if err != nil {
		return nil, fmt.Errorf("active block: %w", err)
	}
	defer rows.Close()

	var latest *time.Time
	for rows.Next() {
		var until sql.NullString
		if err := rows.Scan(&until); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		t := parseNullTime(until)
		if t == nil || !t.After(now) {
			continue
		}
		if latest == nil || t.After(*latest) {
			latest = t
		}
	}
	return latest, rows.Err()
}

// #endregion block

// #region delete

// DeleteAdaptation removes a record outright. Administrative escape
// hatch, not part of the lifecycle contract.
func (s *Store) DeleteAdaptation(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM adaptations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete adaptation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rows: %w", err)
	}
	return n > 0, nil
}

// #endregion delete
