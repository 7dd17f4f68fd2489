package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// #region types

// IncidentStatus is the resolution state of a harm incident.
type IncidentStatus string

const (
	IncidentActive        IncidentStatus = "active"
	IncidentUserConfirmed IncidentStatus = "user_confirmed"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentExpired       IncidentStatus = "expired"
)

// HarmIncident is a recorded safety-trigger event. The originating
// signal fields and CreatedAt never change after insert; only Status
// and ResolvedAt do.
type HarmIncident struct {
	ID           string
	UserID       string
	GoalID       string // empty when not goal-scoped
	SignalType   string
	Severity     string
	Message      string
	MetadataJSON string

	// Response actions derived at detection time.
	ForcedDifficulty     bool
	NewDifficulty        string
	AutoDisabled         bool
	ReenableAt           *time.Time
	RequiresConfirmation bool

	Status     IncidentStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// UserHarmState is the per-user gate the lifecycle manager consults
// before creating system-originated adaptations.
type UserHarmState struct {
	UserID              string
	AutoDisabled        bool
	DisabledAt          *time.Time
	DisablingIncidentID string
	PendingConfirmation bool
}

// #endregion types

// #region incidents

// InsertIncident persists a new harm incident.
func (s *Store) InsertIncident(ctx context.Context, inc HarmIncident) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO harm_incidents (id, user_id, goal_id, signal_type, severity, message,
		                             metadata_json, forced_difficulty, new_difficulty,
		                             auto_disabled, reenable_at, requires_confirmation,
		                             status, created_at, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.UserID, nullIfEmpty(inc.GoalID), inc.SignalType, inc.Severity, inc.Message,
		nullIfEmpty(inc.MetadataJSON), boolInt(inc.ForcedDifficulty), nullIfEmpty(inc.NewDifficulty),
		boolInt(inc.AutoDisabled), nullTime(inc.ReenableAt), boolInt(inc.RequiresConfirmation),
		string(inc.Status), fmtTime(inc.CreatedAt), nullTime(inc.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// GetIncident retrieves one incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (HarmIncident, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, goal_id, signal_type, severity, message, metadata_json,
		        forced_difficulty, new_difficulty, auto_disabled, reenable_at,
		        requires_confirmation, status, created_at, resolved_at
		 FROM harm_incidents WHERE id = ?`, id)
	inc, err := scanIncident(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return HarmIncident{}, ErrNotFound
	}
	if err != nil {
		return HarmIncident{}, fmt.Errorf("get incident %s: %w", id, err)
	}
	return inc, nil
}

// SetIncidentStatus updates only the resolution fields; the originating
// signal is immutable. The update is conditional on the incident still
// being active, mirroring the adaptation transition guard.
func (s *Store) SetIncidentStatus(ctx context.Context, id string, status IncidentStatus, resolvedAt *time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE harm_incidents SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		string(status), nullTime(resolvedAt), id, string(IncidentActive))
	if err != nil {
		return false, fmt.Errorf("set incident status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set incident status rows: %w", err)
	}
	return n > 0, nil
}

// ListActiveIncidents returns the user's active incidents, oldest first.
func (s *Store) ListActiveIncidents(ctx context.Context, userID string) ([]HarmIncident, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, goal_id, signal_type, severity, message, metadata_json,
		        forced_difficulty, new_difficulty, auto_disabled, reenable_at,
		        requires_confirmation, status, created_at, resolved_at
		 FROM harm_incidents WHERE user_id = ? AND status = ?
		 ORDER BY created_at`, userID, string(IncidentActive))
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}
	defer rows.Close()

	var out []HarmIncident
	for rows.Next() {
		inc, err := scanIncident(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func scanIncident(scan func(...any) error) (HarmIncident, error) {
	var inc HarmIncident
	var goalID, metadata, newDifficulty sql.NullString
	var forced, autoDisabled, requiresConfirmation int
	var reenableAt, resolvedAt sql.NullString
	var status, createdAt string

	if err := scan(&inc.ID, &inc.UserID, &goalID, &inc.SignalType, &inc.Severity,
		&inc.Message, &metadata, &forced, &newDifficulty, &autoDisabled,
		&reenableAt, &requiresConfirmation, &status, &createdAt, &resolvedAt); err != nil {
		return HarmIncident{}, err
	}
	if goalID.Valid {
		inc.GoalID = goalID.String
	}
	if metadata.Valid {
		inc.MetadataJSON = metadata.String
	}
	if newDifficulty.Valid {
		inc.NewDifficulty = newDifficulty.String
	}
	inc.ForcedDifficulty = forced != 0
	inc.AutoDisabled = autoDisabled != 0
	inc.RequiresConfirmation = requiresConfirmation != 0
	inc.ReenableAt = parseNullTime(reenableAt)
	inc.Status = IncidentStatus(status)
	inc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	inc.ResolvedAt = parseNullTime(resolvedAt)
	return inc, nil
}

// #endregion incidents

// #region harm-state

// GetHarmState reads the user's gate state. A user with no row gets the
// zero state (nothing disabled).
func (s *Store) GetHarmState(ctx context.Context, userID string) (UserHarmState, error) {
	var st UserHarmState
	var autoDisabled, pending int
	var disabledAt, disablingID sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, auto_disabled, disabled_at, disabling_incident_id, pending_confirmation
		 FROM user_harm_state WHERE user_id = ?`, userID,
	).Scan(&st.UserID, &autoDisabled, &disabledAt, &disablingID, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return UserHarmState{UserID: userID}, nil
	}
	if err != nil {
		return UserHarmState{}, fmt.Errorf("get harm state: %w", err)
	}

	st.AutoDisabled = autoDisabled != 0
	st.PendingConfirmation = pending != 0
	st.DisabledAt = parseNullTime(disabledAt)
	if disablingID.Valid {
		st.DisablingIncidentID = disablingID.String
	}
	return st, nil
}

// PutHarmState upserts the user's gate state as a single atomic write.
func (s *Store) PutHarmState(ctx context.Context, st UserHarmState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_harm_state (user_id, auto_disabled, disabled_at, disabling_incident_id, pending_confirmation)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   auto_disabled = excluded.auto_disabled,
		   disabled_at = excluded.disabled_at,
		   disabling_incident_id = excluded.disabling_incident_id,
		   pending_confirmation = excluded.pending_confirmation`,
		st.UserID, boolInt(st.AutoDisabled), nullTime(st.DisabledAt),
		nullIfEmpty(st.DisablingIncidentID), boolInt(st.PendingConfirmation))
	if err != nil {
		return fmt.Errorf("put harm state: %w", err)
	}
	return nil
}

// #endregion harm-state

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
