package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

// ErrNotFound is returned when an entity is absent or not owned by the
// requesting user. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS goals (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	title            TEXT NOT NULL,
	difficulty       TEXT NOT NULL DEFAULT 'medium',
	plan_version     INTEGER NOT NULL DEFAULT 1,
	active           INTEGER NOT NULL DEFAULT 1,
	last_activity_at TEXT,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id                 TEXT PRIMARY KEY,
	goal_id            TEXT NOT NULL,
	title              TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	difficulty         TEXT NOT NULL DEFAULT 'medium',
	frequency_per_week INTEGER NOT NULL DEFAULT 0,
	duration_minutes   INTEGER NOT NULL DEFAULT 0,
	sort_order         INTEGER NOT NULL DEFAULT 0,
	unrealistic        INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	completed_at       TEXT,
	FOREIGN KEY (goal_id) REFERENCES goals(id)
);

CREATE INDEX IF NOT EXISTS idx_tasks_goal ON tasks(goal_id);

CREATE TABLE IF NOT EXISTS adaptations (
	id             TEXT PRIMARY KEY,
	goal_id        TEXT NOT NULL,
	type           TEXT NOT NULL,
	reason         TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'suggested',
	previous_state TEXT NOT NULL,
	new_state      TEXT NOT NULL,
	created_by     TEXT NOT NULL,
	processed_at   TEXT,
	blocked_until  TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (goal_id) REFERENCES goals(id)
);

CREATE INDEX IF NOT EXISTS idx_adaptations_goal_type ON adaptations(goal_id, type, status);

CREATE TABLE IF NOT EXISTS harm_incidents (
	id                    TEXT PRIMARY KEY,
	user_id               TEXT NOT NULL,
	goal_id               TEXT,
	signal_type           TEXT NOT NULL,
	severity              TEXT NOT NULL,
	message               TEXT NOT NULL,
	metadata_json         TEXT,
	forced_difficulty     INTEGER NOT NULL DEFAULT 0,
	new_difficulty        TEXT,
	auto_disabled         INTEGER NOT NULL DEFAULT 0,
	reenable_at           TEXT,
	requires_confirmation INTEGER NOT NULL DEFAULT 0,
	status                TEXT NOT NULL DEFAULT 'active',
	created_at            TEXT NOT NULL,
	resolved_at           TEXT
);

CREATE INDEX IF NOT EXISTS idx_incidents_user ON harm_incidents(user_id, status);

CREATE TABLE IF NOT EXISTS user_harm_state (
	user_id               TEXT PRIMARY KEY,
	auto_disabled         INTEGER NOT NULL DEFAULT 0,
	disabled_at           TEXT,
	disabling_incident_id TEXT,
	pending_confirmation  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS audit_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id    TEXT NOT NULL,
	category    TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	actor       TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	payload_json TEXT,
	created_at  TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store manages all persisted coaching-core records in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. audit).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region goals

// CreateGoal inserts a goal.
func (s *Store) CreateGoal(ctx context.Context, g plan.Goal) error {
	version := g.PlanVersion
	if version == 0 {
		version = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, title, difficulty, plan_version, active, last_activity_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, string(g.Difficulty), version, boolInt(g.Active),
		nullTime(g.LastActivityAt), fmtTime(g.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// GetGoal reads a goal scoped by its owning user. Absent and unowned
// both return ErrNotFound.
func (s *Store) GetGoal(ctx context.Context, userID, goalID string) (plan.Goal, error) {
	var g plan.Goal
	var difficulty string
	var active int
	var lastActivity, createdAt sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, difficulty, plan_version, active, last_activity_at, created_at
		 FROM goals WHERE id = ? AND user_id = ?`, goalID, userID,
	).Scan(&g.ID, &g.UserID, &g.Title, &difficulty, &g.PlanVersion, &active, &lastActivity, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return plan.Goal{}, ErrNotFound
	}
	if err != nil {
		return plan.Goal{}, fmt.Errorf("get goal %s: %w", goalID, err)
	}

	g.Difficulty = plan.Difficulty(difficulty)
	g.Active = active != 0
	g.LastActivityAt = parseNullTime(lastActivity)
	if createdAt.Valid {
		g.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt.String)
	}
	return g, nil
}

// SetGoalDifficulty updates the goal's predominant difficulty.
func (s *Store) SetGoalDifficulty(ctx context.Context, goalID string, d plan.Difficulty) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE goals SET difficulty = ? WHERE id = ?`, string(d), goalID)
	if err != nil {
		return fmt.Errorf("set goal difficulty: %w", err)
	}
	return nil
}

// SetPlanVersion writes the plan-version counter directly. Used by
// rollback to restore the snapshotted value.
func (s *Store) SetPlanVersion(ctx context.Context, goalID string, version int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE goals SET plan_version = ? WHERE id = ?`, version, goalID)
	if err != nil {
		return fmt.Errorf("set plan version: %w", err)
	}
	return nil
}

// BumpPlanVersion increments the goal's plan-version counter and returns
// the new value. This is the downstream signal that the plan changed shape.
func (s *Store) BumpPlanVersion(ctx context.Context, goalID string) (int, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE goals SET plan_version = plan_version + 1 WHERE id = ?`, goalID)
	if err != nil {
		return 0, fmt.Errorf("bump plan version: %w", err)
	}
	var version int
	err = s.db.QueryRowContext(ctx,
		`SELECT plan_version FROM goals WHERE id = ?`, goalID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read plan version: %w", err)
	}
	return version, nil
}

// TouchActivity records the user's last activity on a goal.
func (s *Store) TouchActivity(ctx context.Context, goalID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE goals SET last_activity_at = ? WHERE id = ?`, fmtTime(at), goalID)
	if err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	return nil
}

// #endregion goals

// #region tasks

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, t plan.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, goal_id, title, status, difficulty, frequency_per_week,
		                    duration_minutes, sort_order, unrealistic, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.GoalID, t.Title, string(t.Status), string(t.Difficulty),
		t.FrequencyPerWeek, t.DurationMinutes, t.SortOrder, boolInt(t.Unrealistic),
		fmtTime(t.CreatedAt), nullTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// ListTasks returns all tasks for a goal ordered by sort order.
func (s *Store) ListTasks(ctx context.Context, goalID string) ([]plan.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, goal_id, title, status, difficulty, frequency_per_week,
		        duration_minutes, sort_order, unrealistic, created_at, completed_at
		 FROM tasks WHERE goal_id = ? ORDER BY sort_order, created_at`, goalID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []plan.Task
	for rows.Next() {
		var t plan.Task
		var status, difficulty string
		var unrealistic int
		var createdAt string
		var completedAt sql.NullString

		if err := rows.Scan(&t.ID, &t.GoalID, &t.Title, &status, &difficulty,
			&t.FrequencyPerWeek, &t.DurationMinutes, &t.SortOrder, &unrealistic,
			&createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = plan.TaskStatus(status)
		t.Difficulty = plan.Difficulty(difficulty)
		t.Unrealistic = unrealistic != 0
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		t.CompletedAt = parseNullTime(completedAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetTaskStatus updates a task's status and completion time.
func (s *Store) SetTaskStatus(ctx context.Context, taskID string, status plan.TaskStatus, completedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), nullTime(completedAt), taskID)
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	return nil
}

// SetTaskUnrealistic records the user's "unrealistic" flag on a task.
func (s *Store) SetTaskUnrealistic(ctx context.Context, taskID string, flagged bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET unrealistic = ? WHERE id = ?`, boolInt(flagged), taskID)
	if err != nil {
		return fmt.Errorf("set task unrealistic: %w", err)
	}
	return nil
}

// ApplyTaskChange applies the non-zero fields of a per-task change.
// Returns false when the task does not belong to the goal.
func (s *Store) ApplyTaskChange(ctx context.Context, goalID string, c plan.TaskChange) (bool, error) {
	set := ""
	args := []any{}
	if c.Difficulty != "" {
		set += "difficulty = ?, "
		args = append(args, string(c.Difficulty))
	}
	if c.FrequencyPerWeek != 0 {
		set += "frequency_per_week = ?, "
		args = append(args, c.FrequencyPerWeek)
	}
	if c.DurationMinutes != 0 {
		set += "duration_minutes = ?, "
		args = append(args, c.DurationMinutes)
	}
	if set == "" {
		return false, nil
	}
	set = set[:len(set)-2]
	args = append(args, c.TaskID, goalID)

	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET "+set+" WHERE id = ? AND goal_id = ?", args...)
	if err != nil {
		return false, fmt.Errorf("apply task change: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply task change rows: %w", err)
	}
	return n > 0, nil
}

// SetAllTaskDifficulty applies one difficulty to every task in the goal.
func (s *Store) SetAllTaskDifficulty(ctx context.Context, goalID string, d plan.Difficulty) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET difficulty = ? WHERE goal_id = ? AND difficulty != ?`,
		string(d), goalID, string(d))
	if err != nil {
		return 0, fmt.Errorf("set all task difficulty: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set all task difficulty rows: %w", err)
	}
	return int(n), nil
}

// LowerTasksAbove reduces every task harder than target down to target.
// Returns the number of tasks changed.
func (s *Store) LowerTasksAbove(ctx context.Context, goalID string, target plan.Difficulty) (int, error) {
	tasks, err := s.ListTasks(ctx, goalID)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	changed := 0
	for _, t := range tasks {
		if t.Difficulty.Rank() <= target.Rank() {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET difficulty = ? WHERE id = ?`, string(target), t.ID); err != nil {
			return 0, fmt.Errorf("lower task %s: %w", t.ID, err)
		}
		changed++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return changed, nil
}

// RestoreTaskSnapshot writes every snapshotted field back onto the task.
func (s *Store) RestoreTaskSnapshot(ctx context.Context, goalID string, snap plan.TaskSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, difficulty = ?, frequency_per_week = ?,
		                  duration_minutes = ?, sort_order = ?
		 WHERE id = ? AND goal_id = ?`,
		string(snap.Status), string(snap.Difficulty), snap.FrequencyPerWeek,
		snap.DurationMinutes, snap.SortOrder, snap.TaskID, goalID)
	if err != nil {
		return fmt.Errorf("restore task %s: %w", snap.TaskID, err)
	}
	return nil
}

// CountUnrealistic counts the user's tasks currently flagged unrealistic.
func (s *Store) CountUnrealistic(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks t JOIN goals g ON t.goal_id = g.id
		 WHERE g.user_id = ? AND t.unrealistic = 1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unrealistic: %w", err)
	}
	return n, nil
}

// #endregion tasks

// #region helpers

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(b), nil
}

// #endregion helpers
