// Package audit appends lifecycle and harm transitions to a write-once
// log consumed for compliance. Writes must never abort the caller's
// primary operation; callers log and swallow errors.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// #region record

// Category groups audit events by subsystem.
type Category string

const (
	CategoryLifecycle Category = "lifecycle"
	CategoryHarm      Category = "harm"
)

// Record is one append-only audit event.
type Record struct {
	EventID     string
	Category    Category
	EventType   string
	Actor       string
	EntityKind  string
	EntityID    string
	PayloadJSON string
	CreatedAt   time.Time
}

// #endregion record

// #region sink

// Sink writes audit records into the audit_log table. There is no
// update or delete API: the log is append-only by construction.
type Sink struct {
	db *sql.DB
}

// NewSink creates a sink over the shared core database.
func NewSink(db *sql.DB) *Sink {
	return &Sink{db: db}
}

// Write appends one record. EventID and CreatedAt are filled when zero.
func (s *Sink) Write(ctx context.Context, rec Record) error {
	if rec.EventID == "" {
		rec.EventID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (event_id, category, event_type, actor, entity_kind, entity_id, payload_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EventID, string(rec.Category), rec.EventType, rec.Actor,
		rec.EntityKind, rec.EntityID, nullIfEmpty(rec.PayloadJSON),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("audit write: %w", err)
	}
	return nil
}

// WriteBestEffort appends a record, logging instead of failing. This is
// the call sites' default: audit failures are non-fatal but visible.
func (s *Sink) WriteBestEffort(ctx context.Context, rec Record) {
	if err := s.Write(ctx, rec); err != nil {
		log.Printf("[AUDIT] dropped %s/%s for %s %s: %v",
			rec.Category, rec.EventType, rec.EntityKind, rec.EntityID, err)
	}
}

// List returns the most recent records for compliance export.
func (s *Sink) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, category, event_type, actor, entity_kind, entity_id, payload_json, created_at
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var category, createdAt string
		var payload sql.NullString
		if err := rows.Scan(&rec.EventID, &category, &rec.EventType, &rec.Actor,
			&rec.EntityKind, &rec.EntityID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("audit scan: %w", err)
		}
		rec.Category = Category(category)
		if payload.Valid {
			rec.PayloadJSON = payload.String
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion sink

// Payload marshals v for Record.PayloadJSON, returning "" on failure so
// a bad payload never blocks the audit write itself.
func Payload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
