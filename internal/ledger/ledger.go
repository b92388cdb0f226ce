// Package ledger provides an append-only history of control events for
// auditing and the status API.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dokzlo13/stripd/internal/control"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventControlReceived EventType = "control_received"
	EventStateRestored   EventType = "state_restored"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64          `json:"id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
	Source    string         `json:"source,omitempty"`
	EventID   string         `json:"event_id,omitempty"`
}

// Ledger provides append-only event logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends a received control event.
func (l *Ledger) Record(ev control.Event) error {
	payload := map[string]any{"kind": string(ev.Kind)}
	switch ev.Kind {
	case control.KindSelect:
		payload["index"] = ev.Index
	case control.KindSetBrightness:
		payload["value"] = ev.Value
	case control.KindBrightnessUp, control.KindBrightnessDown:
		payload["steps"] = ev.Steps
	}
	return l.append(EventControlReceived, ev.At, ev.ID, ev.Source, payload)
}

// Append adds a new event to the ledger
func (l *Ledger) Append(eventType EventType, source string, payload map[string]any) error {
	return l.append(eventType, time.Now(), "", source, payload)
}

func (l *Ledger) append(eventType EventType, at time.Time, eventID, source string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}
	if at.IsZero() {
		at = time.Now()
	}

	_, err = l.db.Exec(
		`INSERT INTO event_ledger (event_type, timestamp, payload, source, event_id) VALUES (?, ?, ?, ?, ?)`,
		string(eventType), at.UTC().UnixMilli(), string(payloadJSON), source, eventID,
	)
	return err
}

// Has reports whether an event with the given ID was recorded.
func (l *Ledger) Has(eventID string) bool {
	if eventID == "" {
		return false
	}

	var exists int
	err := l.db.QueryRow(`
		SELECT 1 FROM event_ledger
		WHERE event_id = ?
		LIMIT 1
	`, eventID).Scan(&exists)

	return err == nil && exists == 1
}

// Recent returns the newest entries first.
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, source, event_id
		FROM event_ledger
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByType returns entries filtered by event type
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, payload, source, event_id
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`
		DELETE FROM event_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr sql.NullString
		var source, eventID sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EventType, &timestamp, &payloadStr, &source, &eventID,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		if source.Valid {
			entry.Source = source.String
		}
		if eventID.Valid {
			entry.EventID = eventID.String
		}

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
