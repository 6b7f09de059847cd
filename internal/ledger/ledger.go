// Package ledger provides an append-only history of device commands
// delivered to the backend. It exists for auditing: every command that
// clears the throttle gate leaves a row here.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Service names recorded per entry.
const (
	ServiceTurnOn  = "turn_on"
	ServiceTurnOff = "turn_off"
)

// Entry represents a single delivered command
type Entry struct {
	ID        int64
	EntityID  string
	LightID   string
	Source    string
	Service   string
	Payload   map[string]any
	Timestamp time.Time
}

// Ledger provides append-only command logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a delivered command to the ledger
func (l *Ledger) Append(entityID, lightID, source, service string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	now := time.Now().UTC().Unix()
	_, err = l.db.Exec(
		`INSERT INTO command_ledger (entity_id, light_id, source, service, payload, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		entityID, lightID, source, service, string(payloadJSON), now,
	)
	return err
}

// Recent returns the latest entries, newest first
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, entity_id, light_id, source, service, payload, timestamp
		FROM command_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// ByEntity returns the latest entries for one entity, newest first
func (l *Ledger) ByEntity(entityID string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, entity_id, light_id, source, service, payload, timestamp
		FROM command_ledger
		WHERE entity_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM command_ledger WHERE timestamp < ?
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
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EntityID, &entry.LightID, &entry.Source, &entry.Service, &payloadStr, &timestamp,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
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
