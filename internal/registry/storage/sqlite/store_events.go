package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/terrachain/registry/internal/registry/domain/event"
	"github.com/terrachain/registry/internal/registry/storage"
)

// MarkApplied records one projected event id. Marking the same id twice
// returns storage.ErrAlreadyExists.
func (s *Store) MarkApplied(ctx context.Context, eventID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO applied_events (event_id, applied_at) VALUES (?, ?)`,
		eventID,
		toMillis(at),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("mark event applied: %w", err)
	}
	return nil
}

// WasApplied reports whether an event id was already projected.
func (s *Store) WasApplied(ctx context.Context, eventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	var count int
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM applied_events WHERE event_id = ?`,
		strings.TrimSpace(eventID),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check event applied: %w", err)
	}
	return count > 0, nil
}

// Park stores an event that could not be projected. Parking the same event
// again bumps the attempt counter instead of duplicating the row.
func (s *Store) Park(ctx context.Context, parked storage.ParkedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventID := parked.Event.ID()
	if strings.TrimSpace(eventID) == "" {
		return fmt.Errorf("event id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO parked_events (
		   event_id, event_type, tx_ref, event_timestamp, property_id, request_id,
		   payload, reason, parked_at, attempts
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO UPDATE SET
		   reason = excluded.reason,
		   attempts = parked_events.attempts + 1`,
		eventID,
		string(parked.Event.Type),
		parked.Event.TxRef,
		toMillis(parked.Event.Timestamp),
		parked.Event.PropertyID,
		parked.Event.RequestID,
		string(parked.Event.PayloadJSON),
		parked.Reason,
		toMillis(parked.ParkedAt),
		parked.Attempts,
	)
	if err != nil {
		return fmt.Errorf("park event: %w", err)
	}
	return nil
}

// ListParked returns parked events ordered by parked time.
func (s *Store) ListParked(ctx context.Context, page storage.Page) ([]storage.ParkedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `SELECT event_type, tx_ref, event_timestamp, property_id, request_id,
	                 payload, reason, parked_at, attempts
	            FROM parked_events
	           ORDER BY parked_at ASC, event_id ASC`
	var args []any
	if page.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list parked events: %w", err)
	}
	defer rows.Close()

	var parked []storage.ParkedEvent
	for rows.Next() {
		var entry storage.ParkedEvent
		var eventType string
		var timestamp int64
		var payload string
		var parkedAt int64
		if err := rows.Scan(
			&eventType,
			&entry.Event.TxRef,
			&timestamp,
			&entry.Event.PropertyID,
			&entry.Event.RequestID,
			&payload,
			&entry.Reason,
			&parkedAt,
			&entry.Attempts,
		); err != nil {
			return nil, fmt.Errorf("list parked events: %w", err)
		}
		entry.Event.Type = event.Type(eventType)
		entry.Event.Timestamp = fromMillis(timestamp)
		entry.Event.PayloadJSON = []byte(payload)
		entry.ParkedAt = fromMillis(parkedAt)
		parked = append(parked, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list parked events: %w", err)
	}
	return parked, nil
}

// RemoveParked deletes one parked event after a successful replay.
func (s *Store) RemoveParked(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM parked_events WHERE event_id = ?`,
		strings.TrimSpace(eventID),
	)
	if err != nil {
		return fmt.Errorf("remove parked event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove parked event: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
