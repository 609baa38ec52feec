package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventRepository defines the data access contract for security events.
type EventRepository interface {
	Log(ctx context.Context, event *SecurityEvent) error
	List(ctx context.Context, eventType string, limit, offset int) ([]SecurityEvent, int, error)
}

type eventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new repository backed by the given DB.
func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

// Log inserts a new security event. Details are serialized to JSON.
func (r *eventRepository) Log(ctx context.Context, event *SecurityEvent) error {
	query := `INSERT INTO security_events (event_type, user_id, actor_id, ip_address, user_agent, details, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	var detailsJSON []byte
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshaling security event details: %w", err)
		}
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var userID, actorID any
	if event.UserID != "" {
		userID = event.UserID
	}
	if event.ActorID != "" {
		actorID = event.ActorID
	}

	result, err := r.db.ExecContext(ctx, query,
		event.EventType, userID, actorID,
		event.IPAddress, event.UserAgent,
		detailsJSON, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting security event: %w", err)
	}

	id, _ := result.LastInsertId()
	event.ID = id
	return nil
}

// List returns paginated security events, most recent first, optionally
// narrowed to one event type.
func (r *eventRepository) List(ctx context.Context, eventType string, limit, offset int) ([]SecurityEvent, int, error) {
	where := ""
	var args []any
	if eventType != "" {
		where = ` WHERE event_type = ?`
		args = append(args, eventType)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM security_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting security events: %w", err)
	}

	query := `SELECT id, event_type, COALESCE(user_id, ''), COALESCE(actor_id, ''),
	                 ip_address, user_agent, details, created_at
	          FROM security_events` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing security events: %w", err)
	}
	defer rows.Close()

	var events []SecurityEvent
	for rows.Next() {
		var e SecurityEvent
		var detailsJSON sql.NullString
		if err := rows.Scan(
			&e.ID, &e.EventType, &e.UserID, &e.ActorID,
			&e.IPAddress, &e.UserAgent, &detailsJSON, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scanning security event: %w", err)
		}

		if detailsJSON.Valid && detailsJSON.String != "" {
			if jsonErr := json.Unmarshal([]byte(detailsJSON.String), &e.Details); jsonErr != nil {
				e.Details = map[string]any{"_parse_error": "invalid JSON"}
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating security events: %w", err)
	}

	return events, total, nil
}
