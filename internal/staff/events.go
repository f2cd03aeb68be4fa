package staff

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TheRockzi/hackacademy/internal/apperror"
)

// SecurityEventRepository is the data access contract for the security log.
type SecurityEventRepository interface {
	// Log inserts a new security event.
	Log(ctx context.Context, event *SecurityEvent) error

	// List returns paginated events, most recent first. An empty eventType
	// returns all types.
	List(ctx context.Context, eventType string, limit, offset int) ([]SecurityEvent, int, error)
}

type securityEventRepository struct {
	db *sql.DB
}

// NewSecurityEventRepository creates a MariaDB-backed security log.
func NewSecurityEventRepository(db *sql.DB) SecurityEventRepository {
	return &securityEventRepository{db: db}
}

func (r *securityEventRepository) Log(ctx context.Context, event *SecurityEvent) error {
	query := `
		INSERT INTO security_events (event_type, user_id, actor_id, ip_address, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	var detailsJSON []byte
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("marshaling security event details: %w", err))
		}
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	// NULL for empty IDs so the columns stay joinable.
	var userID, actorID any
	if event.UserID != "" {
		userID = event.UserID
	}
	if event.ActorID != "" {
		actorID = event.ActorID
	}

	result, err := r.db.ExecContext(ctx, query,
		event.EventType, userID, actorID, event.IPAddress, detailsJSON, event.CreatedAt)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("inserting security event: %w", err))
	}

	id, _ := result.LastInsertId()
	event.ID = id
	return nil
}

func (r *securityEventRepository) List(ctx context.Context, eventType string, limit, offset int) ([]SecurityEvent, int, error) {
	countQuery := `SELECT COUNT(*) FROM security_events`
	countArgs := []any{}
	if eventType != "" {
		countQuery += ` WHERE event_type = ?`
		countArgs = append(countArgs, eventType)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("counting security events: %w", err))
	}

	query := `
		SELECT id, event_type, COALESCE(user_id, ''), COALESCE(actor_id, ''),
		       ip_address, details, created_at
		FROM security_events`

	args := []any{}
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing security events: %w", err))
	}
	defer rows.Close()

	var events []SecurityEvent
	for rows.Next() {
		var e SecurityEvent
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.UserID, &e.ActorID,
			&e.IPAddress, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, 0, apperror.NewInternal(fmt.Errorf("scanning security event: %w", err))
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, 0, apperror.NewInternal(fmt.Errorf("unmarshaling security event details: %w", err))
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("iterating security events: %w", err))
	}

	return events, total, nil
}
