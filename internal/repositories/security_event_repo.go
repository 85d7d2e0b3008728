package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityEventRepository persists security events. Rows are append-only.
type SecurityEventRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityEventRepository creates a new SecurityEventRepository
func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{pool: db.Pool}
}

const securityEventColumns = `id, event_kind, occurred_at, client_ip, user_agent, user_id, path, method, details`

func scanSecurityEventRow(row rowScanner) (*models.SecurityEvent, error) {
	var event models.SecurityEvent
	var kind string

	err := row.Scan(
		&event.ID, &kind, &event.Timestamp, &event.ClientIP, &event.UserAgent,
		&event.UserID, &event.Path, &event.Method, &event.Details,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	event.Kind = models.SecurityEventKind(kind)
	return &event, nil
}

func scanSecurityEventRows(rows pgx.Rows) ([]*models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)

	for rows.Next() {
		event, err := scanSecurityEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}

// Create inserts a security event
func (r *SecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (` + securityEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, string(event.Kind), event.Timestamp, event.ClientIP, event.UserAgent,
		event.UserID, event.Path, event.Method, event.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to create security event: %w", database.MapPostgresError(err))
	}

	return nil
}

// List returns the most recent events, optionally filtered by kind
func (r *SecurityEventRepository) List(ctx context.Context, kind models.SecurityEventKind, limit, offset int) ([]*models.SecurityEvent, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if kind == "" {
		query := `
			SELECT ` + securityEventColumns + `
			FROM security_events
			ORDER BY occurred_at DESC
			LIMIT $1 OFFSET $2
		`
		rows, err = r.pool.Query(ctx, query, limit, offset)
	} else {
		query := `
			SELECT ` + securityEventColumns + `
			FROM security_events
			WHERE event_kind = $1
			ORDER BY occurred_at DESC
			LIMIT $2 OFFSET $3
		`
		rows, err = r.pool.Query(ctx, query, string(kind), limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanSecurityEventRows(rows)
}

// CountSince counts events of kind recorded after since
func (r *SecurityEventRepository) CountSince(ctx context.Context, kind models.SecurityEventKind, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM security_events
		WHERE event_kind = $1 AND occurred_at >= $2
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, string(kind), since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count security events: %w", err)
	}

	return count, nil
}

// DeleteBefore removes events recorded before cutoff
func (r *SecurityEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM security_events WHERE occurred_at < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup security events: %w", err)
	}

	return result.RowsAffected(), nil
}
