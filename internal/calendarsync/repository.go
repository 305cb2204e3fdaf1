package calendarsync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ontour-app/backend/internal/models"
)

// ErrNotConfigured is returned when the user has never enabled calendar sync.
var ErrNotConfigured = errors.New("calendar sync is not configured")

const configColumns = `user_id, organization_id, server_url, username, encrypted_password, calendar_url,
	direction, enabled, last_sync, COALESCE(last_error,''), created_at, updated_at`

// Repository handles sync_configs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sync config repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanConfig(row pgx.Row) (*models.SyncConfig, error) {
	var c models.SyncConfig
	err := row.Scan(&c.UserID, &c.OrganizationID, &c.ServerURL, &c.Username, &c.EncryptedPassword,
		&c.CalendarURL, &c.Direction, &c.Enabled, &c.LastSync, &c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}
	return &c, nil
}

// Get returns the user's sync config.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*models.SyncConfig, error) {
	return scanConfig(r.pool.QueryRow(ctx, `SELECT `+configColumns+` FROM sync_configs WHERE user_id = $1`, userID))
}

// Upsert stores the user's connection and enables it. last_sync survives reconnecting to the same calendar.
func (r *Repository) Upsert(ctx context.Context, c *models.SyncConfig) error {
	const q = `INSERT INTO sync_configs (user_id, organization_id, server_url, username, encrypted_password, calendar_url, direction, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id, server_url = EXCLUDED.server_url,
			username = EXCLUDED.username, encrypted_password = EXCLUDED.encrypted_password,
			last_sync = CASE WHEN sync_configs.calendar_url = EXCLUDED.calendar_url
				AND sync_configs.organization_id = EXCLUDED.organization_id THEN sync_configs.last_sync END,
			calendar_url = EXCLUDED.calendar_url, direction = EXCLUDED.direction,
			enabled = TRUE, last_error = NULL, updated_at = NOW()
		RETURNING enabled, last_sync, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, c.UserID, c.OrganizationID, c.ServerURL, c.Username, c.EncryptedPassword,
		c.CalendarURL, c.Direction).Scan(&c.Enabled, &c.LastSync, &c.CreatedAt, &c.UpdatedAt)
}

// SetEnabled turns sync on or off without touching the connection.
func (r *Repository) SetEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sync_configs SET enabled = $2, updated_at = NOW() WHERE user_id = $1`, userID, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotConfigured
	}
	return nil
}

// RecordRun stores the outcome of a sync. A nil lastSync leaves the previous value.
func (r *Repository) RecordRun(ctx context.Context, userID uuid.UUID, lastSync *time.Time, lastError string) error {
	_, err := r.pool.Exec(ctx, `UPDATE sync_configs SET last_sync = COALESCE($2, last_sync),
		last_error = NULLIF($3,''), updated_at = NOW() WHERE user_id = $1`, userID, lastSync, lastError)
	return err
}

// ListEnabled returns the users whose sync is switched on.
func (r *Repository) ListEnabled(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM sync_configs WHERE enabled ORDER BY last_sync NULLS FIRST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
