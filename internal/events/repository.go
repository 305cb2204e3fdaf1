package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ontour-app/backend/internal/models"
)

// ErrNotFound is returned when the event does not exist in the organization.
var ErrNotFound = errors.New("event not found")

const eventColumns = `id, organization_id, user_id, COALESCE(uid,''), title, start_at, end_at,
	COALESCE(location,''), COALESCE(description,''), status, type, show_id, COALESCE(rrule,''),
	synced_from_calendar, COALESCE(remote_href,''), created_at, updated_at, deleted_at`

// Repository handles calendar_events persistence. Every query is scoped by organization.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.CalendarEvent, error) {
	var e models.CalendarEvent
	err := row.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.UID, &e.Title, &e.Start, &e.End,
		&e.Location, &e.Description, &e.Status, &e.Type, &e.ShowID, &e.RRule,
		&e.SyncedFromCalendar, &e.RemoteHref, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func collect(rows pgx.Rows) ([]models.CalendarEvent, error) {
	defer rows.Close()
	list := []models.CalendarEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// ListRange returns live events overlapping [from, to) plus every recurring event
// that started before to, so callers can expand occurrences.
func (r *Repository) ListRange(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]models.CalendarEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM calendar_events
		WHERE organization_id = $1 AND deleted_at IS NULL AND start_at < $3
		  AND (end_at > $2 OR COALESCE(rrule,'') <> '')
		ORDER BY start_at`, orgID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListAll returns every live event in the organization.
func (r *Repository) ListAll(ctx context.Context, orgID uuid.UUID) ([]models.CalendarEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM calendar_events
		WHERE organization_id = $1 AND deleted_at IS NULL ORDER BY start_at`, orgID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Get returns a live event.
func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (*models.CalendarEvent, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM calendar_events
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL`, orgID, id))
}

// FindByUID returns the event carrying a remote UID, soft-deleted rows included.
func (r *Repository) FindByUID(ctx context.Context, orgID uuid.UUID, uid string) (*models.CalendarEvent, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM calendar_events
		WHERE organization_id = $1 AND uid = $2`, orgID, uid))
}

// ChangedSince returns events created, updated or deleted after since.
// A nil since returns everything, deleted rows included.
func (r *Repository) ChangedSince(ctx context.Context, orgID uuid.UUID, since *time.Time) ([]models.CalendarEvent, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if since == nil {
		rows, err = r.pool.Query(ctx, `SELECT `+eventColumns+` FROM calendar_events
			WHERE organization_id = $1 ORDER BY updated_at`, orgID)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+eventColumns+` FROM calendar_events
			WHERE organization_id = $1 AND updated_at > $2 ORDER BY updated_at`, orgID, *since)
	}
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Create inserts an event and fills its generated fields.
func (r *Repository) Create(ctx context.Context, e *models.CalendarEvent) error {
	const q = `INSERT INTO calendar_events (id, organization_id, user_id, uid, title, start_at, end_at,
			location, description, status, type, show_id, rrule, synced_from_calendar)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), $4, $5, $6, NULLIF($7,''), NULLIF($8,''), $9, $10, $11, NULLIF($12,''), $13)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.OrganizationID, e.UserID, e.UID, e.Title, e.Start, e.End,
		e.Location, e.Description, e.Status, e.Type, e.ShowID, e.RRule, e.SyncedFromCalendar).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update replaces a live event's fields and bumps updated_at.
func (r *Repository) Update(ctx context.Context, e *models.CalendarEvent) error {
	const q = `UPDATE calendar_events SET title = $3, start_at = $4, end_at = $5, location = NULLIF($6,''),
			description = NULLIF($7,''), status = $8, type = $9, show_id = $10, rrule = NULLIF($11,''), updated_at = NOW()
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.OrganizationID, e.ID, e.Title, e.Start, e.End, e.Location,
		e.Description, e.Status, e.Type, e.ShowID, e.RRule).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// SoftDelete marks an event deleted. updated_at moves too so the next export removes the remote copy.
func (r *Repository) SoftDelete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE calendar_events SET deleted_at = NOW(), updated_at = NOW()
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveImported inserts or overwrites an event pulled from a remote calendar.
// updated_at is set to at rather than NOW() so the row is not exported back.
func (r *Repository) SaveImported(ctx context.Context, e *models.CalendarEvent, at time.Time) error {
	const q = `INSERT INTO calendar_events (id, organization_id, user_id, uid, title, start_at, end_at,
			location, description, status, type, rrule, synced_from_calendar, remote_href, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, NULLIF($7,''), NULLIF($8,''), $9, $10, NULLIF($11,''), TRUE, NULLIF($13,''), $12, $12)
		ON CONFLICT (organization_id, uid) DO UPDATE SET
			title = EXCLUDED.title, start_at = EXCLUDED.start_at, end_at = EXCLUDED.end_at,
			location = EXCLUDED.location, description = EXCLUDED.description, status = EXCLUDED.status,
			type = EXCLUDED.type, rrule = EXCLUDED.rrule, updated_at = EXCLUDED.updated_at, deleted_at = NULL,
			remote_href = COALESCE(EXCLUDED.remote_href, calendar_events.remote_href)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.OrganizationID, e.UserID, e.UID, e.Title, e.Start, e.End,
		e.Location, e.Description, e.Status, e.Type, e.RRule, at, e.RemoteHref).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// SetUID records the UID and object href a remote server assigned. updated_at is left alone.
func (r *Repository) SetUID(ctx context.Context, orgID, id uuid.UUID, uid, href string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE calendar_events SET uid = $3, remote_href = NULLIF($4,'')
		WHERE organization_id = $1 AND id = $2`, orgID, id, uid, href)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
