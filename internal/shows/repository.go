package shows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ontour-app/backend/internal/models"
)

// ErrNotFound is returned when the show does not exist in the organization.
var ErrNotFound = errors.New("show not found")

const showColumns = `id, organization_id, name, date, venue, city, country, fee::float8, currency, status,
	COALESCE(booking_agency,''), COALESCE(management_agency,''), COALESCE(notes,''),
	created_by, created_at, updated_at`

// Filter narrows a show listing. Zero values mean no constraint.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Status models.ShowStatus
}

// Repository handles shows persistence. Every query is scoped by organization.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a shows repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanShow(row pgx.Row) (*models.Show, error) {
	var s models.Show
	err := row.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Date, &s.Venue, &s.City, &s.Country, &s.Fee,
		&s.Currency, &s.Status, &s.BookingAgency, &s.ManagementAgency, &s.Notes,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List returns the organization's shows ordered by date.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, f Filter) ([]models.Show, error) {
	where := []string{"organization_id = $1"}
	args := []any{orgID}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("date < $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	rows, err := r.pool.Query(ctx, `SELECT `+showColumns+` FROM shows WHERE `+
		strings.Join(where, " AND ")+` ORDER BY date`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Show{}
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Get returns one show.
func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Show, error) {
	return scanShow(r.pool.QueryRow(ctx, `SELECT `+showColumns+` FROM shows
		WHERE organization_id = $1 AND id = $2`, orgID, id))
}

// Create inserts a show.
func (r *Repository) Create(ctx context.Context, s *models.Show) error {
	const q = `INSERT INTO shows (organization_id, name, date, venue, city, country, fee, currency, status,
			booking_agency, management_agency, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10,''), NULLIF($11,''), NULLIF($12,''), $13)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.OrganizationID, s.Name, s.Date, s.Venue, s.City, s.Country, s.Fee,
		s.Currency, s.Status, s.BookingAgency, s.ManagementAgency, s.Notes, s.CreatedBy).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Update stores every editable field.
func (r *Repository) Update(ctx context.Context, s *models.Show) error {
	const q = `UPDATE shows SET name = $3, date = $4, venue = $5, city = $6, country = $7, fee = $8,
			currency = $9, status = $10, booking_agency = NULLIF($11,''), management_agency = NULLIF($12,''),
			notes = NULLIF($13,''), updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, s.OrganizationID, s.ID, s.Name, s.Date, s.Venue, s.City, s.Country,
		s.Fee, s.Currency, s.Status, s.BookingAgency, s.ManagementAgency, s.Notes).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Cancel marks a show cancelled. Shows are never removed.
func (r *Repository) Cancel(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE shows SET status = $3, updated_at = NOW()
		WHERE organization_id = $1 AND id = $2`, orgID, id, models.ShowCancelled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
