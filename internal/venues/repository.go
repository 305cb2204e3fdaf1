package venues

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ontour-app/backend/internal/models"
)

// ErrNotFound is returned when the venue does not exist in the organization.
var ErrNotFound = errors.New("venue not found")

const venueColumns = `id, organization_id, name, COALESCE(address,''), COALESCE(city,''), COALESCE(country,''),
	capacity, COALESCE(notes,''), created_at, updated_at, deleted_at`

// Repository handles venues persistence. Deleted venues stay in the table with deleted_at set.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a venues repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanVenue(row pgx.Row) (*models.Venue, error) {
	var v models.Venue
	err := row.Scan(&v.ID, &v.OrganizationID, &v.Name, &v.Address, &v.City, &v.Country,
		&v.Capacity, &v.Notes, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// List returns live venues, optionally filtered by a case-insensitive name or city match.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, search string) ([]models.Venue, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+venueColumns+` FROM venues
		WHERE organization_id = $1 AND deleted_at IS NULL
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR city ILIKE '%' || $2 || '%')
		ORDER BY name`, orgID, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// Get returns a live venue.
func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Venue, error) {
	return scanVenue(r.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL`, orgID, id))
}

// Create inserts a venue.
func (r *Repository) Create(ctx context.Context, v *models.Venue) error {
	const q = `INSERT INTO venues (organization_id, name, address, city, country, capacity, notes)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), $6, NULLIF($7,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.OrganizationID, v.Name, v.Address, v.City, v.Country, v.Capacity, v.Notes).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

// Update stores every editable field of a live venue.
func (r *Repository) Update(ctx context.Context, v *models.Venue) error {
	const q = `UPDATE venues SET name = $3, address = NULLIF($4,''), city = NULLIF($5,''),
			country = NULLIF($6,''), capacity = $7, notes = NULLIF($8,''), updated_at = NOW()
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, v.OrganizationID, v.ID, v.Name, v.Address, v.City, v.Country,
		v.Capacity, v.Notes).Scan(&v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// SoftDelete sets deleted_at.
func (r *Repository) SoftDelete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE venues SET deleted_at = NOW(), updated_at = NOW()
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
