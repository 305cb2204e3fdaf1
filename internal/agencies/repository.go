package agencies

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ontour-app/backend/internal/models"
)

// ErrNotFound is returned when the agency does not exist in the organization.
var ErrNotFound = errors.New("agency not found")

const agencyColumns = `id, organization_id, name, type, commission_pct, territory_mode,
	continents, countries, americas_pct, COALESCE(notes,''), created_at, updated_at`

// Repository handles agency_configs persistence. Every query is scoped by organization.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an agencies repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAgency(row pgx.Row) (*models.AgencyConfig, error) {
	var a models.AgencyConfig
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Name, &a.Type, &a.CommissionPct, &a.TerritoryMode,
		&a.Continents, &a.Countries, &a.AmericasPct, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List returns the organization's agencies ordered by type then name.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]models.AgencyConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agencyColumns+` FROM agency_configs
		WHERE organization_id = $1 ORDER BY type, name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.AgencyConfig{}
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Get returns one agency in the organization.
func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (*models.AgencyConfig, error) {
	return scanAgency(r.pool.QueryRow(ctx, `SELECT `+agencyColumns+` FROM agency_configs
		WHERE organization_id = $1 AND id = $2`, orgID, id))
}

// Create inserts an agency and fills its generated fields.
func (r *Repository) Create(ctx context.Context, a *models.AgencyConfig) error {
	const q = `INSERT INTO agency_configs (id, organization_id, name, type, commission_pct, territory_mode, continents, countries, americas_pct, notes)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, a.OrganizationID, a.Name, a.Type, a.CommissionPct, a.TerritoryMode,
		a.Continents, a.Countries, a.AmericasPct, a.Notes).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// CreateMany inserts several agencies in one transaction.
func (r *Repository) CreateMany(ctx context.Context, orgID uuid.UUID, list []models.AgencyConfig) ([]models.AgencyConfig, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	const q = `INSERT INTO agency_configs (id, organization_id, name, type, commission_pct, territory_mode, continents, countries, americas_pct, notes)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''))
		RETURNING id, created_at, updated_at`
	out := make([]models.AgencyConfig, 0, len(list))
	for _, a := range list {
		a.OrganizationID = orgID
		if err := tx.QueryRow(ctx, q, orgID, a.Name, a.Type, a.CommissionPct, a.TerritoryMode,
			a.Continents, a.Countries, a.AmericasPct, a.Notes).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, tx.Commit(ctx)
}

// Update replaces an agency's terms.
func (r *Repository) Update(ctx context.Context, a *models.AgencyConfig) error {
	const q = `UPDATE agency_configs SET name = $3, type = $4, commission_pct = $5, territory_mode = $6,
		continents = $7, countries = $8, americas_pct = $9, notes = NULLIF($10,''), updated_at = NOW()
		WHERE organization_id = $1 AND id = $2
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, a.OrganizationID, a.ID, a.Name, a.Type, a.CommissionPct, a.TerritoryMode,
		a.Continents, a.Countries, a.AmericasPct, a.Notes).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes an agency from the organization.
func (r *Repository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM agency_configs WHERE organization_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
