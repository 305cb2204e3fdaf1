package contacts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ontour-app/backend/internal/models"
)

// ErrNotFound is returned when the contact does not exist in the organization.
var ErrNotFound = errors.New("contact not found")

const contactColumns = `id, organization_id, name, COALESCE(email,''), COALESCE(phone,''), COALESCE(role,''),
	COALESCE(company,''), COALESCE(notes,''), created_at, updated_at, deleted_at`

// Repository handles contacts persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a contacts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanContact(row pgx.Row) (*models.Contact, error) {
	var ct models.Contact
	err := row.Scan(&ct.ID, &ct.OrganizationID, &ct.Name, &ct.Email, &ct.Phone, &ct.Role,
		&ct.Company, &ct.Notes, &ct.CreatedAt, &ct.UpdatedAt, &ct.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ct, nil
}

// List returns live contacts. search matches name, company or email.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, search string) ([]models.Contact, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE organization_id = $1 AND deleted_at IS NULL
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR company ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')
		ORDER BY name`, orgID, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Contact{}
	for rows.Next() {
		ct, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *ct)
	}
	return list, rows.Err()
}

// Get returns a live contact.
func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL`, orgID, id))
}

// Create inserts a contact.
func (r *Repository) Create(ctx context.Context, ct *models.Contact) error {
	const q = `INSERT INTO contacts (organization_id, name, email, phone, role, company, notes)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NULLIF($7,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, ct.OrganizationID, ct.Name, ct.Email, ct.Phone, ct.Role, ct.Company, ct.Notes).
		Scan(&ct.ID, &ct.CreatedAt, &ct.UpdatedAt)
}

// Update stores every editable field of a live contact.
func (r *Repository) Update(ctx context.Context, ct *models.Contact) error {
	const q = `UPDATE contacts SET name = $3, email = NULLIF($4,''), phone = NULLIF($5,''),
			role = NULLIF($6,''), company = NULLIF($7,''), notes = NULLIF($8,''), updated_at = NOW()
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, ct.OrganizationID, ct.ID, ct.Name, ct.Email, ct.Phone, ct.Role,
		ct.Company, ct.Notes).Scan(&ct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// SoftDelete sets deleted_at.
func (r *Repository) SoftDelete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE contacts SET deleted_at = NOW(), updated_at = NOW()
		WHERE organization_id = $1 AND id = $2 AND deleted_at IS NULL`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
