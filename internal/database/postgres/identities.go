package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// IdentityRepository provides PostgreSQL-backed gallery storage.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `id, display_name, designation, image_path, template, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*database.Identity, error) {
	var identity database.Identity
	var vec pgvector.Vector
	if err := row.Scan(&identity.ID, &identity.DisplayName, &identity.Designation,
		&identity.ImagePath, &vec, &identity.CreatedAt); err != nil {
		return nil, err
	}
	identity.Template = vec.Slice()
	return &identity, nil
}

func scanIdentities(rows *sql.Rows) ([]database.Identity, error) {
	var identities []database.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// Lookup retrieves an identity by ID. Returns nil if not found.
func (r *IdentityRepository) Lookup(ctx context.Context, id int64) (*database.Identity, error) {
	identity, err := scanIdentity(r.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return identity, nil
}

// All returns every enrolled identity ordered by ID.
func (r *IdentityRepository) All(ctx context.Context) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

// Count returns the number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// FindByName returns identities whose display name matches after normalization.
// The SQL expression mirrors database.NormalizePersonName.
func (r *IdentityRepository) FindByName(ctx context.Context, name string) ([]database.Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE TRIM(REGEXP_REPLACE(
			LOWER(TRANSLATE(unaccent(display_name), '-_', '  ')),
			'\s+', ' ', 'g')) = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, database.NormalizePersonName(name))
	if err != nil {
		return nil, fmt.Errorf("query identities by name: %w", err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

// Enroll stores a new identity and fills in its ID and CreatedAt.
func (r *IdentityRepository) Enroll(ctx context.Context, identity *database.Identity) error {
	if len(identity.Template) != constants.TemplateDim {
		return fmt.Errorf("template has %d values, want %d", len(identity.Template), constants.TemplateDim)
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO identities (display_name, designation, image_path, template)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, identity.DisplayName, identity.Designation, identity.ImagePath, pgvector.NewVector(identity.Template),
	).Scan(&identity.ID, &identity.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// Delete removes an identity. Its attendance history is removed by the foreign key cascade.
func (r *IdentityRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM identities WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

var _ database.GalleryWriter = (*IdentityRepository)(nil)
