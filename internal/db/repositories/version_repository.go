// version_repository.go implements VersionRepository, providing database
// queries for library version CRUD and the exact-scope lookups the resolver
// runs per priority tier.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/library-registry/library-registry/internal/db/models"
)

// VersionRepository handles database operations for library versions
type VersionRepository struct {
	db *sql.DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

const versionColumns = `id, library_id, client_cnpj, machine_name, version,
	download_url_primary, download_url_secondary, active, notes, created_at, updated_at`

func scanVersion(row *sql.Row) (*models.LibraryVersion, error) {
	v := &models.LibraryVersion{}
	err := row.Scan(
		&v.ID,
		&v.LibraryID,
		&v.ClientCNPJ,
		&v.MachineName,
		&v.Version,
		&v.DownloadURLPrimary,
		&v.DownloadURLSecondary,
		&v.Active,
		&v.Notes,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	return v, nil
}

// Create inserts a new version record. ClientCNPJ and MachineName are assumed
// normalized (digits-only CNPJ, lower-cased machine) by the caller.
func (r *VersionRepository) Create(ctx context.Context, version *models.LibraryVersion) error {
	query := `
		INSERT INTO library_versions
			(library_id, client_cnpj, machine_name, version, download_url_primary, download_url_secondary, active, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		version.LibraryID,
		version.ClientCNPJ,
		version.MachineName,
		version.Version,
		version.DownloadURLPrimary,
		version.DownloadURLSecondary,
		version.Active,
		version.Notes,
	).Scan(&version.ID, &version.CreatedAt, &version.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateScope
		}
		return fmt.Errorf("failed to create version: %w", err)
	}

	return nil
}

// GetByID retrieves a version record by its UUID
func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.LibraryVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM library_versions WHERE id = $1`

	v, err := scanVersion(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// FindActiveByScope returns the active version record with an exact scope
// match, or nil when the scope has no active record. A nil cnpj matches rows
// where client_cnpj IS NULL; likewise for machine. Machine comparison is
// case-insensitive on the stored side, so callers pass machine already
// lower-cased.
func (r *VersionRepository) FindActiveByScope(ctx context.Context, libraryID string, cnpj, machine *string) (*models.LibraryVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM library_versions
		WHERE library_id = $1
		  AND active = TRUE
		  AND client_cnpj IS NOT DISTINCT FROM $2
		  AND LOWER(machine_name) IS NOT DISTINCT FROM $3
		LIMIT 1
	`

	v, err := scanVersion(r.db.QueryRowContext(ctx, query, libraryID, cnpj, machine))
	if err != nil {
		return nil, fmt.Errorf("failed to find version by scope: %w", err)
	}
	return v, nil
}

// ScopeExists reports whether another version record with the given scope
// already exists in the library, excluding excludeID (pass "" on create).
func (r *VersionRepository) ScopeExists(ctx context.Context, libraryID string, cnpj, machine *string, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM library_versions
			WHERE library_id = $1
			  AND client_cnpj IS NOT DISTINCT FROM $2
			  AND LOWER(machine_name) IS NOT DISTINCT FROM $3
			  AND ($4 = '' OR id != $4::uuid)
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, libraryID, cnpj, machine, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check version scope: %w", err)
	}
	return exists, nil
}

// ListByLibrary returns all version records of a library, default version
// first, then by CNPJ and recency (the admin detail view ordering).
func (r *VersionRepository) ListByLibrary(ctx context.Context, libraryID string) ([]*models.LibraryVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM library_versions
		WHERE library_id = $1
		ORDER BY client_cnpj IS NULL DESC, client_cnpj, created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, libraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.LibraryVersion
	for rows.Next() {
		v := &models.LibraryVersion{}
		if err := rows.Scan(
			&v.ID,
			&v.LibraryID,
			&v.ClientCNPJ,
			&v.MachineName,
			&v.Version,
			&v.DownloadURLPrimary,
			&v.DownloadURLSecondary,
			&v.Active,
			&v.Notes,
			&v.CreatedAt,
			&v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

// Update updates a version record's mutable fields
func (r *VersionRepository) Update(ctx context.Context, version *models.LibraryVersion) error {
	query := `
		UPDATE library_versions
		SET client_cnpj = $1, machine_name = $2, version = $3,
		    download_url_primary = $4, download_url_secondary = $5,
		    active = $6, notes = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		version.ClientCNPJ,
		version.MachineName,
		version.Version,
		version.DownloadURLPrimary,
		version.DownloadURLSecondary,
		version.Active,
		version.Notes,
		version.ID,
	).Scan(&version.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		if isUniqueViolation(err) {
			return ErrDuplicateScope
		}
		return fmt.Errorf("failed to update version: %w", err)
	}

	return nil
}

// Delete removes a version record
func (r *VersionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM library_versions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
