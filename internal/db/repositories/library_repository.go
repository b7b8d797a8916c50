// library_repository.go implements LibraryRepository, providing database
// queries for library CRUD, the per-system active listing used by lookups, and
// the version-count referential guard on delete.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/library-registry/library-registry/internal/db/models"
)

// LibraryRepository handles database operations for libraries
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository creates a new library repository
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// Create inserts a new library record
func (r *LibraryRepository) Create(ctx context.Context, library *models.Library) error {
	query := `
		INSERT INTO libraries (system, name, description, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		library.System,
		library.Name,
		library.Description,
		library.Active,
	).Scan(&library.ID, &library.CreatedAt, &library.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateLibrary
		}
		return fmt.Errorf("failed to create library: %w", err)
	}

	return nil
}

// GetByID retrieves a library by its UUID
func (r *LibraryRepository) GetByID(ctx context.Context, id string) (*models.Library, error) {
	query := `
		SELECT id, system, name, description, active, created_at, updated_at
		FROM libraries
		WHERE id = $1
	`

	library := &models.Library{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&library.ID,
		&library.System,
		&library.Name,
		&library.Description,
		&library.Active,
		&library.CreatedAt,
		&library.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get library: %w", err)
	}

	return library, nil
}

// GetBySystemAndName retrieves a library by its unique (system, name) pair
func (r *LibraryRepository) GetBySystemAndName(ctx context.Context, system, name string) (*models.Library, error) {
	query := `
		SELECT id, system, name, description, active, created_at, updated_at
		FROM libraries
		WHERE system = $1 AND name = $2
	`

	library := &models.Library{}
	err := r.db.QueryRowContext(ctx, query, system, name).Scan(
		&library.ID,
		&library.System,
		&library.Name,
		&library.Description,
		&library.Active,
		&library.CreatedAt,
		&library.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get library by system and name: %w", err)
	}

	return library, nil
}

// ListActiveBySystem returns the active libraries for a system in insertion
// order. The ordering must be stable because it determines the order of
// entries in the lookup response.
func (r *LibraryRepository) ListActiveBySystem(ctx context.Context, system string) ([]*models.Library, error) {
	query := `
		SELECT id, system, name, description, active, created_at, updated_at
		FROM libraries
		WHERE system = $1 AND active = TRUE
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, system)
	if err != nil {
		return nil, fmt.Errorf("failed to list active libraries: %w", err)
	}
	defer rows.Close()

	var libraries []*models.Library
	for rows.Next() {
		library := &models.Library{}
		if err := rows.Scan(
			&library.ID,
			&library.System,
			&library.Name,
			&library.Description,
			&library.Active,
			&library.CreatedAt,
			&library.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}
		libraries = append(libraries, library)
	}

	return libraries, rows.Err()
}

// ListWithVersionCounts returns all libraries with their version counts,
// ordered by system then name (the admin listing view).
func (r *LibraryRepository) ListWithVersionCounts(ctx context.Context) ([]*models.LibraryWithVersionCount, error) {
	query := `
		SELECT l.id, l.system, l.name, l.description, l.active, l.created_at, l.updated_at,
		       COUNT(v.id) AS version_count
		FROM libraries l
		LEFT JOIN library_versions v ON v.library_id = l.id
		GROUP BY l.id
		ORDER BY l.system, l.name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	defer rows.Close()

	var libraries []*models.LibraryWithVersionCount
	for rows.Next() {
		library := &models.LibraryWithVersionCount{}
		if err := rows.Scan(
			&library.ID,
			&library.System,
			&library.Name,
			&library.Description,
			&library.Active,
			&library.CreatedAt,
			&library.UpdatedAt,
			&library.VersionCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}
		libraries = append(libraries, library)
	}

	return libraries, rows.Err()
}

// Update updates a library's mutable fields
func (r *LibraryRepository) Update(ctx context.Context, library *models.Library) error {
	query := `
		UPDATE libraries
		SET system = $1, name = $2, description = $3, active = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		library.System,
		library.Name,
		library.Description,
		library.Active,
		library.ID,
	).Scan(&library.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		if isUniqueViolation(err) {
			return ErrDuplicateLibrary
		}
		return fmt.Errorf("failed to update library: %w", err)
	}

	return nil
}

// CountVersions returns the number of version records owned by a library
func (r *LibraryRepository) CountVersions(ctx context.Context, libraryID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM library_versions WHERE library_id = $1`, libraryID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}
	return count, nil
}

// Delete removes a library. Deletion is refused while the library still owns
// version records so administrators cannot orphan download configurations by
// accident; versions must be removed explicitly first.
func (r *LibraryRepository) Delete(ctx context.Context, id string) error {
	count, err := r.CountVersions(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrLibraryHasVersions
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM libraries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete library: %w", err)
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
