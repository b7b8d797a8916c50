// errors.go defines the sentinel errors shared by the repositories so handlers
// can map storage conflicts to HTTP status codes without string matching.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateLibrary is returned when a (system, name) pair already exists.
	ErrDuplicateLibrary = errors.New("a library with this name already exists in this system")

	// ErrDuplicateScope is returned when a (library, cnpj, machine) version
	// scope already exists.
	ErrDuplicateScope = errors.New("a version already exists for this CNPJ/machine scope in this library")

	// ErrLibraryHasVersions is returned when deleting a library that still owns
	// version records.
	ErrLibraryHasVersions = errors.New("library has registered versions and cannot be deleted")
)

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
