// Package models - library_version.go defines the LibraryVersion model: one
// version record per (library, tenant CNPJ, machine) scope combination.
package models

import "time"

// LibraryVersion represents a version record for a library, scoped to an
// optional client CNPJ and an optional machine name. Both scope fields NULL
// marks the default version. MachineName is stored lower-cased so scope
// comparison is case-insensitive.
type LibraryVersion struct {
	ID                   string    `json:"id" db:"id"`
	LibraryID            string    `json:"library_id" db:"library_id"`
	ClientCNPJ           *string   `json:"client_cnpj,omitempty" db:"client_cnpj"`
	MachineName          *string   `json:"machine_name,omitempty" db:"machine_name"`
	Version              string    `json:"version" db:"version"`
	DownloadURLPrimary   *string   `json:"download_url_primary,omitempty" db:"download_url_primary"`
	DownloadURLSecondary *string   `json:"download_url_secondary,omitempty" db:"download_url_secondary"`
	Active               bool      `json:"active" db:"active"`
	Notes                *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// IsDefault reports whether this record is the library's default version
// (no CNPJ and no machine scope).
func (v *LibraryVersion) IsDefault() bool {
	return v.ClientCNPJ == nil && v.MachineName == nil
}
