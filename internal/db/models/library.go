// Package models - library.go defines the Library model representing a client
// library registered under a software system (product family).
package models

import "time"

// Library represents a distributable client library that belongs to a system.
// The (system, name) pair is unique.
type Library struct {
	ID          string    `json:"id" db:"id"`
	System      string    `json:"system" db:"system"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// LibraryWithVersionCount is returned by the admin listing and carries the
// number of version records owned by the library, fetched in a single query.
type LibraryWithVersionCount struct {
	Library
	VersionCount int `json:"version_count" db:"version_count"`
}
