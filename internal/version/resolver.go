// Package version implements the scope-priority resolution of library
// versions. Given a library and a normalized (CNPJ, machine) scope, the
// resolver picks the most specific active version record:
//
//	machine override (cnpj + machine) > tenant override (cnpj only) > default.
//
// This ordering is the central business rule of the registry and holds
// regardless of record creation order. A record carrying a machine name but no
// CNPJ never participates: tenant absence disqualifies machine-scoped records.
package version

import (
	"context"

	"github.com/library-registry/library-registry/internal/db/models"
	"github.com/library-registry/library-registry/internal/telemetry"
)

// ScopeFinder is the storage contract the resolver needs: an exact-match query
// for the active version record of one (library, cnpj, machine) scope. A nil
// scope field matches records where that field is NULL.
type ScopeFinder interface {
	FindActiveByScope(ctx context.Context, libraryID string, cnpj, machine *string) (*models.LibraryVersion, error)
}

// Info is the resolved version payload served to clients.
type Info struct {
	Version              string  `json:"version"`
	DownloadURLPrimary   *string `json:"download_url_primary"`
	DownloadURLSecondary *string `json:"download_url_secondary"`
}

// Resolver selects the applicable version record for a caller's scope.
type Resolver struct {
	versions ScopeFinder
}

// NewResolver creates a resolver over the given version store.
func NewResolver(versions ScopeFinder) *Resolver {
	return &Resolver{versions: versions}
}

// Resolve returns the version info for the most specific active record
// matching the scope, or nil when no tier has an active record. cnpj and
// machine are already normalized (digits-only / lower-cased); empty string
// means "not provided". A nil result is a normal outcome, not an error: the
// library simply has no version for this caller and is omitted from lookups.
func (r *Resolver) Resolve(ctx context.Context, libraryID, cnpj, machine string) (*Info, error) {
	// Tier 1: machine-specific override. Only consulted when the caller
	// supplied a CNPJ; machine names are meaningless outside a tenant.
	if cnpj != "" && machine != "" {
		record, err := r.versions.FindActiveByScope(ctx, libraryID, &cnpj, &machine)
		if err != nil {
			return nil, err
		}
		if record != nil {
			telemetry.VersionResolutionsTotal.WithLabelValues("machine").Inc()
			return infoFrom(record), nil
		}
	}

	// Tier 2: tenant-wide override (machine IS NULL).
	if cnpj != "" {
		record, err := r.versions.FindActiveByScope(ctx, libraryID, &cnpj, nil)
		if err != nil {
			return nil, err
		}
		if record != nil {
			telemetry.VersionResolutionsTotal.WithLabelValues("tenant").Inc()
			return infoFrom(record), nil
		}
	}

	// Tier 3: default version (both scope fields NULL).
	record, err := r.versions.FindActiveByScope(ctx, libraryID, nil, nil)
	if err != nil {
		return nil, err
	}
	if record != nil {
		telemetry.VersionResolutionsTotal.WithLabelValues("default").Inc()
		return infoFrom(record), nil
	}

	telemetry.VersionResolutionsTotal.WithLabelValues("none").Inc()
	return nil, nil
}

func infoFrom(record *models.LibraryVersion) *Info {
	return &Info{
		Version:              record.Version,
		DownloadURLPrimary:   record.DownloadURLPrimary,
		DownloadURLSecondary: record.DownloadURLSecondary,
	}
}
