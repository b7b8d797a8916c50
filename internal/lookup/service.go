// Package lookup implements the public version-lookup operation: normalize the
// caller's scope, serve from cache when possible, otherwise resolve every
// active library of the system and cache the assembled result.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/library-registry/library-registry/internal/cache"
	"github.com/library-registry/library-registry/internal/db/models"
	"github.com/library-registry/library-registry/internal/telemetry"
	"github.com/library-registry/library-registry/internal/validation"
	"github.com/library-registry/library-registry/internal/version"
)

// LibraryLister enumerates the active libraries of a system in stable storage
// order.
type LibraryLister interface {
	ListActiveBySystem(ctx context.Context, system string) ([]*models.Library, error)
}

// Resolver resolves one library's version for a normalized scope.
type Resolver interface {
	Resolve(ctx context.Context, libraryID, cnpj, machine string) (*version.Info, error)
}

// LibraryResult is one entry in the lookup response.
type LibraryResult struct {
	Library              string  `json:"library"`
	Version              string  `json:"version"`
	DownloadURLPrimary   *string `json:"download_url_primary"`
	DownloadURLSecondary *string `json:"download_url_secondary"`
}

// Result is the full lookup response payload. CNPJ and MachineName echo the
// normalized values so clients can see what scope was actually applied.
type Result struct {
	CNPJ        string          `json:"cnpj"`
	MachineName string          `json:"machine_name"`
	System      string          `json:"system"`
	Libraries   []LibraryResult `json:"libraries"`
}

// Service is the externally callable lookup operation.
type Service struct {
	libraries LibraryLister
	resolver  Resolver
	store     cache.Store
	ttl       time.Duration
}

// NewService wires the lookup service. ttl <= 0 falls back to cache.DefaultTTL.
func NewService(libraries LibraryLister, resolver Resolver, store cache.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Service{
		libraries: libraries,
		resolver:  resolver,
		store:     store,
		ttl:       ttl,
	}
}

// Lookup resolves the versions of every active library under system for the
// given raw scope. The returned bool reports whether the result came from
// cache. Raw inputs are normalized here with the same rules the admin write
// path uses, so cache keys and stored scopes always line up.
//
// Libraries with no resolvable version are omitted from the result entirely;
// an empty Libraries slice is a valid response, not an error.
func (s *Service) Lookup(ctx context.Context, system, rawCNPJ, rawMachine string) (*Result, bool, error) {
	cnpj := validation.NormalizeCNPJ(rawCNPJ)
	machine := validation.NormalizeMachine(rawMachine)

	key := cache.Key(system, cnpj, machine)
	if cached, ok, err := s.store.Get(ctx, key); err == nil && ok {
		result := &Result{}
		if err := json.Unmarshal(cached, result); err == nil {
			telemetry.LookupRequestsTotal.WithLabelValues(system, "hit").Inc()
			return result, true, nil
		}
		// Undecodable entry (e.g. written by an older build): fall through
		// and recompute; the Set below overwrites it.
	}

	result, err := s.compute(ctx, system, cnpj, machine)
	if err != nil {
		return nil, false, err
	}
	telemetry.LookupRequestsTotal.WithLabelValues(system, "miss").Inc()

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode lookup result: %w", err)
	}
	// Two concurrent misses for the same key may both land here; last writer
	// wins, which is fine because both computed the same value.
	if err := s.store.Set(ctx, key, payload, s.ttl); err != nil {
		return nil, false, err
	}

	return result, false, nil
}

func (s *Service) compute(ctx context.Context, system, cnpj, machine string) (*Result, error) {
	libraries, err := s.libraries.ListActiveBySystem(ctx, system)
	if err != nil {
		return nil, err
	}

	result := &Result{
		CNPJ:        cnpj,
		MachineName: machine,
		System:      system,
		Libraries:   []LibraryResult{},
	}

	for _, library := range libraries {
		info, err := s.resolver.Resolve(ctx, library.ID, cnpj, machine)
		if err != nil {
			return nil, err
		}
		if info == nil {
			// No active record at any tier: excluded, not an error.
			continue
		}
		result.Libraries = append(result.Libraries, LibraryResult{
			Library:              library.Name,
			Version:              info.Version,
			DownloadURLPrimary:   info.DownloadURLPrimary,
			DownloadURLSecondary: info.DownloadURLSecondary,
		})
	}

	return result, nil
}

// Invalidate drops every cached lookup result. Called after any library or
// version mutation; flushing everything instead of picking affected keys is a
// deliberate correctness-over-hit-rate trade, since the value space is small
// and admin writes are rare.
func (s *Service) Invalidate(ctx context.Context) error {
	telemetry.CacheFlushesTotal.Inc()
	return s.store.Flush(ctx)
}
