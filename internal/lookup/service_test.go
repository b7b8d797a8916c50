package lookup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/library-registry/library-registry/internal/cache"
	"github.com/library-registry/library-registry/internal/db/models"
	"github.com/library-registry/library-registry/internal/version"
)

// fakeLister returns a fixed library list for one system.
type fakeLister struct {
	system    string
	libraries []*models.Library
}

func (f *fakeLister) ListActiveBySystem(_ context.Context, system string) ([]*models.Library, error) {
	if system != f.system {
		return nil, nil
	}
	return f.libraries, nil
}

// countingResolver resolves from a map keyed by libraryID+"|"+cnpj+"|"+machine
// and counts invocations so tests can prove cache hits skip resolution.
type countingResolver struct {
	answers map[string]*version.Info
	calls   int
}

func (r *countingResolver) Resolve(_ context.Context, libraryID, cnpj, machine string) (*version.Info, error) {
	r.calls++
	return r.answers[libraryID+"|"+cnpj+"|"+machine], nil
}

func lib(id, name string) *models.Library {
	return &models.Library{ID: id, Name: name, System: "SETA", Active: true}
}

func newFixture(t *testing.T) (*Service, *countingResolver, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(time.Hour)
	t.Cleanup(store.Stop)

	lister := &fakeLister{
		system: "SETA",
		libraries: []*models.Library{
			lib("lib-fiscal", "Fiscal Flow"),
			lib("lib-sync", "Sync Agent"),
		},
	}
	resolver := &countingResolver{answers: map[string]*version.Info{
		// Fiscal Flow: default 9.8.0.9, tenant override 9.18.0.1.
		"lib-fiscal|06210435000147|any-pc": nil,
		"lib-fiscal|06210435000147|":       {Version: "9.18.0.1"},
		"lib-fiscal|11111111000199|any-pc": nil,
		"lib-fiscal|11111111000199|":       nil,
		"lib-fiscal||":                     {Version: "9.8.0.9"},
		// Sync Agent has no version records at all.
	}}

	// The stub resolver answers exact scope keys, so emulate tier fallback
	// the way the real resolver does.
	return NewService(lister, &tieredStub{resolver}, store, time.Minute), resolver, store
}

// tieredStub layers the resolver's tier order on top of countingResolver's
// exact-match map, counting one call per library resolution.
type tieredStub struct {
	inner *countingResolver
}

func (s *tieredStub) Resolve(ctx context.Context, libraryID, cnpj, machine string) (*version.Info, error) {
	s.inner.calls++
	if cnpj != "" && machine != "" {
		if info := s.inner.answers[libraryID+"|"+cnpj+"|"+machine]; info != nil {
			return info, nil
		}
	}
	if cnpj != "" {
		if info := s.inner.answers[libraryID+"|"+cnpj+"|"]; info != nil {
			return info, nil
		}
	}
	return s.inner.answers[libraryID+"||"], nil
}

func TestLookupTenantOverrideWins(t *testing.T) {
	svc, _, _ := newFixture(t)

	result, hit, err := svc.Lookup(context.Background(), "SETA", "06.210.435/0001-47", "ANY-PC")
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Equal(t, "06210435000147", result.CNPJ)
	assert.Equal(t, "any-pc", result.MachineName)
	assert.Equal(t, "SETA", result.System)

	require.Len(t, result.Libraries, 1, "Sync Agent has no versions and must be omitted")
	assert.Equal(t, "Fiscal Flow", result.Libraries[0].Library)
	assert.Equal(t, "9.18.0.1", result.Libraries[0].Version)
}

func TestLookupFallsThroughToDefault(t *testing.T) {
	svc, _, _ := newFixture(t)

	result, _, err := svc.Lookup(context.Background(), "SETA", "11111111000199", "ANY-PC")
	require.NoError(t, err)

	require.Len(t, result.Libraries, 1)
	assert.Equal(t, "9.8.0.9", result.Libraries[0].Version)
}

func TestLookupOmitsUnresolvableLibraries(t *testing.T) {
	svc, _, _ := newFixture(t)

	result, _, err := svc.Lookup(context.Background(), "SETA", "06210435000147", "pdv-01")
	require.NoError(t, err)

	for _, entry := range result.Libraries {
		assert.NotEqual(t, "Sync Agent", entry.Library)
		assert.NotEmpty(t, entry.Version, "omitted libraries must not appear with empty versions")
	}
}

func TestLookupCacheRoundTrip(t *testing.T) {
	svc, resolver, _ := newFixture(t)
	ctx := context.Background()

	_, hit, err := svc.Lookup(ctx, "SETA", "06210435000147", "any-pc")
	require.NoError(t, err)
	assert.False(t, hit)
	callsAfterMiss := resolver.calls
	assert.Positive(t, callsAfterMiss)

	result, hit, err := svc.Lookup(ctx, "SETA", "06210435000147", "any-pc")
	require.NoError(t, err)
	assert.True(t, hit, "second identical lookup within TTL must be a cache hit")
	assert.Equal(t, callsAfterMiss, resolver.calls, "cache hit must not re-invoke the resolver")
	assert.Equal(t, "9.18.0.1", result.Libraries[0].Version)
}

func TestLookupCacheKeyUsesNormalizedScope(t *testing.T) {
	svc, resolver, _ := newFixture(t)
	ctx := context.Background()

	_, _, err := svc.Lookup(ctx, "SETA", "06.210.435/0001-47", "ANY-PC")
	require.NoError(t, err)
	calls := resolver.calls

	// Differently formatted but equivalent inputs must hit the same entry.
	_, hit, err := svc.Lookup(ctx, "SETA", "06210435000147", "any-pc")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, calls, resolver.calls)
}

func TestInvalidateForcesRecompute(t *testing.T) {
	svc, resolver, _ := newFixture(t)
	ctx := context.Background()

	_, _, err := svc.Lookup(ctx, "SETA", "06210435000147", "any-pc")
	require.NoError(t, err)
	calls := resolver.calls

	require.NoError(t, svc.Invalidate(ctx))

	_, hit, err := svc.Lookup(ctx, "SETA", "06210435000147", "any-pc")
	require.NoError(t, err)
	assert.False(t, hit, "lookup after invalidation must recompute")
	assert.Greater(t, resolver.calls, calls)
}

func TestLookupUnknownSystemReturnsEmptyList(t *testing.T) {
	svc, _, _ := newFixture(t)

	result, _, err := svc.Lookup(context.Background(), "OTHER", "06210435000147", "any-pc")
	require.NoError(t, err)
	assert.NotNil(t, result.Libraries)
	assert.Empty(t, result.Libraries)
}
