package version

import (
	"context"
	"errors"
	"testing"

	"github.com/library-registry/library-registry/internal/db/models"
)

// scopeStore is an in-memory ScopeFinder keyed by (cnpj, machine); it also
// counts queries so tests can assert how many tiers were consulted.
type scopeStore struct {
	records map[string]*models.LibraryVersion
	calls   int
	err     error
}

func scopeKey(cnpj, machine *string) string {
	key := "|"
	if cnpj != nil {
		key = *cnpj + "|"
	}
	if machine != nil {
		key += *machine
	}
	return key
}

func newScopeStore() *scopeStore {
	return &scopeStore{records: make(map[string]*models.LibraryVersion)}
}

func (s *scopeStore) add(cnpj, machine *string, v *models.LibraryVersion) {
	s.records[scopeKey(cnpj, machine)] = v
}

func (s *scopeStore) FindActiveByScope(_ context.Context, _ string, cnpj, machine *string) (*models.LibraryVersion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[scopeKey(cnpj, machine)]
	if !ok || !record.Active {
		return nil, nil
	}
	return record, nil
}

func strPtr(s string) *string { return &s }

func activeVersion(label string) *models.LibraryVersion {
	return &models.LibraryVersion{Version: label, Active: true}
}

func TestResolveMachineTierWins(t *testing.T) {
	store := newScopeStore()
	store.add(nil, nil, activeVersion("1.0.0"))
	store.add(strPtr("06210435000147"), nil, activeVersion("2.0.0"))
	store.add(strPtr("06210435000147"), strPtr("pdv-01"), activeVersion("3.0.0"))

	info, err := NewResolver(store).Resolve(context.Background(), "lib-1", "06210435000147", "pdv-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil || info.Version != "3.0.0" {
		t.Fatalf("expected machine override 3.0.0, got %+v", info)
	}
	if store.calls != 1 {
		t.Errorf("expected 1 scope query, got %d", store.calls)
	}
}

func TestResolveTenantTierWins(t *testing.T) {
	store := newScopeStore()
	store.add(nil, nil, activeVersion("9.8.0.9"))
	store.add(strPtr("06210435000147"), nil, activeVersion("9.18.0.1"))

	// No machine-specific record exists for any-pc; the tenant tier wins
	// over the default.
	info, err := NewResolver(store).Resolve(context.Background(), "lib-1", "06210435000147", "any-pc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil || info.Version != "9.18.0.1" {
		t.Fatalf("expected tenant override 9.18.0.1, got %+v", info)
	}
}

func TestResolveFallsThroughToDefault(t *testing.T) {
	store := newScopeStore()
	store.add(nil, nil, activeVersion("9.8.0.9"))
	store.add(strPtr("06210435000147"), nil, activeVersion("9.18.0.1"))

	info, err := NewResolver(store).Resolve(context.Background(), "lib-1", "11111111000199", "any-pc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil || info.Version != "9.8.0.9" {
		t.Fatalf("expected default 9.8.0.9, got %+v", info)
	}
	if store.calls != 3 {
		t.Errorf("expected all 3 tiers consulted, got %d", store.calls)
	}
}

func TestResolveSkipsMachineTierWithoutCNPJ(t *testing.T) {
	store := newScopeStore()
	store.add(nil, nil, activeVersion("1.0.0"))
	// Structurally permitted but never privileged: machine set, cnpj null.
	store.add(nil, strPtr("pdv-01"), activeVersion("referee"))

	info, err := NewResolver(store).Resolve(context.Background(), "lib-1", "", "pdv-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil || info.Version != "1.0.0" {
		t.Fatalf("expected default 1.0.0, got %+v", info)
	}
	if store.calls != 1 {
		t.Errorf("expected only the default tier consulted, got %d", store.calls)
	}
}

func TestResolveInactiveRecordsIgnored(t *testing.T) {
	store := newScopeStore()
	store.add(nil, nil, activeVersion("1.0.0"))
	inactive := activeVersion("2.0.0")
	inactive.Active = false
	store.add(strPtr("06210435000147"), nil, inactive)

	info, err := NewResolver(store).Resolve(context.Background(), "lib-1", "06210435000147", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info == nil || info.Version != "1.0.0" {
		t.Fatalf("expected inactive tenant record skipped, got %+v", info)
	}
}

func TestResolveNoMatchIsNotAnError(t *testing.T) {
	store := newScopeStore()

	info, err := NewResolver(store).Resolve(context.Background(), "lib-1", "06210435000147", "pdv-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info != nil {
		t.Fatalf("expected nil info for empty store, got %+v", info)
	}
}

func TestResolvePropagatesStoreError(t *testing.T) {
	store := newScopeStore()
	store.err = errors.New("connection refused")

	_, err := NewResolver(store).Resolve(context.Background(), "lib-1", "", "")
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestResolveCarriesDownloadURLs(t *testing.T) {
	store := newScopeStore()
	record := activeVersion("1.2.3")
	record.DownloadURLPrimary = strPtr("https://cdn.example.com/lib-1.2.3.zip")
	record.DownloadURLSecondary = strPtr("https://mirror.example.com/lib-1.2.3.zip")
	store.add(nil, nil, record)

	info, err := NewResolver(store).Resolve(context.Background(), "lib-1", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.DownloadURLPrimary == nil || *info.DownloadURLPrimary != "https://cdn.example.com/lib-1.2.3.zip" {
		t.Errorf("primary URL not carried: %+v", info)
	}
	if info.DownloadURLSecondary == nil || *info.DownloadURLSecondary != "https://mirror.example.com/lib-1.2.3.zip" {
		t.Errorf("secondary URL not carried: %+v", info)
	}
}
