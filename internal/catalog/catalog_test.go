package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/everstacklabs/modelmigrate/internal/config"
	"github.com/everstacklabs/modelmigrate/internal/docintel"
	"github.com/everstacklabs/modelmigrate/internal/vault"
)

type fakeSecrets struct {
	key string
	err error
}

func (f *fakeSecrets) GetSecret(ctx context.Context, vaultURL, name string) (string, error) {
	return f.key, f.err
}

type fakeLister struct {
	models  []docintel.ModelInfo
	details docintel.ResourceDetails
	listErr error
}

func (f *fakeLister) ListModels(ctx context.Context) ([]docintel.ModelInfo, error) {
	return f.models, f.listErr
}

func (f *fakeLister) ResourceDetails(ctx context.Context) (*docintel.ResourceDetails, error) {
	d := f.details
	return &d, nil
}

func testFetcher(secrets *fakeSecrets, lister *fakeLister) *Fetcher {
	return &Fetcher{
		Secrets:  secrets,
		NewAdmin: func(endpoint, key string) Lister { return lister },
	}
}

func validResource() config.Resource {
	return config.Resource{
		Name:       "west",
		Endpoint:   "https://west.example.com",
		VaultURL:   "https://west-vault.example.com",
		SecretName: "di-key",
	}
}

func TestFetch_FiltersPrebuiltAndSorts(t *testing.T) {
	older := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	lister := &fakeLister{
		models: []docintel.ModelInfo{
			{ModelID: "prebuilt-invoice"},
			{ModelID: "old-model", CreatedDateTime: older},
			{ModelID: "undated-model"}, // no timestamp: sorts oldest
			{ModelID: "new-model", CreatedDateTime: newer, APIVersion: "2024-11-30"},
			{ModelID: "prebuilt-receipt", CreatedDateTime: newer},
		},
		details: docintel.ResourceDetails{Count: 3, Limit: 500},
	}

	cat, err := testFetcher(&fakeSecrets{key: "k"}, lister).Fetch(context.Background(), validResource())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	want := []string{"new-model", "old-model", "undated-model"}
	if len(cat.Models) != len(want) {
		t.Fatalf("got %d models, want %d", len(cat.Models), len(want))
	}
	for i, id := range want {
		if cat.Models[i].ID != id {
			t.Errorf("models[%d] = %q, want %q", i, cat.Models[i].ID, id)
		}
	}
	if cat.Count != 3 || cat.Limit != 500 {
		t.Errorf("quota = %d/%d, want 3/500", cat.Count, cat.Limit)
	}
}

func TestFetch_CredentialErrorPropagates(t *testing.T) {
	secrets := &fakeSecrets{err: &vault.CredentialError{Op: "vault down"}}
	_, err := testFetcher(secrets, &fakeLister{}).Fetch(context.Background(), validResource())

	var credErr *vault.CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("error = %v, want *vault.CredentialError", err)
	}
}

func TestFetch_RejectsInvalidResource(t *testing.T) {
	r := validResource()
	r.Endpoint = "http://plaintext.example.com"

	_, err := testFetcher(&fakeSecrets{key: "k"}, &fakeLister{}).Fetch(context.Background(), r)
	if err == nil {
		t.Fatal("expected validation error for non-https endpoint")
	}
}

func TestMarkSynced(t *testing.T) {
	src := &Catalog{Models: []Model{{ID: "a"}, {ID: "b"}, {ID: "a-copy"}}}
	targets := map[string]*Catalog{
		"east": {Models: []Model{{ID: "a"}, {ID: "b"}}},
		"west": {Models: []Model{{ID: "a"}}},
	}

	src.MarkSynced(targets)

	tests := []struct {
		id   string
		want []string
	}{
		{"a", []string{"east", "west"}},
		{"b", []string{"east"}},
		{"a-copy", nil}, // suffixed ids do not match their originals
	}
	for _, tt := range tests {
		m, ok := src.Model(tt.id)
		if !ok {
			t.Fatalf("model %s missing", tt.id)
		}
		if len(m.SyncedTo) != len(tt.want) {
			t.Errorf("%s SyncedTo = %v, want %v", tt.id, m.SyncedTo, tt.want)
			continue
		}
		for i := range tt.want {
			if m.SyncedTo[i] != tt.want[i] {
				t.Errorf("%s SyncedTo = %v, want %v", tt.id, m.SyncedTo, tt.want)
			}
		}
	}
}

func TestSortNewestFirst_TiesBreakOnID(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	models := []Model{{ID: "zeta", CreatedAt: ts}, {ID: "alpha", CreatedAt: ts}}
	sortNewestFirst(models)
	if models[0].ID != "alpha" {
		t.Errorf("tie order = %q,%q, want alpha first", models[0].ID, models[1].ID)
	}
}
