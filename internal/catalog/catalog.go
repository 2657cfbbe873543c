package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/everstacklabs/modelmigrate/internal/config"
	"github.com/everstacklabs/modelmigrate/internal/docintel"
)

// prebuiltPrefix marks service-supplied models. Only user-created
// models participate in copy operations.
const prebuiltPrefix = "prebuilt-"

// Model is one user-created model on a resource. CreatedAt is the zero
// time when the service did not record a creation timestamp.
type Model struct {
	ID         string
	CreatedAt  time.Time
	APIVersion string

	// SyncedTo lists the target names that already hold a model with
	// this id. Filled in by MarkSynced.
	SyncedTo []string
}

// Catalog is the normalized model listing of one resource.
type Catalog struct {
	Resource config.Resource
	Models   []Model

	// Custom-model quota reported by the connectivity probe.
	Count int
	Limit int
}

// Lister is the slice of the admin API a catalog fetch needs.
type Lister interface {
	ListModels(ctx context.Context) ([]docintel.ModelInfo, error)
	ResourceDetails(ctx context.Context) (*docintel.ResourceDetails, error)
}

// SecretSource resolves a resource's API key.
type SecretSource interface {
	GetSecret(ctx context.Context, vaultURL, name string) (string, error)
}

// Fetcher builds catalogs for configured resources.
type Fetcher struct {
	Secrets  SecretSource
	NewAdmin func(endpoint, key string) Lister
}

// Fetch resolves the resource's key, probes connectivity, and returns
// its catalog: user-created models only, newest first.
func (f *Fetcher) Fetch(ctx context.Context, resource config.Resource) (*Catalog, error) {
	if err := resource.Validate(); err != nil {
		return nil, err
	}

	key, err := f.Secrets.GetSecret(ctx, resource.VaultURL, resource.SecretName)
	if err != nil {
		return nil, fmt.Errorf("resolving key for %s: %w", resource.Name, err)
	}

	admin := f.NewAdmin(resource.Endpoint, key)

	details, err := admin.ResourceDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", resource.Name, err)
	}

	listed, err := admin.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing models on %s: %w", resource.Name, err)
	}

	cat := &Catalog{
		Resource: resource,
		Count:    details.Count,
		Limit:    details.Limit,
	}
	for _, m := range listed {
		if strings.HasPrefix(m.ModelID, prebuiltPrefix) {
			continue
		}
		cat.Models = append(cat.Models, Model{
			ID:         m.ModelID,
			CreatedAt:  m.CreatedDateTime,
			APIVersion: m.APIVersion,
		})
	}
	sortNewestFirst(cat.Models)

	slog.Info("catalog fetched",
		"resource", resource.Name,
		"models", len(cat.Models),
		"quota", fmt.Sprintf("%d/%d", details.Count, details.Limit))
	return cat, nil
}

// sortNewestFirst orders models by creation time descending. Models
// with no recorded timestamp sort as oldest; ties break on id so the
// order is stable across refreshes.
func sortNewestFirst(models []Model) {
	sort.SliceStable(models, func(i, j int) bool {
		a, b := models[i], models[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Model returns the model with the given id, if present.
func (c *Catalog) Model(id string) (Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// MarkSynced annotates each model with the names of targets that
// already hold its exact id, so selection can skip already-synced
// pairings. Target names are recorded in sorted order.
func (c *Catalog) MarkSynced(targets map[string]*Catalog) {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for i := range c.Models {
		c.Models[i].SyncedTo = nil
		for _, name := range names {
			if _, ok := targets[name].Model(c.Models[i].ID); ok {
				c.Models[i].SyncedTo = append(c.Models[i].SyncedTo, name)
			}
		}
	}
}
