// Package storage defines the persistence interface for provider records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/medbot/internal/models"
)

// ErrNotFound is returned when a provider id does not exist.
var ErrNotFound = errors.New("provider not found")

// ProviderReader is the read-only view of the provider store used by the retrieval pipeline.
type ProviderReader interface {
	// ListProviders returns all providers ordered by id.
	ListProviders(ctx context.Context) ([]*models.Provider, error)
	// GetProvider returns one provider or ErrNotFound.
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
	// GetProvidersByIDs returns the providers that exist, in the order of ids. Unknown ids are skipped.
	GetProvidersByIDs(ctx context.Context, ids []int64) ([]*models.Provider, error)
	// SearchProviders filters by case-insensitive substring on keywords and speciality.
	SearchProviders(ctx context.Context, filter models.ProviderFilter) ([]*models.Provider, error)
	// MatchSpecialties returns providers whose speciality contains any of specialties.
	MatchSpecialties(ctx context.Context, specialties []string, limit int) ([]*models.Provider, error)
	// MatchAnyField returns providers whose name, speciality, keywords or location contains term.
	MatchAnyField(ctx context.Context, term string, limit int) ([]*models.Provider, error)
	CountProviders(ctx context.Context) (int64, error)
}

// Storage defines provider persistence operations.
type Storage interface {
	ProviderReader

	// UpsertProviders inserts or replaces providers in one transaction. Providers with ID 0
	// are assigned a new id, which is written back to the struct.
	UpsertProviders(ctx context.Context, providers []*models.Provider) error
	DeleteProvider(ctx context.Context, id int64) error

	Close() error
}
