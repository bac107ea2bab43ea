package catalog

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/internal/domain"
)

// ReadOnlyStore serves reads from the wrapped store and drops every write
type ReadOnlyStore struct {
	domain.CatalogStore
	log zerolog.Logger
}

// NewReadOnlyStore wraps store so that nothing is written
func NewReadOnlyStore(store domain.CatalogStore, log zerolog.Logger) *ReadOnlyStore {
	return &ReadOnlyStore{
		CatalogStore: store,
		log:          log.With().Str("component", "catalog_store").Bool("read_only", true).Logger(),
	}
}

// Create returns the item as it would have been stored
func (s *ReadOnlyStore) Create(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	s.log.Info().Str("id", item.ID).Str("description", item.Description).Msg("read-only mode: item not created")
	if item.Status == "" {
		item.Status = domain.ItemStatusActive
	}
	return &item, nil
}

func (s *ReadOnlyStore) Update(_ context.Context, id string, update domain.CatalogItemUpdate) error {
	s.log.Info().Str("id", id).Strs("fields", update.Fields()).Msg("read-only mode: item not updated")
	return nil
}

func (s *ReadOnlyStore) RecordPurchase(_ context.Context, purchase domain.Purchase) error {
	s.log.Info().Str("id", purchase.ProductID).Int("quantity", purchase.Quantity).Msg("read-only mode: purchase not recorded")
	return nil
}
