package listfile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/internal/domain"
)

// ReadOnlyStore loads the list from the wrapped source and never writes it back
type ReadOnlyStore struct {
	domain.ListSource
	log zerolog.Logger
}

// NewReadOnlyStore wraps source so that SaveList leaves the file untouched
func NewReadOnlyStore(source domain.ListSource, log zerolog.Logger) *ReadOnlyStore {
	return &ReadOnlyStore{
		ListSource: source,
		log:        log.With().Str("component", "listfile").Bool("read_only", true).Logger(),
	}
}

func (s *ReadOnlyStore) SaveList(_ context.Context, items []domain.ShoppingListItem) error {
	s.log.Info().Int("items", len(items)).Msg("read-only mode: list not written")
	return nil
}
