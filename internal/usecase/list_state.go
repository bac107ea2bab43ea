package usecase

import (
	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/internal/domain"
)

// ListState is the working copy of the shopping list for one run.
// It is keyed by normalized name and keeps insertion order. Not safe for concurrent use.
type ListState struct {
	items []domain.ShoppingListItem
	index map[string]int
	log   zerolog.Logger
}

// NewListState creates an empty list state
func NewListState(logger zerolog.Logger) *ListState {
	return &ListState{
		index: make(map[string]int),
		log:   logger.With().Str("component", "list_state").Logger(),
	}
}

// Load replaces the state with items, dropping case-insensitive duplicates
// (first occurrence wins) and blank names. The dropped names are returned.
func (s *ListState) Load(items []domain.ShoppingListItem) []string {
	s.items = make([]domain.ShoppingListItem, 0, len(items))
	s.index = make(map[string]int, len(items))

	var dropped []string
	for _, item := range items {
		key := domain.NormalizeName(item.Name)
		if key == "" {
			s.log.Warn().Msg("dropping list item with blank name")
			dropped = append(dropped, item.Name)
			continue
		}
		if _, exists := s.index[key]; exists {
			s.log.Warn().Str("item", item.Name).Msg("dropping duplicate list item")
			dropped = append(dropped, item.Name)
			continue
		}
		if item.ResolutionState == "" {
			item.ResolutionState = domain.StateUnresolved
		}
		s.index[key] = len(s.items)
		s.items = append(s.items, item)
	}
	return dropped
}

// Upsert merges update into the item named name. Unknown names get a new
// unresolved record with quantity 1 before the merge.
func (s *ListState) Upsert(name string, update domain.ShoppingListUpdate) {
	key := domain.NormalizeName(name)
	i, ok := s.index[key]
	if !ok {
		s.items = append(s.items, domain.ShoppingListItem{
			Name:              name,
			QuantityRequested: 1,
			ResolutionState:   domain.StateUnresolved,
		})
		i = len(s.items) - 1
		s.index[key] = i
	}
	update.Apply(&s.items[i])
}

// Get returns a copy of the item named name
func (s *ListState) Get(name string) (domain.ShoppingListItem, bool) {
	i, ok := s.index[domain.NormalizeName(name)]
	if !ok {
		return domain.ShoppingListItem{}, false
	}
	return copyListItem(s.items[i]), true
}

// Snapshot returns a copy of every item in insertion order
func (s *ListState) Snapshot() []domain.ShoppingListItem {
	out := make([]domain.ShoppingListItem, len(s.items))
	for i, item := range s.items {
		out[i] = copyListItem(item)
	}
	return out
}

// Pending returns the items still to be shopped this run: a non-zero requested
// quantity and not already purchased. List order is kept.
func (s *ListState) Pending() []domain.ShoppingListItem {
	var out []domain.ShoppingListItem
	for _, item := range s.items {
		if item.QuantityRequested == 0 || item.ResolutionState == domain.StatePurchased {
			continue
		}
		out = append(out, copyListItem(item))
	}
	return out
}

// Len returns the number of items
func (s *ListState) Len() int {
	return len(s.items)
}

func copyListItem(item domain.ShoppingListItem) domain.ShoppingListItem {
	if item.PricePaid != nil {
		item.PricePaid = item.PricePaid.Ptr()
	}
	return item
}
