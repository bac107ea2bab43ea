package listfile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/grocerybot/assistant/internal/domain"
)

// Store reads and writes the shopping list as a YAML file
type Store struct {
	path string
	log  zerolog.Logger
}

// NewStore creates a list store for the file at path
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path: path,
		log:  logger.With().Str("component", "listfile").Str("path", path).Logger(),
	}
}

type document struct {
	Items []entry `yaml:"items"`
}

type entry struct {
	Name              string   `yaml:"name"`
	Quantity          quantity `yaml:"quantity"`
	State             string   `yaml:"state,omitempty"`
	PurchasedQuantity int      `yaml:"purchased_quantity,omitempty"`
	PricePaid         string   `yaml:"price_paid,omitempty"`
	CatalogID         string   `yaml:"catalog_id,omitempty"`
	URL               string   `yaml:"url,omitempty"`
}

// quantity decodes a blank or missing value as 1 and an explicit 0 as 0
type quantity struct {
	value int
	set   bool
}

func (q *quantity) UnmarshalYAML(node *yaml.Node) error {
	v := strings.TrimSpace(node.Value)
	if node.Tag == "!!null" || v == "" {
		*q = quantity{}
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("line %d: invalid quantity %q", node.Line, node.Value)
	}
	*q = quantity{value: n, set: true}
	return nil
}

func (q quantity) MarshalYAML() (interface{}, error) {
	return q.value, nil
}

func (q quantity) get() int {
	if !q.set {
		return 1
	}
	return q.value
}

func (s *Store) LoadList(_ context.Context) ([]domain.ShoppingListItem, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read list: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse list %s: %w", s.path, err)
	}

	items := make([]domain.ShoppingListItem, 0, len(doc.Items))
	for _, e := range doc.Items {
		item, err := s.toDomain(e)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	s.log.Debug().Int("items", len(items)).Msg("list loaded")
	return items, nil
}

// SaveList replaces the file atomically
func (s *Store) SaveList(_ context.Context, items []domain.ShoppingListItem) error {
	doc := document{Items: make([]entry, 0, len(items))}
	for _, item := range items {
		doc.Items = append(doc.Items, fromDomain(item))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode list: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode list: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp list: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close list: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace list: %w", err)
	}

	s.log.Debug().Int("items", len(items)).Msg("list written")
	return nil
}

func (s *Store) toDomain(e entry) (domain.ShoppingListItem, error) {
	item := domain.ShoppingListItem{
		Name:              e.Name,
		QuantityRequested: e.Quantity.get(),
		PurchasedQuantity: e.PurchasedQuantity,
		CatalogID:         e.CatalogID,
		URL:               e.URL,
	}

	switch state := domain.ResolutionState(strings.ToLower(strings.TrimSpace(e.State))); state {
	case "", domain.StateUnresolved:
		item.ResolutionState = domain.StateUnresolved
	case domain.StatePurchased, domain.StateSkipped:
		item.ResolutionState = state
	default:
		s.log.Warn().Str("item", e.Name).Str("state", e.State).Msg("unknown state, treating as unresolved")
		item.ResolutionState = domain.StateUnresolved
	}

	price, ok, err := domain.ParseCents(e.PricePaid)
	if err != nil {
		return item, fmt.Errorf("item %q: %w", e.Name, err)
	}
	if ok {
		item.PricePaid = &price
	}
	return item, nil
}

func fromDomain(item domain.ShoppingListItem) entry {
	e := entry{
		Name:              item.Name,
		Quantity:          quantity{value: item.QuantityRequested, set: true},
		PurchasedQuantity: item.PurchasedQuantity,
		CatalogID:         item.CatalogID,
		URL:               item.URL,
	}
	if item.ResolutionState != domain.StateUnresolved {
		e.State = string(item.ResolutionState)
	}
	if item.PricePaid != nil {
		e.PricePaid = item.PricePaid.String()
	}
	return e
}
