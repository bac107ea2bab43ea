package listfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybot/assistant/internal/domain"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStore_LoadList(t *testing.T) {
	path := writeList(t, `
items:
  - name: Milk
    quantity: 2
    state: purchased
    purchased_quantity: 2
    price_paid: "9.00"
    catalog_id: "555"
    url: https://www.walmart.com/ip/Milk/555
  - name: Eggs
    quantity:
  - name: Butter
    quantity: 0
  - name: Bread
  - name: Jam
    quantity: "3"
    state: Skipped
    price_paid: "0.00"
`)
	store := NewStore(path, zerolog.Nop())

	items, err := store.LoadList(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 5)

	milk := items[0]
	assert.Equal(t, 2, milk.QuantityRequested)
	assert.Equal(t, domain.StatePurchased, milk.ResolutionState)
	assert.Equal(t, 2, milk.PurchasedQuantity)
	require.NotNil(t, milk.PricePaid)
	assert.Equal(t, domain.Cents(900), *milk.PricePaid)
	assert.Equal(t, "555", milk.CatalogID)

	assert.Equal(t, 1, items[1].QuantityRequested, "blank quantity means 1")
	assert.Equal(t, domain.StateUnresolved, items[1].ResolutionState)
	assert.Nil(t, items[1].PricePaid)

	assert.Equal(t, 0, items[2].QuantityRequested, "explicit 0 means do not order")
	assert.Equal(t, 1, items[3].QuantityRequested, "missing quantity means 1")

	assert.Equal(t, 3, items[4].QuantityRequested)
	assert.Equal(t, domain.StateSkipped, items[4].ResolutionState)
	require.NotNil(t, items[4].PricePaid)
	assert.Zero(t, *items[4].PricePaid)
}

func TestStore_LoadListErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad quantity", content: "items:\n  - name: Milk\n    quantity: lots\n"},
		{name: "negative quantity", content: "items:\n  - name: Milk\n    quantity: -1\n"},
		{name: "bad price", content: "items:\n  - name: Milk\n    price_paid: cheap\n"},
		{name: "not yaml", content: "items: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(writeList(t, tt.content), zerolog.Nop())
			_, err := store.LoadList(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestStore_LoadListMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.yaml"), zerolog.Nop())

	_, err := store.LoadList(context.Background())
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestStore_SaveListRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.yaml")
	store := NewStore(path, zerolog.Nop())
	ctx := context.Background()

	price := domain.Cents(450)
	zero := domain.Cents(0)
	items := []domain.ShoppingListItem{
		{
			Name:              "Widget",
			QuantityRequested: 1,
			ResolutionState:   domain.StatePurchased,
			PurchasedQuantity: 1,
			PricePaid:         &price,
			CatalogID:         "555",
			URL:               "https://www.walmart.com/ip/Widget/555",
		},
		{Name: "Butter", QuantityRequested: 0, ResolutionState: domain.StateUnresolved},
		{Name: "Quinoa", QuantityRequested: 2, ResolutionState: domain.StateSkipped, PricePaid: &zero},
	}

	require.NoError(t, store.SaveList(ctx, items))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `price_paid: "4.50"`)
	assert.Contains(t, string(raw), "quantity: 0")
	assert.NotContains(t, string(raw), "unresolved")

	loaded, err := store.LoadList(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
