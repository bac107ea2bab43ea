package listfile

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybot/assistant/internal/domain"
)

func TestReadOnlyStore(t *testing.T) {
	original := "items:\n  - name: Milk\n    quantity: 2\n"
	path := writeList(t, original)
	ctx := context.Background()

	var buf bytes.Buffer
	store := NewReadOnlyStore(NewStore(path, zerolog.Nop()), zerolog.New(&buf))

	items, err := store.LoadList(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Milk", items[0].Name)

	items[0].ResolutionState = domain.StatePurchased
	items[0].PurchasedQuantity = 2
	require.NoError(t, store.SaveList(ctx, items))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("read-only mode")))
}
