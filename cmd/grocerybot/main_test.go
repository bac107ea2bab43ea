package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybot/assistant/config"
	"github.com/grocerybot/assistant/internal/domain"
	"github.com/grocerybot/assistant/internal/infrastructure/catalog"
	"github.com/grocerybot/assistant/internal/logging"
	"github.com/grocerybot/assistant/internal/usecase"
)

func seedCatalog(t *testing.T, items ...domain.CatalogItem) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "catalog.db")

	db, err := catalog.Open("sqlite", dsn, logging.NewNop())
	require.NoError(t, err)
	store, err := catalog.NewStore(db, catalog.Config{Logger: logging.NewNop()})
	require.NoError(t, err)
	defer store.Close()

	for _, item := range items {
		_, err := store.Create(context.Background(), item)
		require.NoError(t, err)
	}
	return dsn
}

func TestMatchCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GROCERYBOT_CATALOG_DSN", seedCatalog(t,
		domain.CatalogItem{ID: "100", Description: "Milk", Modifier: "Whole", Priority: 1, Status: domain.ItemStatusActive},
		domain.CatalogItem{ID: "200", Description: "Milk Chocolate", Priority: 3, Status: domain.ItemStatusActive},
	))
	t.Setenv("GROCERYBOT_METRICS_ENABLED", "false")
	t.Setenv("GROCERYBOT_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"match", "milk", "chocolate"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())

	got := out.String()
	assert.True(t, strings.HasPrefix(got, `"milk chocolate": selected`), got)
	assert.Contains(t, got, "Milk Chocolate")
}

func TestNewListSource_ReadOnlyKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.yaml")
	original := "items:\n  - name: Bread\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	tests := []struct {
		name     string
		readOnly bool
		changed  bool
	}{
		{name: "read-only", readOnly: true, changed: false},
		{name: "writable", readOnly: false, changed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(original), 0o644))
			cfg := &config.Config{}
			cfg.List.Path = path
			cfg.Catalog.ReadOnly = tt.readOnly
			a := &app{cfg: cfg, log: logging.NewNop()}

			lists := a.newListSource()
			items, err := lists.LoadList(context.Background())
			require.NoError(t, err)
			require.Len(t, items, 1)

			items[0].ResolutionState = domain.StateSkipped
			require.NoError(t, lists.SaveList(context.Background(), items))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.changed, string(data) != original)
		})
	}
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary usecase.RunSummary
		want    []string
	}{
		{
			name:    "nothing pending",
			summary: usecase.RunSummary{},
			want:    []string{"Nothing to buy."},
		},
		{
			name:    "completed",
			summary: usecase.RunSummary{Pending: 3, Purchased: 2, Skipped: 1},
			want:    []string{"Purchased 2, skipped 1, unresolved 0 of 3 items"},
		},
		{
			name:    "quit",
			summary: usecase.RunSummary{Pending: 8, Purchased: 5, Remaining: 3, Quit: true, Dropped: []string{"Tofu"}},
			want:    []string{"(quit with 3 remaining)", "dropped: Tofu"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printSummary(&buf, tt.summary)
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}
