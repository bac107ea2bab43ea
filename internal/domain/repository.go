package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogStore is the catalog and purchase ledger.
// Every method is a single atomic operation on the underlying store.
type CatalogStore interface {
	FindByID(ctx context.Context, id string) (*CatalogItem, error)
	// FindAllActiveByPriority returns active items, ascending priority
	FindAllActiveByPriority(ctx context.Context) ([]CatalogItem, error)
	Create(ctx context.Context, item CatalogItem) (*CatalogItem, error)
	Update(ctx context.Context, id string, update CatalogItemUpdate) error
	RecordPurchase(ctx context.Context, purchase Purchase) error
	PurchaseStats(ctx context.Context, id string) (*PurchaseStats, error)
	// ExtractProductID parses a product-page URL into its stable id
	ExtractProductID(url string) (string, bool)
}

// ListSource loads and saves the shopping list. SaveList always replaces the whole list.
type ListSource interface {
	LoadList(ctx context.Context) ([]ShoppingListItem, error)
	SaveList(ctx context.Context, items []ShoppingListItem) error
}

// DriverChannel is the single-in-flight correlation channel to the automation driver.
// A timeout of zero waits indefinitely.
type DriverChannel interface {
	// Reset clears stale command and response slots left by a previous run
	Reset(ctx context.Context) error
	Send(ctx context.Context, cmd Command) error
	Notify(ctx context.Context, cmd Command) error
	AwaitResponse(ctx context.Context, timeout time.Duration) (Response, error)
	SendAndAwait(ctx context.Context, cmd Command, timeout time.Duration) (Response, error)
}
