package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"

	"github.com/grocerybot/assistant/internal/domain"
)

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	CacheTTL time.Duration
	Logger   zerolog.Logger
	// Now is the clock used for purchase dates. Defaults to time.Now.
	Now func() time.Time
}

// CatalogService applies purchase captures to the catalog and ledger and answers lookups
type CatalogService struct {
	store    domain.CatalogStore
	cache    domain.CacheRepository
	matcher  *MatchingService
	cacheTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// PurchaseOutcome describes what a purchase did to the catalog
type PurchaseOutcome struct {
	Item      domain.CatalogItem
	Created   bool
	Updated   []string
	Quantity  int
	UnitPrice *domain.Cents
	Total     domain.Cents
	URL       string
}

// NewCatalogService creates a new catalog service with dependencies
func NewCatalogService(
	store domain.CatalogStore,
	cache domain.CacheRepository,
	matcher *MatchingService,
	config CatalogServiceConfig,
) *CatalogService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &CatalogService{
		store:    store,
		cache:    cache,
		matcher:  matcher,
		cacheTTL: cacheTTL,
		log:      config.Logger.With().Str("component", "catalog").Logger(),
		now:      now,
	}
}

// Catalog returns the active catalog ordered by ascending priority
func (s *CatalogService) Catalog(ctx context.Context) ([]domain.CatalogItem, error) {
	return s.store.FindAllActiveByPriority(ctx)
}

// Match resolves a name against the current catalog
func (s *CatalogService) Match(ctx context.Context, name string) (domain.Resolution, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Resolution{}, domain.ErrInvalidRequest
	}

	catalog, err := s.store.FindAllActiveByPriority(ctx)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("load catalog: %w", err)
	}
	return s.matcher.ResolveAndDecide(name, catalog), nil
}

// ApplyPurchase reconciles an add_and_purchase capture with the catalog.
//
// A captured URL for an unknown product id creates the item, which needs a
// description. A known id only receives the non-blank fields. Without a URL
// the purchase goes against fallback, the item the prompt was shown for.
func (s *CatalogService) ApplyPurchase(
	ctx context.Context,
	resp domain.AddAndPurchaseResponse,
	fallback *domain.CatalogItem,
) (*PurchaseOutcome, error) {
	var (
		id  string
		url string
	)

	rawURL := strings.TrimSpace(resp.URL)
	switch {
	case rawURL != "":
		var ok bool
		id, ok = s.store.ExtractProductID(rawURL)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProductURL, rawURL)
		}
		url = canonicalProductURL(rawURL)
	case fallback != nil:
		id = fallback.ID
		url = fallback.URL
	default:
		return nil, fmt.Errorf("%w: no URL captured", domain.ErrInvalidProductURL)
	}

	existing, err := s.store.FindByID(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrItemNotFound) {
		return nil, fmt.Errorf("%w: find %s: %v", domain.ErrCatalogMutation, id, err)
	}

	outcome := &PurchaseOutcome{URL: url}
	if existing == nil {
		item, err := s.createItem(ctx, id, url, resp)
		if err != nil {
			return nil, err
		}
		outcome.Item = *item
		outcome.Created = true
	} else {
		update := purchaseUpdate(*existing, resp)
		if !update.IsEmpty() {
			if err := s.store.Update(ctx, id, update); err != nil {
				return nil, fmt.Errorf("%w: update %s: %v", domain.ErrCatalogMutation, id, err)
			}
			outcome.Updated = update.Fields()
		}
		outcome.Item = applyItemUpdate(*existing, update)
		if outcome.URL == "" {
			outcome.URL = existing.URL
		}
	}

	if err := s.record(ctx, outcome, resp.PurchaseQuantity, resp.Price); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)

	s.log.Info().
		Str("id", id).
		Bool("created", outcome.Created).
		Strs("updated", outcome.Updated).
		Int("quantity", outcome.Quantity).
		Stringer("total", outcome.Total).
		Msg("purchase applied")

	return outcome, nil
}

// RecordKnownPurchase records a purchase confirmed on the page of an already resolved item
func (s *CatalogService) RecordKnownPurchase(
	ctx context.Context,
	item domain.CatalogItem,
	resp domain.PurchaseResponse,
) (*PurchaseOutcome, error) {
	outcome := &PurchaseOutcome{Item: item, URL: item.URL}

	if resp.Subscribable != nil && *resp.Subscribable != item.Subscribable {
		update := domain.CatalogItemUpdate{Subscribable: resp.Subscribable}
		if err := s.store.Update(ctx, item.ID, update); err != nil {
			return nil, fmt.Errorf("%w: update %s: %v", domain.ErrCatalogMutation, item.ID, err)
		}
		outcome.Item.Subscribable = *resp.Subscribable
		outcome.Updated = update.Fields()
	}

	if err := s.record(ctx, outcome, resp.Quantity, resp.Price); err != nil {
		return nil, err
	}

	s.invalidate(ctx, item.ID)

	s.log.Info().
		Str("id", item.ID).
		Int("quantity", outcome.Quantity).
		Stringer("total", outcome.Total).
		Msg("purchase recorded")

	return outcome, nil
}

// Lookup resolves a product URL to its catalog entry and purchase history.
// It never creates catalog entries.
func (s *CatalogService) Lookup(ctx context.Context, rawURL string) (*domain.LookupResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	id, ok := s.store.ExtractProductID(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProductURL, rawURL)
	}

	cacheKey := lookupCacheKey(id)
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		result := *cached
		result.URL = rawURL
		return &result, nil
	}

	result := &domain.LookupResult{URL: rawURL, ProductID: id}

	item, err := s.store.FindByID(ctx, id)
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
	case err != nil:
		return nil, fmt.Errorf("find %s: %w", id, err)
	default:
		result.Found = true
		result.Item = item

		stats, err := s.store.PurchaseStats(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("failed to load purchase stats")
		} else {
			result.Stats = stats
		}
	}

	if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
		s.log.Debug().Err(err).Str("key", cacheKey).Msg("failed to cache lookup")
	}

	return result, nil
}

func (s *CatalogService) createItem(
	ctx context.Context,
	id, url string,
	resp domain.AddAndPurchaseResponse,
) (*domain.CatalogItem, error) {
	description := strings.TrimSpace(resp.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: product %s", domain.ErrMissingDescription, id)
	}

	item := domain.CatalogItem{
		ID:              id,
		URL:             url,
		Description:     description,
		Modifier:        strings.TrimSpace(resp.Modifier),
		Priority:        domain.NormalizePriority(resp.Priority),
		DefaultQuantity: max(resp.DefaultQuantity, 1),
		Status:          domain.ItemStatusActive,
	}
	if resp.Subscribable != nil {
		item.Subscribable = *resp.Subscribable
	}

	created, err := s.store.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", domain.ErrCatalogMutation, id, err)
	}
	return created, nil
}

// record writes the ledger entry and fills the quantity and price fields of outcome.
// A purchase without a positive price is not written to the ledger.
func (s *CatalogService) record(ctx context.Context, outcome *PurchaseOutcome, quantity int, price *domain.Cents) error {
	outcome.Quantity = max(quantity, 1)

	if price == nil || *price <= 0 {
		return nil
	}

	outcome.UnitPrice = price.Ptr()
	outcome.Total = price.Mul(outcome.Quantity)

	err := s.store.RecordPurchase(ctx, domain.Purchase{
		ProductID:  outcome.Item.ID,
		Quantity:   outcome.Quantity,
		PriceCents: price.Ptr(),
		Date:       s.now(),
	})
	if err != nil {
		return fmt.Errorf("%w: record purchase %s: %v", domain.ErrCatalogMutation, outcome.Item.ID, err)
	}
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, lookupCacheKey(id)); err != nil {
		s.log.Debug().Err(err).Str("id", id).Msg("failed to invalidate lookup cache")
	}
}

// getFromCache retrieves a lookup result from cache
func (s *CatalogService) getFromCache(ctx context.Context, key string) (*domain.LookupResult, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case *domain.LookupResult:
		if v == nil {
			return nil, domain.ErrCacheMiss
		}
		return v, nil
	case map[string]interface{}:
		// JSON-backed caches hand back generic maps
		return mapToLookupResult(v)
	default:
		return nil, domain.ErrCacheMiss
	}
}

// mapToLookupResult converts a map (from JSON cache) to a LookupResult
func mapToLookupResult(data map[string]interface{}) (*domain.LookupResult, error) {
	var result domain.LookupResult
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:           &result,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheMiss, err)
	}
	return &result, nil
}

// purchaseUpdate builds the update for an existing item from the non-blank captured fields
func purchaseUpdate(existing domain.CatalogItem, resp domain.AddAndPurchaseResponse) domain.CatalogItemUpdate {
	var update domain.CatalogItemUpdate

	if d := strings.TrimSpace(resp.Description); d != "" && d != existing.Description {
		update.Description = &d
	}
	if m := strings.TrimSpace(resp.Modifier); m != "" && m != existing.Modifier {
		update.Modifier = &m
	}
	if p := resp.Priority; p > 0 && p != existing.Priority {
		update.Priority = &p
	}
	if q := resp.DefaultQuantity; q > 0 && q != existing.DefaultQuantity {
		update.DefaultQuantity = &q
	}
	if resp.Subscribable != nil && *resp.Subscribable != existing.Subscribable {
		sub := *resp.Subscribable
		update.Subscribable = &sub
	}
	return update
}

func applyItemUpdate(item domain.CatalogItem, u domain.CatalogItemUpdate) domain.CatalogItem {
	if u.Description != nil {
		item.Description = *u.Description
	}
	if u.Modifier != nil {
		item.Modifier = *u.Modifier
	}
	if u.Priority != nil {
		item.Priority = *u.Priority
	}
	if u.DefaultQuantity != nil {
		item.DefaultQuantity = *u.DefaultQuantity
	}
	if u.Subscribable != nil {
		item.Subscribable = *u.Subscribable
	}
	if u.Category != nil {
		item.Category = *u.Category
	}
	if u.Status != nil {
		item.Status = *u.Status
	}
	return item
}

// canonicalProductURL drops the query string and fragment
func canonicalProductURL(url string) string {
	url, _, _ = strings.Cut(url, "#")
	url, _, _ = strings.Cut(url, "?")
	return url
}

func lookupCacheKey(id string) string {
	return "lookup:" + id
}
