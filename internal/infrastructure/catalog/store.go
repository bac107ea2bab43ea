package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/grocerybot/assistant/internal/domain"
)

// Open connects to the catalog database. driver is "sqlite" or "postgres".
func Open(driver, dsn string, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s catalog: %w", driver, err)
	}
	return db, nil
}

// Config holds configuration for the store
type Config struct {
	ProductHost string
	Logger      zerolog.Logger
	// Now is the clock used for purchase statistics. Defaults to time.Now.
	Now func() time.Time
}

// Store is the gorm-backed catalog and purchase ledger
type Store struct {
	db   *gorm.DB
	urls *ProductURLParser
	log  zerolog.Logger
	now  func() time.Time
}

// NewStore creates the store and migrates the items and purchases tables
func NewStore(db *gorm.DB, config Config) (*Store, error) {
	host := config.ProductHost
	if host == "" {
		host = "walmart.com"
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	if err := db.AutoMigrate(&itemRecord{}, &purchaseRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}

	return &Store{
		db:   db,
		urls: NewProductURLParser(host),
		log:  config.Logger.With().Str("component", "catalog_store").Logger(),
		now:  now,
	}, nil
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.CatalogItem, error) {
	var rec itemRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find item %s: %w", id, err)
	}
	item := toDomainItem(rec)
	return &item, nil
}

// FindAllActiveByPriority returns active items ordered by normalized priority,
// then by insertion order
func (s *Store) FindAllActiveByPriority(ctx context.Context) ([]domain.CatalogItem, error) {
	var recs []itemRecord
	err := s.db.WithContext(ctx).
		Where("status IS NULL OR status <> ?", string(domain.ItemStatusInactive)).
		Order("created_at").
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]domain.CatalogItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toDomainItem(rec))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].NormalizedPriority() < items[j].NormalizedPriority()
	})
	return items, nil
}

func (s *Store) Create(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	rec := fromDomainItem(item)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("create item %s: %w", item.ID, err)
	}
	created := toDomainItem(rec)
	s.log.Info().Str("id", created.ID).Str("description", created.Description).Msg("catalog item created")
	return &created, nil
}

func (s *Store) Update(ctx context.Context, id string, update domain.CatalogItemUpdate) error {
	cols := updateColumns(update)
	if len(cols) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&itemRecord{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("update item %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrItemNotFound
	}
	s.log.Info().Str("id", id).Strs("fields", update.Fields()).Msg("catalog item updated")
	return nil
}

func (s *Store) RecordPurchase(ctx context.Context, purchase domain.Purchase) error {
	rec := fromDomainPurchase(purchase)
	if rec.PurchasedAt.IsZero() {
		rec.PurchasedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record purchase %s: %w", purchase.ProductID, err)
	}
	return nil
}

func (s *Store) PurchaseStats(ctx context.Context, id string) (*domain.PurchaseStats, error) {
	db := s.db.WithContext(ctx)
	stats := &domain.PurchaseStats{ProductID: id}

	if err := db.Model(&purchaseRecord{}).Where("product_id = ?", id).Count(&stats.PurchaseCount).Error; err != nil {
		return nil, fmt.Errorf("count purchases %s: %w", id, err)
	}
	if stats.PurchaseCount == 0 {
		return stats, nil
	}

	var last purchaseRecord
	err := db.Where("product_id = ?", id).Order("purchased_at DESC").First(&last).Error
	if err != nil {
		return nil, fmt.Errorf("last purchase %s: %w", id, err)
	}

	when := last.PurchasedAt
	days := int(s.now().Sub(when).Hours() / 24)
	stats.LastPurchased = &when
	stats.DaysSincePurchase = &days
	return stats, nil
}

func (s *Store) ExtractProductID(url string) (string, bool) {
	return s.urls.ExtractProductID(url)
}
