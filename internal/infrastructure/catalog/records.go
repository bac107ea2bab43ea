package catalog

import (
	"time"

	"github.com/grocerybot/assistant/internal/domain"
)

// itemRecord is the row shape of the items table
type itemRecord struct {
	ID              string `gorm:"primaryKey;column:id"`
	URL             string `gorm:"column:url;not null"`
	Description     string `gorm:"column:description;not null"`
	Modifier        string `gorm:"column:modifier"`
	Priority        int    `gorm:"column:priority;index"`
	DefaultQuantity int    `gorm:"column:default_quantity"`
	Subscribable    bool   `gorm:"column:subscribable"`
	Category        string `gorm:"column:category"`
	Status          string `gorm:"column:status;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (itemRecord) TableName() string { return "items" }

// purchaseRecord is one ledger row
type purchaseRecord struct {
	ID          uint      `gorm:"primaryKey"`
	ProductID   string    `gorm:"column:product_id;index;not null"`
	Quantity    int       `gorm:"column:quantity"`
	PriceCents  *int64    `gorm:"column:price_cents"`
	PurchasedAt time.Time `gorm:"column:purchased_at;index"`
	CreatedAt   time.Time
}

func (purchaseRecord) TableName() string { return "purchases" }

// toDomainItem converts a row to the domain model
func toDomainItem(r itemRecord) domain.CatalogItem {
	status := domain.ItemStatus(r.Status)
	if status == "" {
		status = domain.ItemStatusActive
	}
	return domain.CatalogItem{
		ID:              r.ID,
		URL:             r.URL,
		Description:     r.Description,
		Modifier:        r.Modifier,
		Priority:        r.Priority,
		DefaultQuantity: r.DefaultQuantity,
		Subscribable:    r.Subscribable,
		Category:        r.Category,
		Status:          status,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromDomainItem(item domain.CatalogItem) itemRecord {
	status := item.Status
	if status == "" {
		status = domain.ItemStatusActive
	}
	return itemRecord{
		ID:              item.ID,
		URL:             item.URL,
		Description:     item.Description,
		Modifier:        item.Modifier,
		Priority:        item.Priority,
		DefaultQuantity: item.DefaultQuantity,
		Subscribable:    item.Subscribable,
		Category:        item.Category,
		Status:          string(status),
	}
}

func fromDomainPurchase(p domain.Purchase) purchaseRecord {
	rec := purchaseRecord{
		ProductID:   p.ProductID,
		Quantity:    p.Quantity,
		PurchasedAt: p.Date,
	}
	if p.PriceCents != nil {
		cents := int64(*p.PriceCents)
		rec.PriceCents = &cents
	}
	return rec
}

// updateColumns maps the set fields of an update to column values
func updateColumns(u domain.CatalogItemUpdate) map[string]any {
	cols := make(map[string]any)
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.Modifier != nil {
		cols["modifier"] = *u.Modifier
	}
	if u.Priority != nil {
		cols["priority"] = *u.Priority
	}
	if u.DefaultQuantity != nil {
		cols["default_quantity"] = *u.DefaultQuantity
	}
	if u.Subscribable != nil {
		cols["subscribable"] = *u.Subscribable
	}
	if u.Category != nil {
		cols["category"] = *u.Category
	}
	if u.Status != nil {
		cols["status"] = string(*u.Status)
	}
	return cols
}
