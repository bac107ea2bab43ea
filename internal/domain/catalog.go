package domain

import (
	"strings"
	"time"
)

// ItemStatus marks whether a catalog item takes part in matching
type ItemStatus string

const (
	ItemStatusActive   ItemStatus = "active"
	ItemStatusInactive ItemStatus = "inactive"
)

// CatalogItem represents a known purchasable product
type CatalogItem struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Description     string     `json:"description"`
	Modifier        string     `json:"modifier,omitempty"`
	Priority        int        `json:"priority"` // 0 means blank, treated as 1
	DefaultQuantity int        `json:"defaultQuantity"`
	Subscribable    bool       `json:"subscribable"`
	Category        string     `json:"category,omitempty"`
	Status          ItemStatus `json:"status"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt,omitempty"`
}

// NormalizedPriority returns the priority with blank (<1) treated as 1
func (c CatalogItem) NormalizedPriority() int {
	return NormalizePriority(c.Priority)
}

// IsActive reports whether the item is eligible for matching.
// An empty status counts as active.
func (c CatalogItem) IsActive() bool {
	return c.Status != ItemStatusInactive
}

// CombinedText joins description and modifier the way the matcher scores them
func (c CatalogItem) CombinedText() string {
	if strings.TrimSpace(c.Modifier) == "" {
		return c.Description
	}
	return c.Description + " " + c.Modifier
}

// NormalizePriority treats empty/absent priorities as 1
func NormalizePriority(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

// CatalogItemUpdate carries a partial update. Nil fields are left untouched.
type CatalogItemUpdate struct {
	Description     *string
	Modifier        *string
	Priority        *int
	DefaultQuantity *int
	Subscribable    *bool
	Category        *string
	Status          *ItemStatus
}

// IsEmpty reports whether the update would change nothing
func (u CatalogItemUpdate) IsEmpty() bool {
	return u.Description == nil && u.Modifier == nil && u.Priority == nil &&
		u.DefaultQuantity == nil && u.Subscribable == nil && u.Category == nil && u.Status == nil
}

// Fields lists the names of the fields the update touches, for logging
func (u CatalogItemUpdate) Fields() []string {
	var fields []string
	if u.Description != nil {
		fields = append(fields, "description")
	}
	if u.Modifier != nil {
		fields = append(fields, "modifier")
	}
	if u.Priority != nil {
		fields = append(fields, "priority")
	}
	if u.DefaultQuantity != nil {
		fields = append(fields, "default_quantity")
	}
	if u.Subscribable != nil {
		fields = append(fields, "subscribable")
	}
	if u.Category != nil {
		fields = append(fields, "category")
	}
	if u.Status != nil {
		fields = append(fields, "status")
	}
	return fields
}

// Purchase is one ledger entry
type Purchase struct {
	ProductID  string    `json:"productId"`
	Quantity   int       `json:"quantity"`
	PriceCents *Cents    `json:"priceCents,omitempty"`
	Date       time.Time `json:"date"`
}

// PurchaseStats summarises the ledger for a single product
type PurchaseStats struct {
	ProductID         string     `json:"productId"`
	PurchaseCount     int64      `json:"purchaseCount"`
	LastPurchased     *time.Time `json:"lastPurchased,omitempty"`
	DaysSincePurchase *int       `json:"daysSincePurchase,omitempty"`
}

// MatchKind classifies a match candidate
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// MatchCandidate is produced per resolution call and never persisted
type MatchCandidate struct {
	Item  CatalogItem `json:"item"`
	Score int         `json:"score"`
	Kind  MatchKind   `json:"kind"`
}

// ResolutionKind is the outcome of deciding over a candidate list
type ResolutionKind int

const (
	// ResolutionNew means no candidate matched, treat as a new item
	ResolutionNew ResolutionKind = iota
	// ResolutionSelected means a single candidate was picked without asking
	ResolutionSelected
	// ResolutionAmbiguous means the human must choose between fuzzy candidates
	ResolutionAmbiguous
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionNew:
		return "new"
	case ResolutionSelected:
		return "selected"
	case ResolutionAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Resolution is the matcher's decision for one list item
type Resolution struct {
	Kind       ResolutionKind
	Selected   *MatchCandidate
	Candidates []MatchCandidate
}

// LookupResult answers a lookup_request for a product URL
type LookupResult struct {
	URL       string         `json:"url"`
	ProductID string         `json:"productId"`
	Found     bool           `json:"found"`
	Item      *CatalogItem   `json:"item,omitempty"`
	Stats     *PurchaseStats `json:"stats,omitempty"`
}
