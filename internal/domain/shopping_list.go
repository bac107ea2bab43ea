package domain

import "strings"

// ResolutionState tracks how far a list item got in the current run
type ResolutionState string

const (
	StateUnresolved ResolutionState = "unresolved"
	StatePurchased  ResolutionState = "purchased"
	StateSkipped    ResolutionState = "skipped"
)

// ShoppingListItem is one line of the working list
type ShoppingListItem struct {
	Name              string          `json:"name"`
	QuantityRequested int             `json:"quantityRequested"` // 0 means do not order
	ResolutionState   ResolutionState `json:"resolutionState"`
	PurchasedQuantity int             `json:"purchasedQuantity"`
	PricePaid         *Cents          `json:"pricePaid,omitempty"`
	CatalogID         string          `json:"catalogId,omitempty"`
	URL               string          `json:"url,omitempty"`
}

// NormalizeName produces the case-insensitive identity key of a list item
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ShoppingListUpdate merges into a ShoppingListItem. Nil fields are left untouched.
type ShoppingListUpdate struct {
	QuantityRequested *int
	ResolutionState   *ResolutionState
	PurchasedQuantity *int
	PricePaid         *Cents
	CatalogID         *string
	URL               *string
}

// Apply merges the update into item
func (u ShoppingListUpdate) Apply(item *ShoppingListItem) {
	if u.QuantityRequested != nil {
		item.QuantityRequested = *u.QuantityRequested
	}
	if u.ResolutionState != nil {
		item.ResolutionState = *u.ResolutionState
	}
	if u.PurchasedQuantity != nil {
		item.PurchasedQuantity = *u.PurchasedQuantity
	}
	if u.PricePaid != nil {
		price := *u.PricePaid
		item.PricePaid = &price
	}
	if u.CatalogID != nil {
		item.CatalogID = *u.CatalogID
	}
	if u.URL != nil {
		item.URL = *u.URL
	}
}

// PurchasedUpdate builds the update applied when an item completes as purchased
func PurchasedUpdate(quantity int, total Cents, catalogID, url string) ShoppingListUpdate {
	state := StatePurchased
	u := ShoppingListUpdate{
		ResolutionState:   &state,
		PurchasedQuantity: &quantity,
		PricePaid:         &total,
	}
	if catalogID != "" {
		u.CatalogID = &catalogID
	}
	if url != "" {
		u.URL = &url
	}
	return u
}

// SkippedUpdate builds the update applied when an item is skipped
func SkippedUpdate() ShoppingListUpdate {
	state := StateSkipped
	zeroQty := 0
	zero := Cents(0)
	return ShoppingListUpdate{
		ResolutionState:   &state,
		PurchasedQuantity: &zeroQty,
		PricePaid:         &zero,
	}
}
