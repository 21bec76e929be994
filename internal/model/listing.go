package model

import (
	"slices"
	"strings"
	"time"
)

// ListingStatus is the persisted lifecycle status of a listing.  Only the
// reservation coordinator moves a listing between statuses; sold is terminal.
type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingReserved  ListingStatus = "reserved"
	ListingSold      ListingStatus = "sold"
)

// ParseListingStatus decodes a status string case-insensitively.  Older
// clients send "AVAILABLE" or "Available"; both decode to ListingAvailable.
func ParseListingStatus(s string) (ListingStatus, bool) {
	switch ListingStatus(strings.ToLower(strings.TrimSpace(s))) {
	case ListingAvailable:
		return ListingAvailable, true
	case ListingReserved:
		return ListingReserved, true
	case ListingSold:
		return ListingSold, true
	}
	return "", false
}

// Category is one of the fixed marketplace categories.
type Category string

const (
	CategoryApparel        Category = "apparel_accessories"
	CategoryFurniture      Category = "furniture"
	CategoryHomeAppliances Category = "home_appliances"
	CategoryBooks          Category = "books_stationery"
	CategoryBeauty         Category = "beauty_personal_care"
	CategoryElectronics    Category = "electronics_gadgets"
	CategoryMisc           Category = "misc_general_items"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryApparel,
	CategoryFurniture,
	CategoryHomeAppliances,
	CategoryBooks,
	CategoryBeauty,
	CategoryElectronics,
	CategoryMisc,
}

// ParseCategory decodes a category case-insensitively.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Condition describes the physical state of an item.
type Condition string

const (
	ConditionBrandNew     Condition = "brand_new"
	ConditionOpenedUnused Condition = "opened_unused"
	ConditionGood         Condition = "good"
	ConditionUsed         Condition = "used"
)

// Conditions lists every condition from best to worst.
var Conditions = []Condition{
	ConditionBrandNew,
	ConditionOpenedUnused,
	ConditionGood,
	ConditionUsed,
}

// ParseCondition decodes a condition case-insensitively.
func ParseCondition(s string) (Condition, bool) {
	c := Condition(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Conditions {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Listing is a sellable or giveaway item.  Price is a whole amount and
// zero means the item is free.  Images keeps the order the seller chose.
type Listing struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Price       int64         `json:"price"`
	Category    Category      `json:"category"`
	Condition   Condition     `json:"condition"`
	Images      []string      `json:"images"`
	Tags        []string      `json:"tags"`
	Location    string        `json:"location,omitempty"`
	Status      ListingStatus `json:"status"`
	SellerID    string        `json:"seller_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate slices freely.
func (l Listing) Clone() Listing {
	out := l
	out.Images = slices.Clone(l.Images)
	out.Tags = slices.Clone(l.Tags)
	return out
}

// TagCount is the number of listings carrying a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// IsOwnedBy reports whether actorID is the listing's seller.
func (l *Listing) IsOwnedBy(actorID string) bool {
	return actorID != "" && l.SellerID == actorID
}

// ListingState is the state of a listing as seen through the reservation
// workflow.  REQUESTED is never stored: it is an available listing that has
// at least one pending request.
type ListingState string

const (
	StateAvailable ListingState = "AVAILABLE"
	StateRequested ListingState = "REQUESTED"
	StateReserved  ListingState = "RESERVED"
	StateSold      ListingState = "SOLD"
)

// DeriveState computes the workflow state from the stored status and the
// number of pending requests in the ledger.
func DeriveState(status ListingStatus, pending int) ListingState {
	switch status {
	case ListingSold:
		return StateSold
	case ListingReserved:
		return StateReserved
	}
	if pending > 0 {
		return StateRequested
	}
	return StateAvailable
}

// ListingView is a listing enriched with ledger-derived fields for reads.
type ListingView struct {
	Listing
	State            ListingState `json:"state"`
	ReservationCount int          `json:"reservation_count"`
}
