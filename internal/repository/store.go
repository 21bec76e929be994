package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/campus-marketplace/internal/model"
)

// ListingStore owns listing records.  It has no way to change a listing's
// status; that is only possible on a Tx handed out by WithinTx.
type ListingStore interface {
	// CreateListing validates l, forces its status to available, assigns a
	// fresh id and timestamps, and persists it.  l is updated in place.
	CreateListing(ctx context.Context, l *model.Listing) (string, error)
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	// ListByOwner returns the seller's listings, newest first.
	ListByOwner(ctx context.Context, sellerID string) ([]model.Listing, error)
	Search(ctx context.Context, f SearchFilter) ([]model.Listing, int64, error)
	// Recent returns the newest listings.  An empty category matches all.
	Recent(ctx context.Context, limit int, category model.Category) ([]model.Listing, error)
	// PopularTags returns the most used tags, most frequent first and
	// alphabetical among equals.
	PopularTags(ctx context.Context, limit int) ([]model.TagCount, error)
}

// ReservationLedger exposes read access to reservation requests.
type ReservationLedger interface {
	// RequestsByListing returns every request on the listing, oldest first.
	RequestsByListing(ctx context.Context, listingID string) ([]model.ReservationRequest, error)
	RequestByBuyerAndListing(ctx context.Context, buyerID, listingID string) (*model.ReservationRequest, error)
	// RequestsByBuyer returns the buyer's requests joined with their
	// listings, newest request first.
	RequestsByBuyer(ctx context.Context, buyerID string) ([]model.BuyerRequest, error)
	// RequestCounts tallies requests per listing.  Listings without
	// requests are absent from the result.
	RequestCounts(ctx context.Context, listingIDs []string) (map[string]RequestCount, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	ListingStore
	ReservationLedger
	// WithinTx runs fn in one transaction.  A nil return commits; any
	// error rolls back every write fn made and is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the transactional view of both stores.  Every write to a listing's
// status or to the ledger goes through it.
type Tx interface {
	// LockListing loads the listing and holds it until the transaction
	// ends.  Concurrent transactions on the same listing serialize here.
	LockListing(ctx context.Context, id string) (*model.Listing, error)
	SetListingStatus(ctx context.Context, id string, status model.ListingStatus) error
	// UpdateListing rewrites the editable fields of l after validating them.
	UpdateListing(ctx context.Context, l *model.Listing) error
	DeleteListing(ctx context.Context, id string) error

	LockRequest(ctx context.Context, listingID, buyerID string) (*model.ReservationRequest, error)
	// CreateRequest adds a pending request.  It fails with ErrInvalidState
	// unless the listing is available and with ErrDuplicateRequest when the
	// pair already exists.
	CreateRequest(ctx context.Context, listingID, buyerID string) (*model.ReservationRequest, error)
	// ConfirmedRequest returns the listing's confirmed request or nil.
	ConfirmedRequest(ctx context.Context, listingID string) (*model.ReservationRequest, error)
	// PromoteRequest moves a pending request to confirmed.  It fails with
	// ErrConflict when another request on the listing is confirmed.
	PromoteRequest(ctx context.Context, listingID, buyerID string) error
	RemoveRequest(ctx context.Context, listingID, buyerID string) error
	RemovePendingRequests(ctx context.Context, listingID string) (int64, error)
	// RemoveRequests clears every request on the listing, confirmed
	// included.
	RemoveRequests(ctx context.Context, listingID string) (int64, error)
}

// RequestCount is the per-listing ledger tally used to derive state.
type RequestCount struct {
	Pending int
	Total   int
}

// Sort orders accepted by Search.
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// Pagination limits for Search and Recent.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultRecent   = 10
	MaxRecent       = 50
	DefaultTags     = 20
	MaxTagsPage     = 100
)

// SearchFilter defines filters and pagination for searching listings.  Zero
// values mean "no filter".
type SearchFilter struct {
	Query     string
	Category  model.Category
	Condition model.Condition
	Status    model.ListingStatus
	MinPrice  *int64
	MaxPrice  *int64
	Sort      string
	Page      int
	PageSize  int
}

// Normalize clamps pagination and fills defaults.
func (f SearchFilter) Normalize() SearchFilter {
	f.Query = strings.TrimSpace(f.Query)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	switch f.Sort {
	case SortOldest, SortPriceAsc, SortPriceDesc:
	default:
		f.Sort = SortNewest
	}
	return f
}

// Offset returns the row offset of the filter's page.
func (f SearchFilter) Offset() int { return (f.Page - 1) * f.PageSize }

// ClampRecent bounds the limit accepted by Recent.
func ClampRecent(limit int) int {
	if limit <= 0 {
		return DefaultRecent
	}
	if limit > MaxRecent {
		return MaxRecent
	}
	return limit
}

// ClampTags bounds the limit accepted by PopularTags.
func ClampTags(limit int) int {
	if limit <= 0 {
		return DefaultTags
	}
	if limit > MaxTagsPage {
		return MaxTagsPage
	}
	return limit
}

// prepareNewListing canonicalizes and validates l and fills the fields the
// store owns.  Both store implementations call it from CreateListing.
func prepareNewListing(l *model.Listing, now time.Time) error {
	model.NormalizeListing(l)
	if err := NewValidationError(model.ValidateListing(l)); err != nil {
		return err
	}
	l.ID = uuid.NewString()
	l.Status = model.ListingAvailable
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Tags == nil {
		l.Tags = []string{}
	}
	return nil
}

func prepareUpdatedListing(l *model.Listing, now time.Time) error {
	model.NormalizeListing(l)
	if err := NewValidationError(model.ValidateListing(l)); err != nil {
		return err
	}
	l.UpdatedAt = now
	if l.Tags == nil {
		l.Tags = []string{}
	}
	return nil
}

func utcNow() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
