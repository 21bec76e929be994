package service

import (
	"context"

	"github.com/iliyamo/campus-marketplace/internal/model"
	"github.com/iliyamo/campus-marketplace/internal/repository"
)

// ListingService serves listing reads enriched with ledger-derived state
// and the seller-side edits that do not touch the reservation workflow.
type ListingService struct {
	store       repository.Store
	coordinator *ReservationCoordinator
}

func NewListingService(store repository.Store, coordinator *ReservationCoordinator) *ListingService {
	return &ListingService{store: store, coordinator: coordinator}
}

// ListingInput is the seller-provided part of a listing.
type ListingInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Images      []string `json:"images"`
	Tags        []string `json:"tags"`
	Location    string   `json:"location"`
}

// ListingPatch carries a partial update.  Nil fields are left unchanged.
type ListingPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Price       *int64    `json:"price"`
	Category    *string   `json:"category"`
	Condition   *string   `json:"condition"`
	Images      *[]string `json:"images"`
	Tags        *[]string `json:"tags"`
	Location    *string   `json:"location"`
}

// Create stores a new available listing owned by sellerID.
func (s *ListingService) Create(ctx context.Context, sellerID string, in ListingInput) (*model.ListingView, error) {
	l := &model.Listing{
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    model.Category(in.Category),
		Condition:   model.Condition(in.Condition),
		Images:      append([]string(nil), in.Images...),
		Tags:        append([]string(nil), in.Tags...),
		Location:    in.Location,
		SellerID:    sellerID,
	}
	if _, err := s.store.CreateListing(ctx, l); err != nil {
		return nil, err
	}
	return &model.ListingView{Listing: *l, State: model.StateAvailable}, nil
}

// Get returns a listing with its derived state.
func (s *ListingService) Get(ctx context.Context, id string) (*model.ListingView, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []model.Listing{*l})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Search runs a filtered, paginated query.
func (s *ListingService) Search(ctx context.Context, f repository.SearchFilter) ([]model.ListingView, int64, error) {
	ls, total, err := s.store.Search(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, ls)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// Recent returns the newest listings, optionally within one category.
func (s *ListingService) Recent(ctx context.Context, limit int, category model.Category) ([]model.ListingView, error) {
	ls, err := s.store.Recent(ctx, limit, category)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, ls)
}

// PopularTags returns the most used tags with their listing counts.
func (s *ListingService) PopularTags(ctx context.Context, limit int) ([]model.TagCount, error) {
	return s.store.PopularTags(ctx, limit)
}

// ListByOwner returns the seller's own listings, newest first.
func (s *ListingService) ListByOwner(ctx context.Context, sellerID string) ([]model.ListingView, error) {
	ls, err := s.store.ListByOwner(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, ls)
}

// Update applies a partial edit.  Only the seller may edit, and a sold
// listing is frozen.  Status is never changed here.
func (s *ListingService) Update(ctx context.Context, actorID, id string, p ListingPatch) (*model.ListingView, error) {
	var out model.Listing
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		l, err := tx.LockListing(ctx, id)
		if err != nil {
			return err
		}
		if !l.IsOwnedBy(actorID) {
			return repository.ErrForbidden
		}
		if l.Status == model.ListingSold {
			return repository.ErrInvalidState
		}
		p.apply(l)
		if err := tx.UpdateListing(ctx, l); err != nil {
			return err
		}
		out = l.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []model.Listing{out})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Delete removes an available listing owned by actorID.
func (s *ListingService) Delete(ctx context.Context, actorID, id string) error {
	return s.coordinator.DeleteListing(ctx, actorID, id)
}

// Categories returns the category taxonomy.
func (s *ListingService) Categories() []model.Category { return model.Categories }

// Conditions returns the condition taxonomy.
func (s *ListingService) Conditions() []model.Condition { return model.Conditions }

func (s *ListingService) views(ctx context.Context, ls []model.Listing) ([]model.ListingView, error) {
	ids := make([]string, len(ls))
	for i := range ls {
		ids[i] = ls[i].ID
	}
	counts, err := s.store.RequestCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.ListingView, len(ls))
	for i, l := range ls {
		c := counts[l.ID]
		out[i] = model.ListingView{
			Listing:          l,
			State:            model.DeriveState(l.Status, c.Pending),
			ReservationCount: c.Total,
		}
	}
	return out, nil
}

func (p ListingPatch) apply(l *model.Listing) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.Category != nil {
		l.Category = model.Category(*p.Category)
	}
	if p.Condition != nil {
		l.Condition = model.Condition(*p.Condition)
	}
	if p.Images != nil {
		l.Images = append([]string(nil), (*p.Images)...)
	}
	if p.Tags != nil {
		l.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Location != nil {
		l.Location = *p.Location
	}
}
