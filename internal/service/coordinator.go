// Package service holds the marketplace's business rules.  The
// ReservationCoordinator is the only component that changes a listing's
// status or writes to the reservation ledger; every transition it applies
// runs in one store transaction that starts by locking the listing row.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/campus-marketplace/internal/model"
	"github.com/iliyamo/campus-marketplace/internal/queue"
	"github.com/iliyamo/campus-marketplace/internal/repository"
)

const publishTimeout = 5 * time.Second

// ReservationCoordinator enforces the reservation state machine:
//
//	AVAILABLE -> REQUESTED (pending requests) -> RESERVED (one confirmed) -> SOLD
//
// REQUESTED is never stored; it is derived from the ledger.
type ReservationCoordinator struct {
	store  repository.Store
	events queue.Publisher
	log    *slog.Logger
	now    func() time.Time
}

// NewReservationCoordinator wires the coordinator.  A nil publisher drops
// events.
func NewReservationCoordinator(store repository.Store, events queue.Publisher, log *slog.Logger) *ReservationCoordinator {
	if events == nil {
		events = queue.NopPublisher{}
	}
	return &ReservationCoordinator{store: store, events: events, log: log, now: time.Now}
}

// RequestReservation records buyerID's interest in an available listing.
// The listing stays available so other buyers may still request it.
func (c *ReservationCoordinator) RequestReservation(ctx context.Context, buyerID, listingID string) (*model.ReservationRequest, error) {
	var (
		req     *model.ReservationRequest
		listing *model.Listing
	)
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		l, err := tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		if l.IsOwnedBy(buyerID) {
			return repository.ErrForbidden
		}
		if _, err := tx.LockRequest(ctx, listingID, buyerID); err == nil {
			return repository.ErrDuplicateRequest
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if l.Status != model.ListingAvailable {
			return repository.ErrInvalidState
		}
		req, err = tx.CreateRequest(ctx, listingID, buyerID)
		listing = l
		return err
	})
	observe(opRequest, err)
	if err != nil {
		return nil, err
	}
	c.publish(ctx, queue.EventRequested, listing, buyerID, buyerID)
	return req, nil
}

// CancelReservation removes a request.  A buyer cancels their own request
// by leaving targetBuyerID empty (or passing their own id).  The seller
// declines a buyer by naming them.  Removing the confirmed request returns
// the listing to available; removing a pending one never changes status.
func (c *ReservationCoordinator) CancelReservation(ctx context.Context, actorID, listingID, targetBuyerID string) error {
	targetBuyerID = strings.TrimSpace(targetBuyerID)
	var listing *model.Listing
	var buyerID string

	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		l, err := tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		switch {
		case l.IsOwnedBy(actorID):
			if targetBuyerID == "" {
				return repository.NewValidationError(map[string]string{"buyer_id": "required when the seller cancels"})
			}
			buyerID = targetBuyerID
		case targetBuyerID == "" || targetBuyerID == actorID:
			buyerID = actorID
		default:
			return repository.ErrForbidden
		}
		if l.Status == model.ListingSold {
			return repository.ErrInvalidState
		}

		r, err := tx.LockRequest(ctx, listingID, buyerID)
		if err != nil {
			return err
		}
		if err := tx.RemoveRequest(ctx, listingID, buyerID); err != nil {
			return err
		}
		if r.IsConfirmed() {
			if err := tx.SetListingStatus(ctx, listingID, model.ListingAvailable); err != nil {
				return err
			}
			l.Status = model.ListingAvailable
		}
		listing = l
		return nil
	})
	observe(opCancel, err)
	if err != nil {
		return err
	}
	c.publish(ctx, queue.EventCancelled, listing, buyerID, actorID)
	return nil
}

// ConfirmReservation promotes buyerID's pending request and reserves the
// listing.  Other pending requests stay pending.  When a confirm races
// another, the listing row lock orders them and the loser sees
// ErrConflict; the ledger's uniqueness rule backs this up.
func (c *ReservationCoordinator) ConfirmReservation(ctx context.Context, sellerID, listingID, buyerID string) error {
	var listing *model.Listing
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		l, err := tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		if !l.IsOwnedBy(sellerID) {
			return repository.ErrForbidden
		}
		if l.Status == model.ListingSold {
			return repository.ErrInvalidState
		}
		r, err := tx.LockRequest(ctx, listingID, buyerID)
		if err != nil {
			return err
		}
		if r.IsConfirmed() {
			return repository.ErrInvalidState
		}
		confirmed, err := tx.ConfirmedRequest(ctx, listingID)
		if err != nil {
			return err
		}
		if confirmed != nil {
			return repository.ErrConflict
		}
		if err := tx.PromoteRequest(ctx, listingID, buyerID); err != nil {
			return err
		}
		if err := tx.SetListingStatus(ctx, listingID, model.ListingReserved); err != nil {
			return err
		}
		l.Status = model.ListingReserved
		listing = l
		return nil
	})
	observe(opConfirm, err)
	if err != nil {
		return err
	}
	c.publish(ctx, queue.EventConfirmed, listing, buyerID, sellerID)
	return nil
}

// MarkSold closes a reserved listing and clears its ledger.  The buyer is
// carried on the sold event.
func (c *ReservationCoordinator) MarkSold(ctx context.Context, sellerID, listingID string) error {
	var listing *model.Listing
	var buyerID string
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		l, err := tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		if !l.IsOwnedBy(sellerID) {
			return repository.ErrForbidden
		}
		if l.Status != model.ListingReserved {
			return repository.ErrInvalidState
		}
		if confirmed, err := tx.ConfirmedRequest(ctx, listingID); err != nil {
			return err
		} else if confirmed != nil {
			buyerID = confirmed.BuyerID
		}
		if err := tx.SetListingStatus(ctx, listingID, model.ListingSold); err != nil {
			return err
		}
		if _, err := tx.RemoveRequests(ctx, listingID); err != nil {
			return err
		}
		l.Status = model.ListingSold
		listing = l
		return nil
	})
	observe(opSold, err)
	if err != nil {
		return err
	}
	c.publish(ctx, queue.EventSold, listing, buyerID, sellerID)
	return nil
}

// DeleteListing removes an available listing and its pending requests.
// Reserved and sold listings cannot be deleted.
func (c *ReservationCoordinator) DeleteListing(ctx context.Context, sellerID, listingID string) error {
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		l, err := tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		if !l.IsOwnedBy(sellerID) {
			return repository.ErrForbidden
		}
		if l.Status != model.ListingAvailable {
			return repository.ErrInvalidState
		}
		if _, err := tx.RemovePendingRequests(ctx, listingID); err != nil {
			return err
		}
		return tx.DeleteListing(ctx, listingID)
	})
	observe(opDelete, err)
	return err
}

// RequestsForListing returns every request on the listing.  Only the
// seller may see them.
func (c *ReservationCoordinator) RequestsForListing(ctx context.Context, sellerID, listingID string) ([]model.ReservationRequest, error) {
	l, err := c.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !l.IsOwnedBy(sellerID) {
		return nil, repository.ErrForbidden
	}
	return c.store.RequestsByListing(ctx, listingID)
}

// RequestOf returns buyerID's request on the listing.
func (c *ReservationCoordinator) RequestOf(ctx context.Context, buyerID, listingID string) (*model.ReservationRequest, error) {
	return c.store.RequestByBuyerAndListing(ctx, buyerID, listingID)
}

// RequestsOf returns the buyer's requests with their listings.
func (c *ReservationCoordinator) RequestsOf(ctx context.Context, buyerID string) ([]model.BuyerRequest, error) {
	return c.store.RequestsByBuyer(ctx, buyerID)
}

// publish hands a committed transition to the broker.  The transition is
// already durable, so failures are only logged and counted.
func (c *ReservationCoordinator) publish(ctx context.Context, typ queue.EventType, l *model.Listing, buyerID, actorID string) {
	ev := queue.ReservationEvent{
		Type:          typ,
		ListingID:     l.ID,
		ListingTitle:  l.Title,
		BuyerID:       buyerID,
		SellerID:      l.SellerID,
		ActorID:       actorID,
		ListingStatus: string(l.Status),
		OccurredAt:    c.now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.events.Publish(pctx, ev); err != nil {
		eventPublishFailures.Inc()
		c.log.Warn("reservation event not published",
			"type", ev.Type, "listing_id", ev.ListingID, "err", err)
	}
}
