package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/campus-marketplace/internal/model"
)

// Reservation requests live in reservation_requests keyed by
// (listing_id, buyer_id).  The schema allows at most one confirmed row per
// listing; MySQL enforces it through a unique generated column and
// Postgres through a partial unique index.

func scanRequest(row rowScanner) (model.ReservationRequest, error) {
	var r model.ReservationRequest
	var status string
	if err := row.Scan(&r.ListingID, &r.BuyerID, &status, &r.RequestedAt); err != nil {
		return r, err
	}
	if st, ok := model.ParseReservationStatus(status); ok {
		r.Status = st
	} else {
		r.Status = model.ReservationStatus(status)
	}
	r.RequestedAt = r.RequestedAt.UTC()
	return r, nil
}

// RequestsByListing returns pending and confirmed requests, oldest first.
func (s *SQLStore) RequestsByListing(ctx context.Context, listingID string) ([]model.ReservationRequest, error) {
	const q = `SELECT listing_id, buyer_id, status, requested_at
		FROM reservation_requests
		WHERE listing_id = ?
		ORDER BY requested_at ASC, buyer_id`
	rows, err := s.db.QueryContext(ctx, s.q(q), listingID)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	out := []model.ReservationRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RequestByBuyerAndListing returns ErrNotFound when the buyer has no
// request on the listing.
func (s *SQLStore) RequestByBuyerAndListing(ctx context.Context, buyerID, listingID string) (*model.ReservationRequest, error) {
	const q = `SELECT listing_id, buyer_id, status, requested_at
		FROM reservation_requests
		WHERE listing_id = ? AND buyer_id = ?`
	r, err := scanRequest(s.db.QueryRowContext(ctx, s.q(q), listingID, buyerID))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &r, nil
}

// RequestsByBuyer joins the buyer's requests with their listings.
func (s *SQLStore) RequestsByBuyer(ctx context.Context, buyerID string) ([]model.BuyerRequest, error) {
	q := `SELECT r.listing_id, r.buyer_id, r.status, r.requested_at, ` + listingColumns + `
		FROM reservation_requests r
		JOIN listings l ON l.id = r.listing_id
		WHERE r.buyer_id = ?
		ORDER BY r.requested_at DESC, r.listing_id`
	rows, err := s.db.QueryContext(ctx, s.q(q), buyerID)
	if err != nil {
		return nil, fmt.Errorf("query buyer requests: %w", err)
	}
	defer rows.Close()

	var reqs []model.ReservationRequest
	var listings []model.Listing
	for rows.Next() {
		var (
			r                           model.ReservationRequest
			l                           model.Listing
			rStatus, cat, cond, lStatus string
		)
		if err := rows.Scan(
			&r.ListingID, &r.BuyerID, &rStatus, &r.RequestedAt,
			&l.ID, &l.Title, &l.Description, &l.Price, &cat, &cond,
			&l.Location, &lStatus, &l.SellerID, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan buyer request: %w", err)
		}
		r.Status, _ = model.ParseReservationStatus(rStatus)
		r.RequestedAt = r.RequestedAt.UTC()
		l.Category = model.Category(cat)
		l.Condition = model.Condition(cond)
		l.Status, _ = model.ParseListingStatus(lStatus)
		l.CreatedAt = l.CreatedAt.UTC()
		l.UpdatedAt = l.UpdatedAt.UTC()
		reqs = append(reqs, r)
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachMedia(ctx, s.db, listings); err != nil {
		return nil, err
	}
	out := make([]model.BuyerRequest, 0, len(reqs))
	for i := range reqs {
		out = append(out, model.BuyerRequest{Request: reqs[i], Listing: listings[i]})
	}
	return out, nil
}

// RequestCounts aggregates pending and total requests per listing.
func (s *SQLStore) RequestCounts(ctx context.Context, listingIDs []string) (map[string]RequestCount, error) {
	out := make(map[string]RequestCount, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(listingIDs))
	for i, id := range listingIDs {
		args[i] = id
	}
	q := `SELECT listing_id,
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
			COUNT(*)
		FROM reservation_requests
		WHERE listing_id IN (` + placeholders(len(args)) + `)
		GROUP BY listing_id`
	rows, err := s.db.QueryContext(ctx, s.q(q), args...)
	if err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var pending, total int64
		if err := rows.Scan(&id, &pending, &total); err != nil {
			return nil, fmt.Errorf("scan request count: %w", err)
		}
		out[id] = RequestCount{Pending: int(pending), Total: int(total)}
	}
	return out, rows.Err()
}

// LockRequest selects the (listing, buyer) row FOR UPDATE.
func (t *sqlTx) LockRequest(ctx context.Context, listingID, buyerID string) (*model.ReservationRequest, error) {
	const q = `SELECT listing_id, buyer_id, status, requested_at
		FROM reservation_requests
		WHERE listing_id = ? AND buyer_id = ?
		FOR UPDATE`
	r, err := scanRequest(t.tx.QueryRowContext(ctx, t.q(q), listingID, buyerID))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &r, nil
}

func (t *sqlTx) CreateRequest(ctx context.Context, listingID, buyerID string) (*model.ReservationRequest, error) {
	var status string
	err := t.tx.QueryRowContext(ctx, t.q(`SELECT status FROM listings WHERE id = ?`), listingID).Scan(&status)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if st, _ := model.ParseListingStatus(status); st != model.ListingAvailable {
		return nil, ErrInvalidState
	}

	r := model.ReservationRequest{
		ListingID:   listingID,
		BuyerID:     buyerID,
		Status:      model.ReservationPending,
		RequestedAt: t.store.now(),
	}
	const ins = `INSERT INTO reservation_requests (listing_id, buyer_id, status, requested_at) VALUES (?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, t.q(ins), r.ListingID, r.BuyerID, string(r.Status), r.RequestedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("insert request: %w", err)
	}
	return &r, nil
}

func (t *sqlTx) ConfirmedRequest(ctx context.Context, listingID string) (*model.ReservationRequest, error) {
	const q = `SELECT listing_id, buyer_id, status, requested_at
		FROM reservation_requests
		WHERE listing_id = ? AND status = 'confirmed'`
	r, err := scanRequest(t.tx.QueryRowContext(ctx, t.q(q), listingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (t *sqlTx) PromoteRequest(ctx context.Context, listingID, buyerID string) error {
	existing, err := t.ConfirmedRequest(ctx, listingID)
	if err != nil {
		return err
	}
	if existing != nil && existing.BuyerID != buyerID {
		return ErrConflict
	}

	const upd = `UPDATE reservation_requests SET status = 'confirmed'
		WHERE listing_id = ? AND buyer_id = ? AND status = 'pending'`
	res, err := t.tx.ExecContext(ctx, t.q(upd), listingID, buyerID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("promote request: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		if existing != nil {
			return ErrInvalidState
		}
		return ErrNotFound
	}
	return nil
}

func (t *sqlTx) RemoveRequest(ctx context.Context, listingID, buyerID string) error {
	res, err := t.tx.ExecContext(ctx,
		t.q(`DELETE FROM reservation_requests WHERE listing_id = ? AND buyer_id = ?`), listingID, buyerID)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqlTx) RemovePendingRequests(ctx context.Context, listingID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		t.q(`DELETE FROM reservation_requests WHERE listing_id = ? AND status = 'pending'`), listingID)
	if err != nil {
		return 0, fmt.Errorf("delete pending requests: %w", err)
	}
	return rowsAffected(res)
}

func (t *sqlTx) RemoveRequests(ctx context.Context, listingID string) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		t.q(`DELETE FROM reservation_requests WHERE listing_id = ?`), listingID)
	if err != nil {
		return 0, fmt.Errorf("delete requests: %w", err)
	}
	return rowsAffected(res)
}
