package model

import (
	"strings"
	"time"
)

// ReservationStatus is the status of a single reservation request.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
)

// ParseReservationStatus decodes a request status case-insensitively.
func ParseReservationStatus(s string) (ReservationStatus, bool) {
	switch ReservationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case ReservationPending:
		return ReservationPending, true
	case ReservationConfirmed:
		return ReservationConfirmed, true
	}
	return "", false
}

// ReservationRequest records a buyer's intent to take a listing.  The pair
// (ListingID, BuyerID) identifies it; a listing has at most one confirmed
// request at any time.
type ReservationRequest struct {
	ListingID   string            `json:"listing_id"`
	BuyerID     string            `json:"buyer_id"`
	Status      ReservationStatus `json:"status"`
	RequestedAt time.Time         `json:"requested_at"`
}

// IsConfirmed reports whether the request holds the listing.
func (r *ReservationRequest) IsConfirmed() bool { return r.Status == ReservationConfirmed }

// BuyerRequest pairs a buyer's request with the listing it targets.  It
// backs the "my requests" view.
type BuyerRequest struct {
	Request ReservationRequest `json:"request"`
	Listing Listing            `json:"listing"`
}
