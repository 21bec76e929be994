// Package queue defines the reservation activity events exchanged over the
// message broker, the publishers that emit them and the consumer that
// records them.
package queue

import "time"

// EventType names a committed reservation transition.
type EventType string

const (
	EventRequested EventType = "reservation.requested"
	EventCancelled EventType = "reservation.cancelled"
	EventConfirmed EventType = "reservation.confirmed"
	EventSold      EventType = "listing.sold"
)

// ActivityQueue is the durable queue (and Kafka topic default) that carries
// reservation events.
const ActivityQueue = "reservation.activity"

// ReservationEvent is published after a reservation transition commits.  It
// carries enough context for the activity log without querying the primary
// database.
type ReservationEvent struct {
	Type          EventType `json:"type"`
	ListingID     string    `json:"listing_id"`
	ListingTitle  string    `json:"listing_title"`
	BuyerID       string    `json:"buyer_id"`
	SellerID      string    `json:"seller_id"`
	ActorID       string    `json:"actor_id"`
	ListingStatus string    `json:"listing_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}
