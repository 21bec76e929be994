package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iliyamo/campus-marketplace/internal/repository"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_reservation_transitions_total",
		Help: "Reservation coordinator operations, labeled by operation and outcome",
	}, []string{"operation", "outcome"})

	eventPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_event_publish_failures_total",
		Help: "Reservation events that could not be handed to the broker",
	})
)

// Operation labels.
const (
	opRequest = "request"
	opCancel  = "cancel"
	opConfirm = "confirm"
	opSold    = "mark_sold"
	opDelete  = "delete_listing"
)

func observe(op string, err error) {
	transitionsTotal.WithLabelValues(op, repository.ErrorKind(err)).Inc()
}
