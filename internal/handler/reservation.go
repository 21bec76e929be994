package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-marketplace/internal/model"
	"github.com/iliyamo/campus-marketplace/internal/service"
)

// ReservationHandler exposes the reservation workflow.  The same actor may
// be a buyer on one listing and the seller of another; the coordinator
// decides which role applies per listing.
type ReservationHandler struct {
	coord *service.ReservationCoordinator
	log   *slog.Logger
}

func NewReservationHandler(coord *service.ReservationCoordinator, log *slog.Logger) *ReservationHandler {
	return &ReservationHandler{coord: coord, log: log}
}

// Request handles POST /v1/listings/:id/reservations.
func (h *ReservationHandler) Request(c echo.Context) error {
	buyerID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	req, err := h.coord.RequestReservation(c.Request().Context(), buyerID, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, req)
}

// Cancel handles DELETE /v1/listings/:id/reservations.  Buyers cancel their
// own request; the seller names the buyer to decline with ?buyer_id=.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	err := h.coord.CancelReservation(c.Request().Context(), actorID, c.Param("id"), c.QueryParam("buyer_id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Confirm handles POST /v1/listings/:id/reservations/:buyer_id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	sellerID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	listingID, buyerID := c.Param("id"), c.Param("buyer_id")
	if err := h.coord.ConfirmReservation(c.Request().Context(), sellerID, listingID, buyerID); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"listing_id": listingID,
		"buyer_id":   buyerID,
		"status":     model.ListingReserved,
	})
}

// MarkSold handles POST /v1/listings/:id/sold.
func (h *ReservationHandler) MarkSold(c echo.Context) error {
	sellerID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	listingID := c.Param("id")
	if err := h.coord.MarkSold(c.Request().Context(), sellerID, listingID); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"listing_id": listingID, "status": model.ListingSold})
}

// ForListing handles GET /v1/listings/:id/reservations (seller only).
func (h *ReservationHandler) ForListing(c echo.Context) error {
	sellerID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := h.coord.RequestsForListing(c.Request().Context(), sellerID, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(items)})
}

// Mine handles GET /v1/listings/:id/reservations/me.
func (h *ReservationHandler) Mine(c echo.Context) error {
	buyerID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	req, err := h.coord.RequestOf(c.Request().Context(), buyerID, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, req)
}

// MyRequests handles GET /v1/me/requests.
func (h *ReservationHandler) MyRequests(c echo.Context) error {
	buyerID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := h.coord.RequestsOf(c.Request().Context(), buyerID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(items)})
}
