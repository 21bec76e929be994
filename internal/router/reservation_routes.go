package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-marketplace/internal/handler"
	"github.com/iliyamo/campus-marketplace/internal/middleware"
)

// RegisterReservations registers the reservation workflow.  State-changing
// routes also draw from the write rate-limit bucket.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, writeLimit echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/listings/:id/reservations", h.Request, writeLimit)
	g.DELETE("/listings/:id/reservations", h.Cancel, writeLimit)
	g.POST("/listings/:id/reservations/:buyer_id/confirm", h.Confirm, writeLimit)
	g.POST("/listings/:id/sold", h.MarkSold, writeLimit)

	g.GET("/listings/:id/reservations", h.ForListing)
	g.GET("/listings/:id/reservations/me", h.Mine)
	g.GET("/me/requests", h.MyRequests)
}
