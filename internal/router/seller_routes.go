package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-marketplace/internal/handler"
	"github.com/iliyamo/campus-marketplace/internal/middleware"
)

// RegisterSeller registers listing management endpoints.  Every route
// needs a valid token; ownership is checked per listing by the services.
func RegisterSeller(e *echo.Echo, h *handler.ListingHandler, u *handler.UploadHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/uploads/images", u.Images)
	g.POST("/listings", h.Create)
	g.PATCH("/listings/:id", h.Update)
	g.DELETE("/listings/:id", h.Delete)
	g.GET("/me/listings", h.Mine)
}
