// Package router registers the HTTP routes of the marketplace API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/campus-marketplace/internal/handler"
)

// RegisterRoutes registers the probes and the Prometheus endpoint.  They
// sit outside /v1 and skip auth, rate limiting and caching.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers unauthenticated browse endpoints.  cache is the
// response cache; it only stores routes its config allows.
func RegisterPublic(e *echo.Echo, h *handler.ListingHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", cache)
	g.GET("/listings", h.Search)
	g.GET("/listings/recent", h.Recent)
	g.GET("/listings/:id", h.Get)
	g.GET("/categories", h.Categories)
	g.GET("/conditions", h.Conditions)
	g.GET("/tags/popular", h.PopularTags)
}
