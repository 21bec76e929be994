// Package handler exposes the marketplace HTTP API.  Handlers parse input,
// read the actor from the request context and delegate to the service
// layer; every error goes through respondError.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-marketplace/internal/model"
	"github.com/iliyamo/campus-marketplace/internal/repository"
	"github.com/iliyamo/campus-marketplace/internal/service"
)

// ListingHandler serves listing browse and seller edit endpoints.
type ListingHandler struct {
	svc *service.ListingService
	log *slog.Logger
}

func NewListingHandler(svc *service.ListingService, log *slog.Logger) *ListingHandler {
	return &ListingHandler{svc: svc, log: log}
}

type searchResponse struct {
	Items    []model.ListingView `json:"items"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// Search handles GET /v1/listings.
func (h *ListingHandler) Search(c echo.Context) error {
	f, err := parseSearchFilter(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	f = f.Normalize()
	items, total, err := h.svc.Search(c.Request().Context(), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if items == nil {
		items = []model.ListingView{}
	}
	return c.JSON(http.StatusOK, searchResponse{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize})
}

// Recent handles GET /v1/listings/recent?limit=&category=.
func (h *ListingHandler) Recent(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "limit", "must be an integer")
		}
		limit = n
	}
	var cat model.Category
	if raw := c.QueryParam("category"); raw != "" {
		parsed, ok := model.ParseCategory(raw)
		if !ok {
			return badRequest(c, "category", "unknown category")
		}
		cat = parsed
	}
	items, err := h.svc.Recent(c.Request().Context(), limit, cat)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(items)})
}

// Get handles GET /v1/listings/:id.
func (h *ListingHandler) Get(c echo.Context) error {
	v, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Create handles POST /v1/listings.  The actor becomes the seller.
func (h *ListingHandler) Create(c echo.Context) error {
	sellerID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.ListingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	v, err := h.svc.Create(c.Request().Context(), sellerID, in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// Update handles PATCH /v1/listings/:id.
func (h *ListingHandler) Update(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var p service.ListingPatch
	if err := c.Bind(&p); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	v, err := h.svc.Update(c.Request().Context(), actorID, c.Param("id"), p)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Delete handles DELETE /v1/listings/:id.
func (h *ListingHandler) Delete(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.svc.Delete(c.Request().Context(), actorID, c.Param("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Mine handles GET /v1/me/listings.
func (h *ListingHandler) Mine(c echo.Context) error {
	sellerID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := h.svc.ListByOwner(c.Request().Context(), sellerID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(items)})
}

// Categories handles GET /v1/categories.
func (h *ListingHandler) Categories(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"items": h.svc.Categories()})
}

// PopularTags handles GET /v1/tags/popular.
func (h *ListingHandler) PopularTags(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "limit", "must be an integer")
		}
		limit = n
	}
	items, err := h.svc.PopularTags(c.Request().Context(), limit)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": nonNil(items)})
}

// Conditions handles GET /v1/conditions.
func (h *ListingHandler) Conditions(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"items": h.svc.Conditions()})
}

func parseSearchFilter(c echo.Context) (repository.SearchFilter, error) {
	f := repository.SearchFilter{
		Query: c.QueryParam("q"),
		Sort:  strings.ToLower(strings.TrimSpace(c.QueryParam("sort"))),
	}
	problems := map[string]string{}

	if raw := c.QueryParam("category"); raw != "" {
		if v, ok := model.ParseCategory(raw); ok {
			f.Category = v
		} else {
			problems["category"] = "unknown category"
		}
	}
	if raw := c.QueryParam("condition"); raw != "" {
		if v, ok := model.ParseCondition(raw); ok {
			f.Condition = v
		} else {
			problems["condition"] = "unknown condition"
		}
	}
	if raw := c.QueryParam("status"); raw != "" {
		if v, ok := model.ParseListingStatus(raw); ok {
			f.Status = v
		} else {
			problems["status"] = "unknown status"
		}
	}
	f.MinPrice = parsePrice(c.QueryParam("min_price"), "min_price", problems)
	f.MaxPrice = parsePrice(c.QueryParam("max_price"), "max_price", problems)
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		problems["max_price"] = "must not be below min_price"
	}
	f.Page = parseInt(c.QueryParam("page"), "page", problems)
	f.PageSize = parseInt(c.QueryParam("page_size"), "page_size", problems)

	return f, repository.NewValidationError(problems)
}

func parsePrice(raw, field string, problems map[string]string) *int64 {
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		problems[field] = "must be a non-negative integer"
		return nil
	}
	return &n
}

func parseInt(raw, field string, problems map[string]string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		problems[field] = "must be an integer"
		return 0
	}
	return n
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
