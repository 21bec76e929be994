package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-marketplace/internal/assets"
	"github.com/iliyamo/campus-marketplace/internal/middleware"
	"github.com/iliyamo/campus-marketplace/internal/repository"
)

// respondError writes the JSON error body for err.  Unknown errors are
// logged and reported as 500 without their text.
func respondError(c echo.Context, log *slog.Logger, err error) error {
	kind := repository.ErrorKind(err)
	body := echo.Map{"error": kind, "message": err.Error()}

	var verr *repository.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body["fields"] = verr.Fields
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrInvalidState),
		errors.Is(err, repository.ErrDuplicateRequest),
		errors.Is(err, repository.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, assets.ErrUnavailable):
		status = http.StatusServiceUnavailable
		body = echo.Map{"error": "unavailable", "message": err.Error()}
	default:
		log.Error("request failed",
			"method", c.Request().Method, "route", c.Path(), "err", err)
		body["message"] = "internal error"
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, field, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error":   "validation_error",
		"message": msg,
		"fields":  map[string]string{field: msg},
	})
}

// actor returns the authenticated actor id.  It is empty only when a
// protected route was registered without JWTAuth.
func actor(c echo.Context) (string, bool) {
	id := middleware.ActorID(c)
	return id, id != ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing actor"})
}
