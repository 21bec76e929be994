package middleware

import "github.com/labstack/echo/v4"

// actorKey is the echo context key JWTAuth stores the actor id under.
const actorKey = "actor_id"

// ActorID returns the authenticated actor id, or "" on public routes.
func ActorID(c echo.Context) string {
	if s, ok := c.Get(actorKey).(string); ok {
		return s
	}
	return ""
}

// rateSubject identifies the caller for rate limiting; anonymous callers
// share one subject per IP.
func rateSubject(c echo.Context) string {
	if id := ActorID(c); id != "" {
		return id
	}
	return "anon"
}
