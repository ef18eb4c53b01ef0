package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/hsg0/RN-weather-app1/internal/geo"
	"github.com/hsg0/RN-weather-app1/internal/session"
	"github.com/hsg0/RN-weather-app1/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, sess *session.Session) {
	v1 := app.Group("/api/v1")

	v1.Get("/session", func(c *fiber.Ctx) error {
		snap, err := sess.Snapshot(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "session unavailable")
		}
		return c.JSON(snap)
	})

	v1.Post("/search", func(c *fiber.Ctx) error {
		var req searchRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := sess.Search(c.Context(), req.City); err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}

		snap, err := sess.Snapshot(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "session unavailable")
		}
		return c.JSON(snap)
	})

	v1.Post("/locate", func(c *fiber.Ctx) error {
		if err := sess.Locate(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "session unavailable")
		}
		snap, err := sess.Snapshot(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "session unavailable")
		}
		return c.Status(fiber.StatusAccepted).JSON(snap)
	})
}

// searchRequest is the body of POST /search. Emptiness is the session's
// concern; the binding only caps the length.
type searchRequest struct {
	City string `json:"city" validate:"max=100"`
}

// statusFor maps domain error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrEmptyQuery):
		return fiber.StatusBadRequest
	case errors.Is(err, session.ErrSearchInFlight):
		return fiber.StatusConflict
	case errors.Is(err, weather.ErrNoAPIKey):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, weather.ErrProvider):
		return fiber.StatusBadGateway
	case errors.Is(err, weather.ErrNetwork):
		return fiber.StatusBadGateway
	case errors.Is(err, geo.ErrPermissionDenied):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}
