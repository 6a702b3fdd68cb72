// Package server exposes the engine over HTTP. Mutating routes
// require a bearer token; queries and probes are open.
package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/core"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/observability"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/persistence"
)

// Deps carries everything the HTTP layer needs. History may be nil.
type Deps struct {
	Engine    *core.Engine
	History   *persistence.HistoryService
	Health    *observability.HealthChecker
	JWTSecret string
	Log       zerolog.Logger
}

// New builds the fiber application with all routes registered.
func New(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "flight-insurance",
		DisableStartupMessage: true,
	})

	h := NewHandlers(deps.Engine, deps.History, deps.Log)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive", "uptime": deps.Health.Uptime().String()})
	})
	app.Get("/readyz", func(c *fiber.Ctx) error {
		if !deps.Health.IsReady() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	v1 := app.Group("/v1")

	// Open queries.
	v1.Get("/policies/active", h.ActivePolicies)
	v1.Get("/policies/count", h.PolicyCount)
	v1.Get("/policies/:id", h.GetPolicy)
	v1.Get("/pool", h.Pool)
	v1.Get("/flights/:flight_id/policies", h.FlightPolicies)
	v1.Get("/admins/:principal", h.IsAdmin)
	v1.Get("/history/policies/:id", h.PolicyHistory)
	v1.Get("/history/flights/:flight_id", h.FlightHistory)

	// Mutations require an authenticated principal.
	authed := v1.Group("", RequireAuth(deps.JWTSecret, deps.Log))
	authed.Post("/initialize", h.Initialize)
	authed.Post("/policies", h.CreatePolicy)
	authed.Post("/flights/:flight_id/resolution", h.ResolveFlight)
	authed.Post("/pool/deposits", h.Deposit)
	authed.Post("/pool/withdrawals", h.Withdraw)

	return app
}
