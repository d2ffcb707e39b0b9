package handler

import (
	"github.com/gofiber/fiber/v2"

	"rocketapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin, sequencing and sorting live in the service.
func RegisterRoutes(app *fiber.App, svc service.RocketService) {
	app.Get("/health", HealthCheck(svc))
	app.Get("/healthz", LivenessProbe())

	app.Post("/messages", ReceiveMessage(svc))

	rockets := app.Group("/rockets")
	rockets.Get("/", ListRockets(svc))
	// registered before /:channel so "types" is not taken for a channel id
	rockets.Get("/types", RocketTypes(svc))
	rockets.Get("/:channel", GetRocket(svc))
}
