package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"rocketapi/docs"
)

// Swagger publishes host and scheme in the generated OpenAPI document and
// returns the Swagger UI handler. Call it once while building the app:
// the document info is package state and is only read while serving.
func Swagger(host, scheme string) fiber.Handler {
	docs.SwaggerInfo.Host = host
	docs.SwaggerInfo.Schemes = []string{scheme}
	return swagger.HandlerDefault
}
