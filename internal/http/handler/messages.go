package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"rocketapi/internal/model"
	"rocketapi/internal/service"
)

// ReceiveMessage accepts one telemetry message.
// Duplicates and early messages are accepted too; sequencing happens behind the endpoint.
//
// @Summary Receive rocket telemetry
// @Tags messages
// @Accept json
// @Param body body model.Telemetry true "Telemetry message"
// @Success 200
// @Failure 400 {object} errorPayload
// @Router /messages [post]
func ReceiveMessage(svc service.RocketService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()

		t, err := model.DecodeTelemetry(body)
		if err != nil {
			svc.Reject(c.UserContext(), err)
			return writeTelemetryError(c, err)
		}

		if _, err := svc.Ingest(c.UserContext(), t, body); err != nil {
			return writeTelemetryError(c, err)
		}
		return c.SendStatus(fiber.StatusOK)
	}
}

func writeTelemetryError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidJSON):
		return writeError(c, fiber.StatusBadRequest, codeInvalidJSON, err.Error())
	case errors.Is(err, model.ErrInvalidTelemetry):
		return writeError(c, fiber.StatusBadRequest, codeInvalidMessage, err.Error())
	default:
		return internalError(c)
	}
}
