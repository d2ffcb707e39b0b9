package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"rocketapi/internal/service"
)

// ListRockets returns all rockets, optionally filtered by type.
// Without sortBy, or with an unknown key, rockets are sorted by mission.
//
// @Summary List rockets
// @Tags rockets
// @Produce json
// @Param sortBy query string false "type, speed, status, launchTime, endTime or mission"
// @Param orderBy query string false "asc or desc" default(asc)
// @Param type query string false "rocket type, case-insensitive"
// @Success 200 {array} model.Rocket
// @Router /rockets [get]
func ListRockets(svc service.RocketService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.List(c.UserContext(), service.RocketQuery{
			SortBy:  c.Query("sortBy"),
			OrderBy: c.Query("orderBy", "asc"),
			Type:    c.Query("type"),
		})
		if err != nil {
			return internalError(c)
		}
		return c.JSON(res)
	}
}

// GetRocket returns the rocket tracked on a channel.
//
// @Summary Get rocket by channel
// @Tags rockets
// @Produce json
// @Param channel path string true "rocket channel"
// @Success 200 {object} model.Rocket
// @Failure 404 {object} errorPayload
// @Router /rockets/{channel} [get]
func GetRocket(svc service.RocketService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rocket, err := svc.Get(c.UserContext(), c.Params("channel"))
		if err != nil {
			if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrIDRequired) {
				return writeError(c, fiber.StatusNotFound, codeNotFound, "rocket not found")
			}
			return internalError(c)
		}
		return c.JSON(rocket)
	}
}

// RocketTypes returns the distinct rocket types seen so far.
//
// @Summary List rocket types
// @Tags rockets
// @Produce json
// @Success 200 {array} string
// @Router /rockets/types [get]
func RocketTypes(svc service.RocketService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		types, err := svc.Types(c.UserContext())
		if err != nil {
			return internalError(c)
		}
		return c.JSON(types)
	}
}
