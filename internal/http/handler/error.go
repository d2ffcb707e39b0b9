package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"rocketapi/internal/http/middleware"
)

// Machine readable error codes returned in errorEnvelope.Code.
const (
	codeBadRequest         = "BAD_REQUEST"
	codeInvalidJSON        = "INVALID_JSON"
	codeInvalidMessage     = "INVALID_MESSAGE"
	codeNotFound           = "NOT_FOUND"
	codeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	codePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	codeServiceUnavailable = "SERVICE_UNAVAILABLE"
	codeInternal           = "INTERNAL_ERROR"
)

// errorPayload is the body of every error response.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func requestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(middleware.RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}

// writeError writes an errorPayload. message must be safe to show to clients.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	})
}

func internalError(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusInternalServerError, codeInternal, "internal server error")
}

// fallbackErrors maps statuses raised by Fiber itself to a code and message.
var fallbackErrors = map[int][2]string{
	fiber.StatusBadRequest:            {codeBadRequest, "bad request"},
	fiber.StatusNotFound:              {codeNotFound, "resource not found"},
	fiber.StatusMethodNotAllowed:      {codeMethodNotAllowed, "method not allowed"},
	fiber.StatusRequestEntityTooLarge: {codePayloadTooLarge, "request body too large"},
}

// ErrorHandler renders errors that escape the handlers, such as unknown routes
// or oversized bodies, in the errorPayload format.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			if e, ok := fallbackErrors[fe.Code]; ok {
				return writeError(c, fe.Code, e[0], e[1])
			}
			if fe.Code < fiber.StatusInternalServerError {
				return writeError(c, fe.Code, codeBadRequest, fe.Message)
			}
		}
		return internalError(c)
	}
}
