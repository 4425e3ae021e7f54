package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"assetapi/internal/http/middleware"
)

// Client-facing error messages.
const (
	msgNoFiles          = "No files uploaded"
	msgTooManyFiles     = "Too many files"
	msgInvalidFileType  = "Invalid file type"
	msgFileTooLarge     = "File too large"
	msgMethodNotAllowed = "Method not allowed"
	msgInternal         = "Internal server error"
)

// errorPayload is the single error response body of the API.
type errorPayload struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

// writeError writes an error response. message must be safe to show to clients.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: middleware.GetRequestID(c),
		Code:      code,
		Error:     message,
	})
}

// ErrorHandler maps framework errors and unhandled handler errors to the error payload.
// Errors that are not *fiber.Error are logged and answered with a generic 500.
func ErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetRequestID(c),
				"method":     c.Method(),
				"path":       c.Path(),
			}).WithError(err).Error("unhandled error")
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
		}

		switch fe.Code {
		case fiber.StatusBadRequest:
			return writeError(c, fe.Code, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, fe.Code, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, fe.Code, "METHOD_NOT_ALLOWED", msgMethodNotAllowed)
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, fe.Code, "FILE_TOO_LARGE", msgFileTooLarge)
		case fiber.StatusServiceUnavailable:
			return writeError(c, fe.Code, "SERVICE_UNAVAILABLE", "service unavailable")
		default:
			if fe.Code >= fiber.StatusBadRequest && fe.Code < fiber.StatusInternalServerError {
				return writeError(c, fe.Code, "BAD_REQUEST", fe.Message)
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
		}
	}
}
