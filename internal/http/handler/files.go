package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"assetapi/internal/service"
	"assetapi/internal/storage"
)

// ServeFile streams stored content; the key is the wildcard part of the route.
// Generated names are never reused, so responses are cached as immutable.
func ServeFile(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, info, err := svc.Open(c.UserContext(), c.Params("*"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			case errors.Is(err, storage.ErrInvalidKey):
				return writeError(c, fiber.StatusBadRequest, "INVALID_KEY", "invalid file path")
			}
			return fmt.Errorf("open %q: %w", c.Params("*"), err)
		}

		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		}
		c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
		c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
		return c.SendStream(rc, int(info.Size))
	}
}
