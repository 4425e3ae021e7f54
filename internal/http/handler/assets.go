package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"assetapi/internal/ingest"
	"assetapi/internal/service"
)

// ListAssets godoc
// @Summary      List assets
// @Description  Newest first. limit defaults to 10 and is capped at 100.
// @Tags         assets
// @Produce      json
// @Param        limit   query  int     false  "Page size"
// @Param        offset  query  int     false  "Rows to skip"
// @Param        kind    query  string  false  "image, vector, animation, model or data"
// @Success      200  {object}  service.AssetListResult
// @Failure      400  {object}  errorPayload
// @Failure      500  {object}  errorPayload
// @Router       /api/assets [get]
func ListAssets(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(service.DefaultListLimit)))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset, c.Query("kind"))
		if err != nil {
			if errors.Is(err, service.ErrInvalidKind) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_KIND", "invalid kind")
			}
			return fmt.Errorf("list assets: %w", err)
		}
		return c.JSON(res)
	}
}

// GetAsset godoc
// @Summary      Get an asset
// @Tags         assets
// @Produce      json
// @Param        id   path  string  true  "Asset ID"
// @Success      200  {object}  model.Asset
// @Failure      400  {object}  errorPayload
// @Failure      404  {object}  errorPayload
// @Router       /api/assets/{id} [get]
func GetAsset(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !ingest.ValidID(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		a, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return assetError(c, err)
		}
		return c.JSON(a)
	}
}

// DownloadAsset godoc
// @Summary      Download the original file
// @Description  Redirects to a time-limited URL for the stored file.
// @Tags         assets
// @Param        id   path  string  true  "Asset ID"
// @Success      302
// @Failure      404  {object}  errorPayload
// @Router       /api/assets/{id}/download [get]
func DownloadAsset(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !ingest.ValidID(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		u, err := svc.DownloadURL(c.UserContext(), id)
		if err != nil {
			return assetError(c, err)
		}
		return c.Redirect(u, fiber.StatusFound)
	}
}

// DeleteAsset godoc
// @Summary      Delete an asset
// @Description  Removes the stored file, its thumbnail and the catalog row.
// @Tags         assets
// @Param        id   path  string  true  "Asset ID"
// @Success      204
// @Failure      404  {object}  errorPayload
// @Router       /api/assets/{id} [delete]
func DeleteAsset(svc service.AssetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !ingest.ValidID(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return assetError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func assetError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "asset not found")
	}
	return err
}
