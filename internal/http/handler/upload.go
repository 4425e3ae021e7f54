package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"assetapi/internal/ingest"
	"assetapi/internal/service"
)

const (
	filesField          = "files"
	clientMetadataField = "metadata_"
)

// UploadLimits bound one upload request.
type UploadLimits struct {
	MaxFileSize int64
	MaxFiles    int
}

// UploadAssets godoc
// @Summary      Upload design assets
// @Description  Accepts one or more files in the "files" field and an optional metadata_<index> JSON field per file. The batch is stored all-or-nothing.
// @Tags         assets
// @Accept       multipart/form-data
// @Produce      json
// @Param        files       formData  file    true   "Files to upload"
// @Param        metadata_0  formData  string  false  "Client metadata for file 0"
// @Success      200  {object}  service.Manifest
// @Failure      400  {object}  errorPayload
// @Failure      405  {object}  errorPayload
// @Failure      413  {object}  errorPayload
// @Failure      500  {object}  errorPayload
// @Router       /api/upload [post]
func UploadAssets(svc service.AssetService, limits UploadLimits) fiber.Handler {
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = ingest.DefaultMaxFileSize
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = service.DefaultMaxFiles
	}

	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "NO_FILES", msgNoFiles)
		}
		parts := form.File[filesField]
		if len(parts) == 0 {
			return writeError(c, fiber.StatusBadRequest, "NO_FILES", msgNoFiles)
		}
		if len(parts) > limits.MaxFiles {
			return writeError(c, fiber.StatusBadRequest, "TOO_MANY_FILES", msgTooManyFiles)
		}

		// Sizes and declared types are checked for the whole batch before any part is read.
		for _, fh := range parts {
			if fh.Size > limits.MaxFileSize {
				return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", msgFileTooLarge)
			}
		}
		for _, fh := range parts {
			if !ingest.IsAllowed(ingest.NormalizeMIME(fh.Header.Get(fiber.HeaderContentType))) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILE_TYPE", msgInvalidFileType)
			}
		}

		files := make([]service.UploadFile, 0, len(parts))
		for i, fh := range parts {
			data, err := readPart(fh, limits.MaxFileSize)
			if err != nil {
				return fmt.Errorf("read part %d: %w", i, err)
			}
			files = append(files, service.UploadFile{
				OriginalName:   fh.Filename,
				ContentType:    fh.Header.Get(fiber.HeaderContentType),
				Data:           data,
				ClientMetadata: []byte(firstValue(form.Value[clientMetadataField+strconv.Itoa(i)])),
			})
		}

		manifest, err := svc.Ingest(c.UserContext(), files)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNoFiles):
				return writeError(c, fiber.StatusBadRequest, "NO_FILES", msgNoFiles)
			case errors.Is(err, service.ErrTooManyFiles):
				return writeError(c, fiber.StatusBadRequest, "TOO_MANY_FILES", msgTooManyFiles)
			case errors.Is(err, ingest.ErrInvalidFileType):
				return writeError(c, fiber.StatusBadRequest, "INVALID_FILE_TYPE", msgInvalidFileType)
			case errors.Is(err, ingest.ErrFileTooLarge):
				return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", msgFileTooLarge)
			}
			return fmt.Errorf("ingest: %w", err)
		}
		return c.JSON(manifest)
	}
}

// MethodNotAllowed answers every method on a route that only accepts allow.
func MethodNotAllowed(allow string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAllow, allow)
		return writeError(c, fiber.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", msgMethodNotAllowed)
	}
}

func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func firstValue(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
