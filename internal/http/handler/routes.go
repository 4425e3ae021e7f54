package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"assetapi/internal/service"
)

// Deps are the collaborators the routes need.
type Deps struct {
	DB           Pinger
	Assets       service.AssetService
	Limits       UploadLimits
	PublicPrefix string
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	app.Post("/api/upload", UploadAssets(d.Assets, d.Limits))
	app.All("/api/upload", MethodNotAllowed(fiber.MethodPost))

	assets := app.Group("/api/assets")
	assets.Get("/", ListAssets(d.Assets))
	assets.Get("/:id", GetAsset(d.Assets))
	assets.Get("/:id/download", DownloadAsset(d.Assets))
	assets.Delete("/:id", DeleteAsset(d.Assets))

	prefix := strings.TrimRight(d.PublicPrefix, "/")
	if prefix == "" {
		prefix = "/uploads"
	}
	app.Get(prefix+"/*", ServeFile(d.Assets))
}
