package http

import (
	"context"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"monitory/internal/domain"
	"monitory/internal/repository"
	"monitory/internal/serving"
)

// Deps is everything the API needs wired in from main.
type Deps struct {
	Predictor *serving.Predictor
	Cache     *serving.ModelCache
	Repos     *repository.Repos
	// Retrain runs one pipeline attempt; invoked in the background.
	Retrain func(ctx context.Context) domain.RetrainResult
}

func Register(app *fiber.App, d *Deps) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	g := app.Group("/api/v1")

	g.Get("/health", func(c *fiber.Ctx) error {
		if !d.Predictor.Ready(c.Context()) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "error", "message": "API is running but model is not loaded",
			})
		}
		return c.JSON(fiber.Map{"status": "ok", "message": "API is running and model is loaded"})
	})

	g.Get("/predict", func(c *fiber.Ctx) error {
		zoneID := c.Query("zoneId")
		equipID := c.Query("equipId")
		if zoneID == "" || equipID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "zoneId and equipId are required"})
		}

		preds, err := d.Predictor.Predict(c.Context(), zoneID, equipID)
		if err != nil {
			log.Error().Err(err).Str("equip_id", equipID).Msg("predict failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok", "predictions": preds})
	})

	g.Post("/retrain", func(c *fiber.Ctx) error {
		go func() {
			result := d.Retrain(context.Background())
			if result.Promoted {
				d.Cache.Invalidate()
			}
			log.Info().Str("status", result.Status).Str("version_dir", result.VersionDir).Msg("background retrain finished")
		}()
		return c.JSON(fiber.Map{"status": "ok", "msg": "retraining started in background"})
	})

	g.Get("/equipment", func(c *fiber.Ctx) error {
		items, err := d.Repos.ListEquipment()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(items)
	})
}
