package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"monitory/internal/cloud"
	"monitory/internal/config"
	"monitory/internal/database"
	"monitory/internal/domain"
	httpHandlers "monitory/internal/http"
	"monitory/internal/pipeline"
	"monitory/internal/repository"
	"monitory/internal/scheduler"
	"monitory/internal/serving"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	cfg := config.New()

	ctx := context.Background()

	db, err := database.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()
	repos := repository.New(db)

	store, err := cloud.NewS3Client(ctx, cfg.AWSRegion)
	if err != nil {
		log.Fatal().Err(err).Msg("s3 client init failed")
	}

	var notifier pipeline.Notifier
	if cfg.UseCloudAlerts && cfg.SNSTopicArn != "" {
		sns, err := cloud.NewSNSClient(ctx, cfg.AWSRegion, cfg.SNSTopicArn)
		if err != nil {
			log.Fatal().Err(err).Msg("sns client init failed")
		}
		notifier = sns
	}

	pipe := pipeline.New(cfg, store, notifier)
	cache := serving.NewModelCache(pipe.Versions().LatestModel)
	predictor := serving.NewPredictor(cache, serving.NewInputLoader(cfg, store))

	sched := scheduler.New(cfg, pipe, nil)
	sched.OnResult = func(r domain.RetrainResult) {
		if r.Promoted {
			cache.Invalidate()
		}
	}
	go sched.Start(ctx)

	app := fiber.New()
	httpHandlers.Register(app, &httpHandlers.Deps{
		Predictor: predictor,
		Cache:     cache,
		Repos:     repos,
		Retrain:   sched.RunJob,
	})

	log.Info().Str("addr", cfg.APIAddr).Msg("api listening")
	log.Fatal().Err(app.Listen(cfg.APIAddr)).Msg("server exit")
}
