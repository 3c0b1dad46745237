package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"monitory/internal/cloud"
	"monitory/internal/config"
	"monitory/internal/database"
	"monitory/internal/ingest"
	"monitory/internal/repository"
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

	store, err := cloud.NewS3Client(ctx, cfg.AWSRegion)
	if err != nil {
		log.Fatal().Err(err).Msg("s3 client init failed")
	}

	batcher := ingest.NewBatcher(cfg, store, repository.New(db))

	opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if err := batcher.FromMQTT(ctx, msg.Payload()); err != nil {
			log.Error().Err(err).Msg("ingest failed")
		}
	}

	if token := client.Subscribe("factory/readings", 0, handler); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("subscribe failed")
	}

	ticker := time.NewTicker(cfg.IngestFlushEvery)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("ingestor running")
	for {
		select {
		case <-ticker.C:
			if err := batcher.Flush(ctx); err != nil {
				log.Error().Err(err).Msg("flush failed")
			}
		case <-stop:
			if err := batcher.Flush(ctx); err != nil {
				log.Error().Err(err).Msg("final flush failed")
			}
			log.Info().Msg("ingestor stopped")
			return
		}
	}
}
