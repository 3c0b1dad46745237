package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"monitory/internal/cloud"
	"monitory/internal/config"
	"monitory/internal/domain"
	"monitory/internal/pipeline"
)

// Manual retrain trigger, e.g.
//
//	retrain -start 2025-06-01 -end 2025-06-21 -sample 500
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	start := flag.String("start", yesterday, "start day (YYYY-MM-DD)")
	end := flag.String("end", yesterday, "end day (YYYY-MM-DD)")
	sample := flag.Int("sample", 0, "read only the first n input objects (0 = all)")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	cfg := config.New()

	ctx := context.Background()
	store, err := cloud.NewS3Client(ctx, cfg.AWSRegion)
	if err != nil {
		log.Fatal().Err(err).Msg("s3 client init failed")
	}

	pipe := pipeline.New(cfg, store, nil)

	log.Info().Str("start", *start).Str("end", *end).Int("sample", *sample).Msg("manual retrain start")
	result := pipe.Run(ctx, *start, *end, *sample)

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if result.Status == domain.StatusError {
		os.Exit(1)
	}
}
