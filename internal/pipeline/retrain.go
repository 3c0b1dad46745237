package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"monitory/internal/cloud"
	"monitory/internal/config"
	"monitory/internal/domain"
	"monitory/internal/features"
	"monitory/internal/ml"
)

const dayFormat = "2006-01-02"

// TrainFunc trains a model from train/validation splits. Injected so the
// orchestration can be exercised without fitting real trees.
type TrainFunc func(train, valid *ml.Dataset, p ml.Params, categories []string) (*ml.Model, error)

// Notifier publishes run outcomes out-of-band. Optional.
type Notifier interface {
	SendPromotionAlert(ctx context.Context, versionDir string, rmse, r2 float64) error
	SendFailureAlert(ctx context.Context, reason, msg string) error
}

// Pipeline runs the full retrain flow: ingest raw NDJSON events, build the
// wide hourly feature table, label faults and RUL, rebalance, train with a
// held-out evaluation, and version/promote the result. Every failure mode
// comes back as a structured RetrainResult; nothing panics past Run.
type Pipeline struct {
	cfg        *config.Config
	store      cloud.ObjectStore
	versions   *VersionManager
	notifier   Notifier
	train      TrainFunc
	thresholds map[string]features.Threshold
	overRatio  map[int]int
	now        func() time.Time
}

func New(cfg *config.Config, store cloud.ObjectStore, notifier Notifier) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      store,
		versions:   NewVersionManager(store, cfg.ModelBucket, cfg.MinR2),
		notifier:   notifier,
		train:      ml.Train,
		thresholds: features.DefaultAlertThresholds(),
		overRatio:  features.DefaultOverRatio(),
		now:        time.Now,
	}
}

// Versions exposes the version manager for the serving path.
func (p *Pipeline) Versions() *VersionManager { return p.versions }

// Run executes one retrain over the inclusive [startDay, endDay] date range
// (YYYY-MM-DD). sampleN > 0 caps the number of input objects for quick
// manual runs.
func (p *Pipeline) Run(ctx context.Context, startDay, endDay string, sampleN int) (result domain.RetrainResult) {
	runID := uuid.NewString()
	started := p.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("run_id", runID).Msg("retrain run crashed")
			result = domain.RetrainResult{
				Status: domain.StatusError,
				RunID:  runID,
				Reason: "exception",
				Msg:    fmt.Sprint(r),
			}
		}
		retrainRuns.WithLabelValues(result.Status).Inc()
		runDuration.Observe(p.now().Sub(started).Seconds())
		if result.Status == domain.StatusError && p.notifier != nil {
			if err := p.notifier.SendFailureAlert(ctx, result.Reason, result.Msg); err != nil {
				log.Error().Err(err).Msg("failure alert not delivered")
			}
		}
	}()

	log.Info().Str("run_id", runID).Str("start", startDay).Str("end", endDay).Msg("retrain run start")

	keys, err := p.listInputKeys(ctx, startDay, endDay)
	if err != nil {
		return errResult(runID, "list_failed", err)
	}
	if len(keys) == 0 {
		return errResult(runID, "no_input_data", fmt.Errorf("no input objects for %s..%s", startDay, endDay))
	}
	if sampleN > 0 && sampleN < len(keys) {
		keys = keys[:sampleN]
	}

	readings, err := p.loadReadings(ctx, keys)
	if err != nil {
		return errResult(runID, "load_failed", err)
	}
	if len(readings) == 0 {
		return errResult(runID, "no_input_data", fmt.Errorf("input objects held no readings"))
	}

	table := features.BuildHourly(readings, p.cfg.RollingWindow)
	if len(table.Rows) == 0 {
		return errResult(runID, "preprocess_failed", fmt.Errorf("feature build produced no rows"))
	}
	features.Label(table, features.CountAlerts(readings, p.thresholds), p.cfg.MaxRUL)

	balanced := features.Balance(table, p.cfg.DownRatioZero, p.overRatio, p.cfg.Seed)
	if len(balanced) < p.cfg.MinBalancedRows {
		log.Warn().Int("rows", len(balanced)).Int("floor", p.cfg.MinBalancedRows).Msg("too few balanced rows, skipping retrain")
		return domain.RetrainResult{
			Status: domain.StatusSkip,
			RunID:  runID,
			Reason: "too_few_rows",
			Rows:   len(balanced),
		}
	}

	model, metrics, err := p.trainAndEval(balanced)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("training failed")
		return domain.RetrainResult{
			Status: domain.StatusError,
			RunID:  runID,
			Reason: "train_failed",
			Msg:    err.Error(),
		}
	}
	log.Info().Float64("rmse", metrics.RMSE).Float64("mae", metrics.MAE).Float64("r2", metrics.R2).Msg("new model evaluated")

	modelJSON, err := model.Marshal()
	if err != nil {
		return errResult(runID, "encode_failed", err)
	}

	oldRMSE := p.versions.LatestRMSE(ctx)
	promote := p.versions.ShouldPromote(metrics, oldRMSE)
	versionDir := p.versions.VersionDir(p.now())

	if err := p.versions.Persist(ctx, versionDir, modelJSON, metrics); err != nil {
		return errResult(runID, "upload_failed", err)
	}
	if promote {
		if err := p.versions.Promote(ctx, modelJSON, metrics); err != nil {
			return errResult(runID, "upload_failed", err)
		}
		promotions.Inc()
		log.Info().Str("version_dir", versionDir).Msg("model promoted to latest")
		if p.notifier != nil {
			if err := p.notifier.SendPromotionAlert(ctx, versionDir, metrics.RMSE, metrics.R2); err != nil {
				log.Error().Err(err).Msg("promotion alert not delivered")
			}
		}
	}

	res := domain.RetrainResult{
		Status:     domain.StatusOK,
		RunID:      runID,
		TrainedOn:  len(balanced),
		Metrics:    &metrics,
		Promoted:   promote,
		VersionDir: versionDir,
	}
	if !math.IsInf(oldRMSE, 1) {
		res.PrevRMSE = &oldRMSE
	}
	log.Info().Str("run_id", runID).Bool("promoted", promote).Str("version_dir", versionDir).Msg("retrain run finished")
	return res
}

// trainAndEval splits 80/20 into temp/test, then temp 75/25 into
// train/validation (≈ 60/20/20 net), trains with early stopping, and
// evaluates on the untouched test split.
func (p *Pipeline) trainAndEval(rows []*features.Row) (*ml.Model, domain.Metrics, error) {
	ds, categories := toDataset(rows)

	tempIdx, testIdx, err := ml.StratifiedSplit(ds.Y, 0.20, p.cfg.Seed)
	if err != nil {
		return nil, domain.Metrics{}, err
	}
	temp := ds.Subset(tempIdx)
	test := ds.Subset(testIdx)

	trainIdx, validIdx, err := ml.StratifiedSplit(temp.Y, 0.25, p.cfg.Seed)
	if err != nil {
		return nil, domain.Metrics{}, err
	}

	model, err := p.train(temp.Subset(trainIdx), temp.Subset(validIdx), ml.DefaultParams(), categories)
	if err != nil {
		return nil, domain.Metrics{}, err
	}

	pred := model.PredictAll(test.X)
	metrics := domain.Metrics{
		RMSE: ml.RMSE(test.Y, pred),
		MAE:  ml.MAE(test.Y, pred),
		R2:   ml.R2(test.Y, pred),
	}
	return model, metrics, nil
}

// listInputKeys walks the day prefixes of the range and collects .json keys.
func (p *Pipeline) listInputKeys(ctx context.Context, startDay, endDay string) ([]string, error) {
	start, err := time.Parse(dayFormat, startDay)
	if err != nil {
		return nil, fmt.Errorf("bad start day %q: %w", startDay, err)
	}
	end, err := time.Parse(dayFormat, endDay)
	if err != nil {
		return nil, fmt.Errorf("bad end day %q: %w", endDay, err)
	}

	var keys []string
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		prefix := p.dayPrefix(day)
		objs, err := p.store.List(ctx, p.cfg.InputBucket, prefix)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, o := range objs {
			if strings.HasSuffix(o.Key, ".json") {
				keys = append(keys, o.Key)
			}
		}
	}
	log.Info().Int("keys", len(keys)).Msg("input objects listed")
	return keys, nil
}

func (p *Pipeline) dayPrefix(day time.Time) string {
	return strings.TrimSuffix(p.cfg.InputKeyPrefix, "/") + "/date=" + day.Format(dayFormat)
}

// loadReadings fetches and parses newline-delimited JSON event objects.
// Unparseable lines are counted and skipped, not fatal.
func (p *Pipeline) loadReadings(ctx context.Context, keys []string) ([]domain.SensorReading, error) {
	var readings []domain.SensorReading
	bad := 0
	for _, k := range keys {
		data, err := p.store.Get(ctx, p.cfg.InputBucket, k)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", k, err)
		}
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			var r domain.SensorReading
			if err := json.Unmarshal(line, &r); err != nil {
				bad++
				continue
			}
			readings = append(readings, r)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", k, err)
		}
	}
	if bad > 0 {
		log.Warn().Int("lines", bad).Msg("unparseable NDJSON lines skipped")
	}
	log.Info().Int("rows", len(readings)).Msg("raw readings loaded")
	return readings, nil
}

// EstimateRows is the scheduler's cheap pre-check: NDJSON rows approximated
// as total object size / 200 bytes per line over the day range.
func (p *Pipeline) EstimateRows(ctx context.Context, startDay, endDay string) (int, error) {
	start, err := time.Parse(dayFormat, startDay)
	if err != nil {
		return 0, err
	}
	end, err := time.Parse(dayFormat, endDay)
	if err != nil {
		return 0, err
	}

	total := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		objs, err := p.store.List(ctx, p.cfg.InputBucket, p.dayPrefix(day))
		if err != nil {
			return 0, fmt.Errorf("estimating rows: %w", err)
		}
		for _, o := range objs {
			total += int(o.Size / 200)
		}
	}
	return total, nil
}

func errResult(runID, reason string, err error) domain.RetrainResult {
	log.Error().Err(err).Str("reason", reason).Msg("retrain run failed")
	return domain.RetrainResult{
		Status: domain.StatusError,
		RunID:  runID,
		Reason: reason,
		Msg:    err.Error(),
	}
}
