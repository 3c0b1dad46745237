package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"monitory/internal/cloud"
	"monitory/internal/domain"
)

const (
	latestModelKey   = "models/latest/gbdt_regressor.json"
	latestMetricsKey = "models/latest/metrics.json"
	modelFileName    = "gbdt_regressor.json"
	metricsFileName  = "metrics.json"
)

// VersionManager persists model snapshots under timestamped paths and owns
// the promotion decision. History is append-only; only the latest keys are
// ever overwritten, and only by Promote.
type VersionManager struct {
	store  cloud.ObjectStore
	bucket string
	minR2  float64
}

func NewVersionManager(store cloud.ObjectStore, bucket string, minR2 float64) *VersionManager {
	return &VersionManager{store: store, bucket: bucket, minR2: minR2}
}

// VersionDir derives a unique, monotonic version path from the run time.
func (v *VersionManager) VersionDir(now time.Time) string {
	return now.UTC().Format("models/2006/01/02/150405")
}

// LatestRMSE reads the promoted model's recorded RMSE. When no model has
// been promoted yet (or the metrics object cannot be read), it is +Inf so
// the first successful run always becomes the promotion candidate.
func (v *VersionManager) LatestRMSE(ctx context.Context) float64 {
	data, err := v.store.Get(ctx, v.bucket, latestMetricsKey)
	if err != nil {
		log.Warn().Err(err).Msg("no promoted metrics found, treating as first training")
		return math.Inf(1)
	}
	var m domain.Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		log.Error().Err(err).Msg("promoted metrics unreadable")
		return math.Inf(1)
	}
	return m.RMSE
}

// ShouldPromote gates promotion: strictly better RMSE and R² at or above
// the floor. Failing the gate is a routine outcome, not an error.
func (v *VersionManager) ShouldPromote(newMetrics domain.Metrics, oldRMSE float64) bool {
	return newMetrics.RMSE < oldRMSE && newMetrics.R2 >= v.minR2
}

// Persist writes the model and its metrics under the version path. Called
// unconditionally for every trained model, promoted or not.
func (v *VersionManager) Persist(ctx context.Context, versionDir string, model []byte, metrics domain.Metrics) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := v.store.Put(ctx, v.bucket, versionDir+"/"+modelFileName, model); err != nil {
		return fmt.Errorf("failed to persist model version: %w", err)
	}
	if err := v.store.Put(ctx, v.bucket, versionDir+"/"+metricsFileName, metricsJSON); err != nil {
		return fmt.Errorf("failed to persist version metrics: %w", err)
	}
	return nil
}

// Promote overwrites the latest-model and latest-metrics references. Each
// put is atomic per key; a reader racing this call sees either object's old
// or new state, never a partial write.
func (v *VersionManager) Promote(ctx context.Context, model []byte, metrics domain.Metrics) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := v.store.Put(ctx, v.bucket, latestModelKey, model); err != nil {
		return fmt.Errorf("failed to promote model: %w", err)
	}
	if err := v.store.Put(ctx, v.bucket, latestMetricsKey, metricsJSON); err != nil {
		return fmt.Errorf("failed to promote metrics: %w", err)
	}
	return nil
}

// LatestModel fetches the currently promoted model artifact for serving.
func (v *VersionManager) LatestModel(ctx context.Context) ([]byte, error) {
	return v.store.Get(ctx, v.bucket, latestModelKey)
}
