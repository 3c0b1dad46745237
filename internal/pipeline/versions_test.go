package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitory/internal/domain"
)

func TestVersionDirFormat(t *testing.T) {
	v := NewVersionManager(newFakeStore(), "models", 0.20)
	at := time.Date(2026, 8, 20, 14, 3, 7, 0, time.UTC)
	assert.Equal(t, "models/2026/08/20/140307", v.VersionDir(at))
}

func TestLatestRMSEWithoutPromotedModel(t *testing.T) {
	v := NewVersionManager(newFakeStore(), "models", 0.20)
	assert.True(t, math.IsInf(v.LatestRMSE(context.Background()), 1))
}

func TestLatestRMSEReadsPromotedMetrics(t *testing.T) {
	store := newFakeStore()
	data, err := json.Marshal(domain.Metrics{RMSE: 3.5, MAE: 2.1, R2: 0.6})
	require.NoError(t, err)
	store.seed("models", latestMetricsKey, data)

	v := NewVersionManager(store, "models", 0.20)
	assert.InDelta(t, 3.5, v.LatestRMSE(context.Background()), 1e-12)
}

func TestLatestRMSECorruptMetricsTreatedAsFirstTraining(t *testing.T) {
	store := newFakeStore()
	store.seed("models", latestMetricsKey, []byte("not json"))

	v := NewVersionManager(store, "models", 0.20)
	assert.True(t, math.IsInf(v.LatestRMSE(context.Background()), 1))
}

func TestShouldPromote(t *testing.T) {
	v := NewVersionManager(newFakeStore(), "models", 0.20)

	// both conditions hold
	assert.True(t, v.ShouldPromote(domain.Metrics{RMSE: 3.0, R2: 0.5}, 4.0))

	// better RMSE alone is not enough
	assert.False(t, v.ShouldPromote(domain.Metrics{RMSE: 3.0, R2: 0.1}, 4.0))

	// good fit but no RMSE improvement
	assert.False(t, v.ShouldPromote(domain.Metrics{RMSE: 4.0, R2: 0.9}, 4.0))

	// bootstrap: no prior model means any candidate above the R2 floor wins
	assert.True(t, v.ShouldPromote(domain.Metrics{RMSE: 99.0, R2: 0.20}, math.Inf(1)))
	assert.False(t, v.ShouldPromote(domain.Metrics{RMSE: 99.0, R2: 0.19}, math.Inf(1)))
}

func TestPersistWritesVersionedObjects(t *testing.T) {
	store := newFakeStore()
	v := NewVersionManager(store, "models", 0.20)

	metrics := domain.Metrics{RMSE: 2.0, MAE: 1.5, R2: 0.7}
	require.NoError(t, v.Persist(context.Background(), "models/2026/08/20/140307", []byte(`{"trees":[]}`), metrics))

	assert.ElementsMatch(t, []string{
		"models/2026/08/20/140307/gbdt_regressor.json",
		"models/2026/08/20/140307/metrics.json",
	}, store.putsTo("models"))

	// history writes must not touch the promoted keys
	_, err := store.Get(context.Background(), "models", latestModelKey)
	assert.Error(t, err)
}

func TestPromoteOverwritesLatestKeys(t *testing.T) {
	store := newFakeStore()
	v := NewVersionManager(store, "models", 0.20)

	metrics := domain.Metrics{RMSE: 2.0, MAE: 1.5, R2: 0.7}
	require.NoError(t, v.Promote(context.Background(), []byte(`{"trees":[]}`), metrics))

	model, err := v.LatestModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"trees":[]}`), model)
	assert.InDelta(t, 2.0, v.LatestRMSE(context.Background()), 1e-12)
}
