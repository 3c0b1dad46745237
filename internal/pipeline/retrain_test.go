package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitory/internal/config"
	"monitory/internal/domain"
	"monitory/internal/ml"
)

func testConfig() *config.Config {
	return &config.Config{
		InputBucket:     "in",
		InputKeyPrefix:  "EQUIPMENT/",
		ModelBucket:     "models",
		MinBalancedRows: 5,
		MinR2:           0.20,
		RollingWindow:   5,
		MaxRUL:          30,
		DownRatioZero:   0.20,
		Seed:            42,
	}
}

// seedInputDay writes one NDJSON object with in-band readings for every
// sensor over the given number of hours.
func seedInputDay(t *testing.T, store *fakeStore, day string, equip string, hours int) {
	t.Helper()
	start, err := time.Parse(dayFormat, day)
	require.NoError(t, err)

	vals := map[string]float64{
		"temperature":    60,
		"pressure":       30,
		"vibration":      1.0,
		"humidity":       50,
		"active_power":   1000,
		"reactive_power": 400,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for h := 0; h < hours; h++ {
		for sensor, v := range vals {
			require.NoError(t, enc.Encode(domain.SensorReading{
				EquipID:    equip,
				ZoneID:     "z1",
				SensorType: sensor,
				Val:        v * (1 + 0.01*float64(h)),
				Time:       start.Add(time.Duration(h) * time.Hour),
			}))
		}
	}

	key := fmt.Sprintf("EQUIPMENT/date=%s/zone_id=z1/equip_id=%s/part-0.json", day, equip)
	store.seed("in", key, buf.Bytes())
}

// baseScoreTrainer returns a tree-less model predicting a constant.
func baseScoreTrainer(score float64, calls *int) TrainFunc {
	return func(train, valid *ml.Dataset, p ml.Params, categories []string) (*ml.Model, error) {
		if calls != nil {
			*calls++
		}
		return &ml.Model{
			Params:       p,
			FeatureNames: train.Cols,
			CatIdx:       train.CatIdx,
			Categories:   categories,
			BaseScore:    score,
		}, nil
	}
}

func TestRunNoInputData(t *testing.T) {
	p := New(testConfig(), newFakeStore(), nil)

	res := p.Run(context.Background(), "2026-08-20", "2026-08-20", 0)
	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, "no_input_data", res.Reason)
}

func TestRunSkipsBelowRowFloor(t *testing.T) {
	store := newFakeStore()
	seedInputDay(t, store, "2026-08-20", "press-1", 2)

	cfg := testConfig()
	cfg.MinBalancedRows = 300
	p := New(cfg, store, nil)

	trained := 0
	p.train = baseScoreTrainer(30, &trained)

	res := p.Run(context.Background(), "2026-08-20", "2026-08-20", 0)
	assert.Equal(t, domain.StatusSkip, res.Status)
	assert.Equal(t, "too_few_rows", res.Reason)
	assert.Equal(t, 2, res.Rows)

	assert.Zero(t, trained, "training must not run on a skipped dataset")
	assert.Empty(t, store.putsTo("models"), "a skip writes nothing")
}

func TestRunTrainFailure(t *testing.T) {
	store := newFakeStore()
	seedInputDay(t, store, "2026-08-20", "press-1", 12)

	p := New(testConfig(), store, nil)
	p.train = func(_, _ *ml.Dataset, _ ml.Params, _ []string) (*ml.Model, error) {
		return nil, fmt.Errorf("boosting diverged")
	}

	res := p.Run(context.Background(), "2026-08-20", "2026-08-20", 0)
	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, "train_failed", res.Reason)
	assert.Contains(t, res.Msg, "boosting diverged")
	assert.Empty(t, store.putsTo("models"), "a failed run writes no artifacts")
}

func TestRunBootstrapPromotion(t *testing.T) {
	store := newFakeStore()
	seedInputDay(t, store, "2026-08-20", "press-1", 12)

	p := New(testConfig(), store, nil)
	// every label is MaxRUL here, so a constant predictor is exact
	p.train = baseScoreTrainer(30, nil)
	p.now = func() time.Time { return time.Date(2026, 8, 21, 6, 0, 0, 0, time.UTC) }

	res := p.Run(context.Background(), "2026-08-20", "2026-08-20", 0)
	require.Equal(t, domain.StatusOK, res.Status, "msg=%s reason=%s", res.Msg, res.Reason)

	assert.Equal(t, 12, res.TrainedOn)
	assert.True(t, res.Promoted, "first good model becomes the promoted one")
	assert.Equal(t, "models/2026/08/21/060000", res.VersionDir)
	assert.Nil(t, res.PrevRMSE)
	require.NotNil(t, res.Metrics)
	assert.InDelta(t, 0.0, res.Metrics.RMSE, 1e-9)
	assert.InDelta(t, 1.0, res.Metrics.R2, 1e-9)

	assert.ElementsMatch(t, []string{
		"models/2026/08/21/060000/gbdt_regressor.json",
		"models/2026/08/21/060000/metrics.json",
		latestModelKey,
		latestMetricsKey,
	}, store.putsTo("models"))
}

func TestRunWorseModelVersionedButNotPromoted(t *testing.T) {
	store := newFakeStore()
	seedInputDay(t, store, "2026-08-20", "press-1", 12)

	p := New(testConfig(), store, nil)
	p.train = baseScoreTrainer(30, nil)
	p.now = func() time.Time { return time.Date(2026, 8, 21, 6, 0, 0, 0, time.UTC) }

	first := p.Run(context.Background(), "2026-08-20", "2026-08-20", 0)
	require.True(t, first.Promoted)
	promoted, err := p.versions.LatestModel(context.Background())
	require.NoError(t, err)

	// second run predicts off by one everywhere
	p.train = baseScoreTrainer(31, nil)
	p.now = func() time.Time { return time.Date(2026, 8, 22, 6, 0, 0, 0, time.UTC) }

	second := p.Run(context.Background(), "2026-08-20", "2026-08-20", 0)
	require.Equal(t, domain.StatusOK, second.Status)

	assert.False(t, second.Promoted)
	assert.Equal(t, "models/2026/08/22/060000", second.VersionDir)
	require.NotNil(t, second.PrevRMSE)
	assert.InDelta(t, 0.0, *second.PrevRMSE, 1e-9)

	// the rejected model is still archived under its version path
	_, err = store.Get(context.Background(), "models", second.VersionDir+"/gbdt_regressor.json")
	assert.NoError(t, err)

	// the promoted artifact is untouched
	stillPromoted, err := p.versions.LatestModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, promoted, stillPromoted)
}

func TestRunSampleLimitsInputObjects(t *testing.T) {
	store := newFakeStore()
	seedInputDay(t, store, "2026-08-20", "press-1", 12)
	seedInputDay(t, store, "2026-08-20", "press-2", 12)

	cfg := testConfig()
	cfg.MinBalancedRows = 300
	p := New(cfg, store, nil)

	res := p.Run(context.Background(), "2026-08-20", "2026-08-20", 1)
	require.Equal(t, domain.StatusSkip, res.Status)
	assert.Equal(t, 12, res.Rows, "one sampled object holds one equipment's rows")
}

func TestRunRecoversFromPanic(t *testing.T) {
	store := newFakeStore()
	seedInputDay(t, store, "2026-08-20", "press-1", 12)

	p := New(testConfig(), store, nil)
	p.train = func(_, _ *ml.Dataset, _ ml.Params, _ []string) (*ml.Model, error) {
		panic("index out of range")
	}

	res := p.Run(context.Background(), "2026-08-20", "2026-08-20", 0)
	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, "exception", res.Reason)
	assert.Contains(t, res.Msg, "index out of range")
}

func TestEstimateRows(t *testing.T) {
	store := newFakeStore()
	store.seed("in", "EQUIPMENT/date=2026-08-20/zone_id=z1/equip_id=e1/part-0.json", make([]byte, 2000))
	store.seed("in", "EQUIPMENT/date=2026-08-21/zone_id=z1/equip_id=e1/part-0.json", make([]byte, 1000))

	p := New(testConfig(), store, nil)
	n, err := p.EstimateRows(context.Background(), "2026-08-20", "2026-08-21")
	require.NoError(t, err)
	assert.Equal(t, 15, n)
}
