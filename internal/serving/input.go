package serving

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"monitory/internal/cloud"
	"monitory/internal/config"
	"monitory/internal/domain"
	"monitory/internal/features"
)

// InputLoader fetches the most recent raw readings for one (zone, equipment)
// and preprocesses them into a single wide feature row.
type InputLoader struct {
	cfg   *config.Config
	store cloud.ObjectStore
	now   func() time.Time
}

func NewInputLoader(cfg *config.Config, store cloud.ObjectStore) *InputLoader {
	return &InputLoader{cfg: cfg, store: store, now: time.Now}
}

// inputPrefix points at the previous hour's date directory for the pair.
func (l *InputLoader) inputPrefix(zoneID, equipID string) string {
	date := l.now().Add(-time.Hour).Format("2006-01-02")
	return fmt.Sprintf("%s/date=%s/zone_id=%s/equip_id=%s/",
		strings.TrimSuffix(l.cfg.InputKeyPrefix, "/"), date, zoneID, equipID)
}

// LoadRow lists the prefix, picks the most recently modified .json object,
// parses it (NDJSON or a single JSON array) and returns the wide row.
func (l *InputLoader) LoadRow(ctx context.Context, zoneID, equipID string) (map[string]float64, error) {
	prefix := l.inputPrefix(zoneID, equipID)
	objs, err := l.store.List(ctx, l.cfg.InputBucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}

	var latest *cloud.ObjectInfo
	for i, o := range objs {
		if !strings.HasSuffix(o.Key, ".json") {
			continue
		}
		if latest == nil || o.LastModified.After(latest.LastModified) {
			latest = &objs[i]
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no input objects under %s", prefix)
	}

	data, err := l.store.Get(ctx, l.cfg.InputBucket, latest.Key)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", latest.Key, err)
	}

	readings, err := parseReadings(data)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("object %s held no readings", latest.Key)
	}

	row := PreprocessInput(readings, l.cfg.RollingWindow)
	if row == nil {
		return nil, fmt.Errorf("preprocess produced no row for %s", equipID)
	}
	return row, nil
}

func parseReadings(data []byte) ([]domain.SensorReading, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rs []domain.SensorReading
		if err := json.Unmarshal(trimmed, &rs); err != nil {
			return nil, fmt.Errorf("decoding input array: %w", err)
		}
		return rs, nil
	}

	var rs []domain.SensorReading
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var r domain.SensorReading
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decoding input line: %w", err)
		}
		rs = append(rs, r)
	}
	return rs, sc.Err()
}

// PreprocessInput aggregates the readings of one equipment into a single
// wide row matching FeatureCols. Aggregation here is the mean over the
// fetched window, unlike the training pivot which takes the hourly max;
// the asymmetry is intentional and mirrors the deployed behavior.
func PreprocessInput(readings []domain.SensorReading, window int) map[string]float64 {
	rs := features.Normalize(readings)
	if len(rs) == 0 {
		return nil
	}
	if window < 1 {
		window = 1
	}

	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].SensorType != rs[j].SensorType {
			return rs[i].SensorType < rs[j].SensorType
		}
		return rs[i].Time.Before(rs[j].Time)
	})

	type agg struct {
		val, mean, std float64
		n              int
	}
	sums := make(map[string]*agg)
	var win []float64
	lastSensor := ""

	for _, r := range rs {
		if r.SensorType != lastSensor {
			win = win[:0]
			lastSensor = r.SensorType
		}
		win = append(win, r.Val)
		if len(win) > window {
			win = win[1:]
		}
		mean, std := rollingMeanStd(win)

		a, ok := sums[r.SensorType]
		if !ok {
			a = &agg{}
			sums[r.SensorType] = a
		}
		a.val += r.Val
		a.mean += mean
		a.std += std
		a.n++
	}

	row := make(map[string]float64, len(features.FeatureCols))
	for sensor, a := range sums {
		n := float64(a.n)
		row[sensor] = a.val / n
		row[sensor+"_rollmean"] = a.mean / n
		row[sensor+"_rollstd"] = a.std / n
	}

	for _, col := range features.NumericFeatureCols() {
		if _, ok := row[col]; !ok {
			row[col] = 0
			log.Warn().Str("column", col).Msg("missing serving column zero-filled")
		}
	}

	ap, rp := row["active_power"], row["reactive_power"]
	pf := 0.0
	if denom := ap*ap + rp*rp; denom > 0 {
		pf = ap / math.Sqrt(denom)
	}
	row["power_factor"] = pf

	return row
}

func rollingMeanStd(w []float64) (float64, float64) {
	n := float64(len(w))
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	mean := sum / n
	if len(w) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, v := range w {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}

