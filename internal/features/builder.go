package features

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"monitory/internal/domain"
)

// Row is one (equipment, hour) wide feature row. Numeric columns live in Vals
// keyed by their FeatureCols name; absence from the map means missing until
// imputation runs.
type Row struct {
	Equipment string
	Hour      time.Time
	Vals      map[string]float64
	FaultFlag int
	RUL       int
}

func (r *Row) get(col string) (float64, bool) {
	v, ok := r.Vals[col]
	return v, ok
}

// Table holds rows sorted by (equipment, hour).
type Table struct {
	Rows []*Row
}

// Normalize maps sensor aliases onto the canonical vocabulary and drops
// readings with unknown sensor types.
func Normalize(readings []domain.SensorReading) []domain.SensorReading {
	out := make([]domain.SensorReading, 0, len(readings))
	for _, r := range readings {
		canon, ok := SensorAliases[r.SensorType]
		if !ok {
			continue
		}
		r.SensorType = canon
		out = append(out, r)
	}
	return out
}

// BuildHourly turns raw readings into the wide per-(equipment, hour) feature
// table used for training: sort, rolling stats per (equipment, sensor),
// hour-floor pivot aggregating by max, imputation, power factor, schema fill.
func BuildHourly(readings []domain.SensorReading, window int) *Table {
	rs := Normalize(readings)
	if len(rs) == 0 {
		return &Table{}
	}
	if window < 1 {
		window = 1
	}

	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].EquipID != rs[j].EquipID {
			return rs[i].EquipID < rs[j].EquipID
		}
		if rs[i].SensorType != rs[j].SensorType {
			return rs[i].SensorType < rs[j].SensorType
		}
		return rs[i].Time.Before(rs[j].Time)
	})

	type rollKey struct{ equip, sensor string }
	windows := make(map[rollKey][]float64)

	type bucketKey struct {
		equip string
		hour  int64
	}
	buckets := make(map[bucketKey]*Row)

	for _, r := range rs {
		rk := rollKey{r.EquipID, r.SensorType}
		w := append(windows[rk], r.Val)
		if len(w) > window {
			w = w[len(w)-window:]
		}
		windows[rk] = w
		mean, std := meanStd(w)

		hour := r.Time.UTC().Truncate(time.Hour)
		bk := bucketKey{r.EquipID, hour.Unix()}
		row, ok := buckets[bk]
		if !ok {
			row = &Row{Equipment: r.EquipID, Hour: hour, Vals: map[string]float64{}}
			buckets[bk] = row
		}
		// peak excursion per hour, not the average
		maxInto(row.Vals, r.SensorType, r.Val)
		maxInto(row.Vals, r.SensorType+"_rollmean", mean)
		maxInto(row.Vals, r.SensorType+"_rollstd", std)
	}

	t := &Table{Rows: make([]*Row, 0, len(buckets))}
	for _, row := range buckets {
		t.Rows = append(t.Rows, row)
	}
	t.sortRows()
	t.impute()
	t.derive()

	log.Info().Int("raw", len(rs)).Int("rows", len(t.Rows)).Msg("feature table built")
	return t
}

func (t *Table) sortRows() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		if t.Rows[i].Equipment != t.Rows[j].Equipment {
			return t.Rows[i].Equipment < t.Rows[j].Equipment
		}
		return t.Rows[i].Hour.Before(t.Rows[j].Hour)
	})
}

// impute fills missing raw and rolling-mean columns per equipment timeline:
// forward fill (limit 3), backward fill (limit 1), per-equipment median, 0.
// Missing rolling-std columns become 0.
func (t *Table) impute() {
	fillCols := make([]string, 0, 2*len(Sensors))
	for _, s := range Sensors {
		fillCols = append(fillCols, s, s+"_rollmean")
	}

	for start := 0; start < len(t.Rows); {
		end := start
		for end < len(t.Rows) && t.Rows[end].Equipment == t.Rows[start].Equipment {
			end++
		}
		part := t.Rows[start:end]
		for _, col := range fillCols {
			fillForward(part, col, 3)
			fillBackward(part, col, 1)
			fillMedian(part, col)
		}
		start = end
	}

	for _, row := range t.Rows {
		for _, s := range Sensors {
			if _, ok := row.get(s + "_rollstd"); !ok {
				row.Vals[s+"_rollstd"] = 0
			}
		}
	}
}

// derive computes the power factor and guarantees schema completeness.
func (t *Table) derive() {
	for _, row := range t.Rows {
		ap := row.Vals["active_power"]
		rp := row.Vals["reactive_power"]
		pf := ap / math.Sqrt(ap*ap+rp*rp)
		if math.IsNaN(pf) || math.IsInf(pf, 0) {
			pf = 0
		}
		row.Vals["power_factor"] = pf

		for _, col := range NumericFeatureCols() {
			if _, ok := row.get(col); !ok {
				row.Vals[col] = 0
			}
		}
	}
}

func fillForward(part []*Row, col string, limit int) {
	run := 0
	var last float64
	have := false
	for _, row := range part {
		if v, ok := row.get(col); ok {
			last, have, run = v, true, 0
			continue
		}
		if have && run < limit {
			row.Vals[col] = last
			run++
		} else {
			run++
		}
	}
}

func fillBackward(part []*Row, col string, limit int) {
	run := 0
	var next float64
	have := false
	for i := len(part) - 1; i >= 0; i-- {
		if v, ok := part[i].get(col); ok {
			next, have, run = v, true, 0
			continue
		}
		if have && run < limit {
			part[i].Vals[col] = next
			run++
		} else {
			run++
		}
	}
}

func fillMedian(part []*Row, col string) {
	var vals []float64
	for _, row := range part {
		if v, ok := row.get(col); ok {
			vals = append(vals, v)
		}
	}
	med := 0.0
	if len(vals) > 0 {
		sort.Float64s(vals)
		mid := len(vals) / 2
		if len(vals)%2 == 0 {
			med = (vals[mid-1] + vals[mid]) / 2
		} else {
			med = vals[mid]
		}
	}
	for _, row := range part {
		if _, ok := row.get(col); !ok {
			row.Vals[col] = med
		}
	}
}

func maxInto(m map[string]float64, key string, v float64) {
	if cur, ok := m[key]; !ok || v > cur {
		m[key] = v
	}
}

// meanStd returns the mean and sample standard deviation of the window.
// A single-sample window has std 0, never NaN.
func meanStd(w []float64) (float64, float64) {
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
