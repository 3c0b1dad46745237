package features

import (
	"time"

	"github.com/rs/zerolog/log"

	"monitory/internal/domain"
)

// FaultKey identifies one (equipment, hour) bucket for fault aggregation.
type FaultKey struct {
	Equip string
	Hour  int64
}

// CountAlerts marks each reading whose value falls strictly outside its
// sensor's [lo, hi] band and counts alerts per (equipment, hour). Readings
// with unknown sensor types never alert.
func CountAlerts(readings []domain.SensorReading, thresholds map[string]Threshold) map[FaultKey]int {
	counts := make(map[FaultKey]int)
	for _, r := range Normalize(readings) {
		th, ok := thresholds[r.SensorType]
		if !ok {
			continue
		}
		if r.Val < th.Lo || r.Val > th.Hi {
			hour := r.Time.UTC().Truncate(time.Hour)
			counts[FaultKey{r.EquipID, hour.Unix()}]++
		}
	}
	return counts
}

// Label sets the hourly fault flag (≥ 2 concurrent alerts in a bucket) and
// computes the capped backward RUL countdown for every equipment timeline.
func Label(t *Table, alertCounts map[FaultKey]int, maxRUL int) {
	faults := 0
	for _, row := range t.Rows {
		if alertCounts[FaultKey{row.Equipment, row.Hour.Unix()}] >= 2 {
			row.FaultFlag = 1
			faults++
		} else {
			row.FaultFlag = 0
		}
	}

	// rows are kept sorted by (equipment, hour); each partition is folded
	// backward independently
	for start := 0; start < len(t.Rows); {
		end := start
		for end < len(t.Rows) && t.Rows[end].Equipment == t.Rows[start].Equipment {
			end++
		}
		labelPartition(t.Rows[start:end], maxRUL)
		start = end
	}

	log.Info().Int("rows", len(t.Rows)).Int("faulty_hours", faults).Msg("fault labels and RUL assigned")
}

// labelPartition walks one hour-ordered equipment timeline backward:
// faulty hour → 0, otherwise next hour's RUL + 1; the tail with no future
// fault saturates at maxRUL.
func labelPartition(part []*Row, maxRUL int) {
	next := -1 // -1: no future fault observed yet
	for i := len(part) - 1; i >= 0; i-- {
		switch {
		case part[i].FaultFlag == 1:
			next = 0
		case next >= 0:
			next++
		}
		if next < 0 || next > maxRUL {
			part[i].RUL = maxRUL
		} else {
			part[i].RUL = next
		}
	}
}
