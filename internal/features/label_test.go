package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitory/internal/domain"
)

const maxRUL = 30

func hourlyReadings(equip string, hours int, val float64) []domain.SensorReading {
	rs := make([]domain.SensorReading, 0, hours)
	for h := 0; h < hours; h++ {
		rs = append(rs, reading(equip, "temp", val, t0.Add(time.Duration(h)*time.Hour)))
	}
	return rs
}

func TestCountAlertsStrictBand(t *testing.T) {
	th := map[string]Threshold{"temperature": {41, 101}}
	rs := []domain.SensorReading{
		reading("e1", "temp", 41, t0),  // on the bound, no alert
		reading("e1", "temp", 101, t0), // on the bound, no alert
		reading("e1", "temp", 102, t0),
		reading("e1", "temp", 40, t0),
	}

	counts := CountAlerts(rs, th)
	assert.Equal(t, 2, counts[FaultKey{"e1", t0.Unix()}])
}

func TestSingleAlertIsNotAFault(t *testing.T) {
	th := DefaultAlertThresholds()
	rs := hourlyReadings("e1", 5, 70)
	rs = append(rs, reading("e1", "temp", 300, t0)) // one anomalous sensor only

	table := BuildHourly(rs, 5)
	Label(table, CountAlerts(rs, th), maxRUL)

	for _, row := range table.Rows {
		assert.Equal(t, 0, row.FaultFlag)
	}
}

func TestRULNoFaultsIsMaxEverywhere(t *testing.T) {
	rs := hourlyReadings("e1", 10, 70)
	table := BuildHourly(rs, 5)
	Label(table, CountAlerts(rs, DefaultAlertThresholds()), maxRUL)

	for _, row := range table.Rows {
		assert.Equal(t, maxRUL, row.RUL)
	}
}

func TestRULAllFaultsIsZeroEverywhere(t *testing.T) {
	var rs []domain.SensorReading
	for h := 0; h < 6; h++ {
		ts := t0.Add(time.Duration(h) * time.Hour)
		rs = append(rs, reading("e1", "temp", 300, ts), reading("e1", "vibration", 50, ts))
	}

	table := BuildHourly(rs, 5)
	Label(table, CountAlerts(rs, DefaultAlertThresholds()), maxRUL)

	for _, row := range table.Rows {
		assert.Equal(t, 1, row.FaultFlag)
		assert.Equal(t, 0, row.RUL)
	}
}

func TestRULCountdownScenario(t *testing.T) {
	// 3 equipment, 48 hourly readings each; e2 has two simultaneous
	// out-of-range sensors in hours 40 and 41 only
	var rs []domain.SensorReading
	for _, equip := range []string{"e1", "e2", "e3"} {
		for h := 0; h < 48; h++ {
			ts := t0.Add(time.Duration(h) * time.Hour)
			temp, vib := 70.0, 1.0
			if equip == "e2" && (h == 40 || h == 41) {
				temp, vib = 300.0, 50.0
			}
			rs = append(rs,
				reading(equip, "temp", temp, ts),
				reading(equip, "vibration", vib, ts),
			)
		}
	}

	table := BuildHourly(rs, 5)
	Label(table, CountAlerts(rs, DefaultAlertThresholds()), maxRUL)

	byEquip := map[string][]*Row{}
	for _, row := range table.Rows {
		byEquip[row.Equipment] = append(byEquip[row.Equipment], row)
	}
	require.Len(t, byEquip["e2"], 48)

	for h, row := range byEquip["e2"] {
		switch {
		case h <= 40:
			want := 40 - h
			if want > maxRUL {
				want = maxRUL
			}
			assert.Equal(t, want, row.RUL, "hour %d", h)
		case h == 41:
			assert.Equal(t, 0, row.RUL)
		default:
			// no future fault observed after hour 41
			assert.Equal(t, maxRUL, row.RUL, "hour %d", h)
		}
	}

	// untouched equipment saturates at the horizon cap
	for _, row := range byEquip["e1"] {
		assert.Equal(t, maxRUL, row.RUL)
	}
}

func TestRULBoundsAndMonotonicity(t *testing.T) {
	var rs []domain.SensorReading
	for h := 0; h < 60; h++ {
		ts := t0.Add(time.Duration(h) * time.Hour)
		temp, vib := 70.0, 1.0
		if h == 50 {
			temp, vib = 300.0, 50.0
		}
		rs = append(rs, reading("e1", "temp", temp, ts), reading("e1", "vibration", vib, ts))
	}

	table := BuildHourly(rs, 5)
	Label(table, CountAlerts(rs, DefaultAlertThresholds()), maxRUL)

	for i, row := range table.Rows {
		assert.GreaterOrEqual(t, row.RUL, 0)
		assert.LessOrEqual(t, row.RUL, maxRUL)
		if i > 0 && table.Rows[i-1].RUL > 0 && table.Rows[i-1].RUL < maxRUL {
			assert.Equal(t, table.Rows[i-1].RUL-1, table.Rows[i].RUL, "hour %d", i)
		}
	}
}
