package features

// Sensor names after alias normalization. The upstream wire format still uses
// "temp" and "humid"; SensorAliases maps them onto the canonical vocabulary.
var Sensors = []string{
	"temperature", "pressure", "vibration", "humidity",
	"active_power", "reactive_power",
}

var SensorAliases = map[string]string{
	"temp":           "temperature",
	"humid":          "humidity",
	"pressure":       "pressure",
	"vibration":      "vibration",
	"active_power":   "active_power",
	"reactive_power": "reactive_power",
}

// FeatureCols is the model input schema, shared by training and serving.
// The transform output is checked against this list: missing columns are
// zero-filled, anything else the pivot produces is dropped.
var FeatureCols = []string{
	"temperature", "pressure", "vibration", "humidity",
	"active_power", "reactive_power",

	"active_power_rollmean", "active_power_rollstd",
	"reactive_power_rollmean", "reactive_power_rollstd",
	"temperature_rollmean", "temperature_rollstd",
	"pressure_rollmean", "pressure_rollstd",
	"vibration_rollmean", "vibration_rollstd",
	"humidity_rollmean", "humidity_rollstd",

	"power_factor",

	"equipment",
}

// NumericFeatureCols is FeatureCols without the categorical equipment column.
func NumericFeatureCols() []string {
	cols := make([]string, 0, len(FeatureCols)-1)
	for _, c := range FeatureCols {
		if c != "equipment" {
			cols = append(cols, c)
		}
	}
	return cols
}

// Threshold is a per-sensor (lo, hi) alert band. Readings strictly outside
// the band count as alerts.
type Threshold struct {
	Lo float64
	Hi float64
}

// DefaultAlertThresholds are the field-tuned alert bands per sensor.
func DefaultAlertThresholds() map[string]Threshold {
	return map[string]Threshold{
		"temperature":    {41.0, 101.0},   // °C
		"pressure":       {4.6, 66.88},    // bar
		"vibration":      {-0.5, 3.80},    // g(rms)
		"humidity":       {14.5, 85.54},   // %RH
		"active_power":   {0.0, 168026.0}, // W
		"reactive_power": {0.0, 86759.0},  // var
	}
}

// DefaultOverRatio is the rarity table: each RUL class in 1..15 is replicated
// the given number of times during balancing.
func DefaultOverRatio() map[int]int {
	return map[int]int{
		1: 3, 2: 8, 3: 8,
		4: 10, 5: 10,
		6: 12, 7: 16, 8: 17, 9: 19,
		10: 20, 11: 20, 12: 20, 13: 20, 14: 20, 15: 20,
	}
}
