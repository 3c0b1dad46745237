package domain

import "time"

// SensorReading is one raw telemetry record as produced upstream.
// The NDJSON field names are the upstream wire format.
type SensorReading struct {
	EquipID    string    `json:"equipId"`
	ZoneID     string    `json:"zoneId,omitempty"`
	SensorType string    `json:"sensorType"`
	Val        float64   `json:"val"`
	Time       time.Time `json:"time"`
}

// Equipment is a registry entry backed by Postgres.
type Equipment struct {
	ID       string    `db:"id" json:"id"`
	ZoneID   string    `db:"zone_id" json:"zone_id"`
	Name     string    `db:"name" json:"name"`
	LastSeen time.Time `db:"last_seen" json:"last_seen"`
}

// Metrics is the held-out evaluation of one trained model.
type Metrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// Retrain result statuses returned across the pipeline boundary.
const (
	StatusOK    = "ok"
	StatusSkip  = "skip"
	StatusError = "error"
)

// RetrainResult is the structured outcome of one pipeline run. Every failure
// mode ends up here; nothing escapes the pipeline as a panic or raw error.
type RetrainResult struct {
	Status     string   `json:"status"`
	RunID      string   `json:"run_id,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Msg        string   `json:"msg,omitempty"`
	Rows       int      `json:"rows,omitempty"`
	TrainedOn  int      `json:"trained_on,omitempty"`
	Metrics    *Metrics `json:"metrics,omitempty"`
	Promoted   bool     `json:"promoted,omitempty"`
	VersionDir string   `json:"version_dir,omitempty"`
	PrevRMSE   *float64 `json:"prev_rmse,omitempty"`
}
