package repository

import (
	"time"

	"github.com/jmoiron/sqlx"

	"monitory/internal/domain"
)

type Repos struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repos { return &Repos{db: db} }

func (r *Repos) ListEquipment() ([]domain.Equipment, error) {
	var out []domain.Equipment
	err := r.db.Select(&out, `SELECT id, zone_id, name, last_seen FROM equipment ORDER BY id`)
	return out, err
}

// TouchEquipment registers an equipment the first time it is seen on the
// telemetry stream and refreshes last_seen afterwards.
func (r *Repos) TouchEquipment(equipID, zoneID string, seen time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO equipment (id, zone_id, name, last_seen)
		VALUES ($1, $2, $1, $3)
		ON CONFLICT (id) DO UPDATE SET zone_id = $2, last_seen = $3`,
		equipID, zoneID, seen)
	return err
}
