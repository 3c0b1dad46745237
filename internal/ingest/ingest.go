package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"monitory/internal/cloud"
	"monitory/internal/config"
	"monitory/internal/domain"
	"monitory/internal/repository"
)

type pairKey struct {
	zone  string
	equip string
}

// Batcher buffers telemetry readings per (zone, equipment) and flushes them
// as NDJSON objects under the date/zone/equipment prefix the pipeline reads.
type Batcher struct {
	cfg   *config.Config
	store cloud.ObjectStore
	repos *repository.Repos

	mu    sync.Mutex
	buf   map[pairKey][]domain.SensorReading
	total int
}

func NewBatcher(cfg *config.Config, store cloud.ObjectStore, repos *repository.Repos) *Batcher {
	return &Batcher{
		cfg:   cfg,
		store: store,
		repos: repos,
		buf:   make(map[pairKey][]domain.SensorReading),
	}
}

// FromMQTT handles one telemetry message payload.
func (b *Batcher) FromMQTT(ctx context.Context, payload []byte) error {
	var r domain.SensorReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("bad telemetry payload: %w", err)
	}
	if r.EquipID == "" || r.SensorType == "" {
		return fmt.Errorf("telemetry payload missing equipId or sensorType")
	}

	if b.repos != nil {
		if err := b.repos.TouchEquipment(r.EquipID, r.ZoneID, r.Time); err != nil {
			log.Error().Err(err).Str("equip_id", r.EquipID).Msg("equipment registry update failed")
		}
	}

	b.mu.Lock()
	k := pairKey{r.ZoneID, r.EquipID}
	b.buf[k] = append(b.buf[k], r)
	b.total++
	full := b.total >= b.cfg.IngestBatchSize
	b.mu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes every buffered batch as one NDJSON object per pair.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.buf
	b.buf = make(map[pairKey][]domain.SensorReading)
	b.total = 0
	b.mu.Unlock()

	for k, rs := range pending {
		if len(rs) == 0 {
			continue
		}
		key := b.objectKey(k, rs[0].Time)
		data, err := encodeNDJSON(rs)
		if err != nil {
			return err
		}
		if err := b.store.Put(ctx, b.cfg.InputBucket, key, data); err != nil {
			return fmt.Errorf("flushing batch %s: %w", key, err)
		}
		log.Info().Str("key", key).Int("rows", len(rs)).Msg("batch flushed")
	}
	return nil
}

func (b *Batcher) objectKey(k pairKey, t time.Time) string {
	return fmt.Sprintf("%s/date=%s/zone_id=%s/equip_id=%s/%d.json",
		strings.TrimSuffix(b.cfg.InputKeyPrefix, "/"),
		t.UTC().Format("2006-01-02"), k.zone, k.equip, time.Now().UnixNano())
}

func encodeNDJSON(rs []domain.SensorReading) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rs {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encoding reading: %w", err)
		}
	}
	return buf.Bytes(), nil
}
