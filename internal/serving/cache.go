package serving

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"monitory/internal/ml"
)

// LoadFunc fetches the promoted model artifact bytes.
type LoadFunc func(ctx context.Context) ([]byte, error)

// ModelCache owns the served model. The first caller loads it; concurrent
// callers block on the same in-flight load instead of issuing duplicate
// fetches. Invalidate after a promotion so the next request reloads.
type ModelCache struct {
	mu    sync.Mutex
	model *ml.Model
	load  LoadFunc
}

func NewModelCache(load LoadFunc) *ModelCache {
	return &ModelCache{load: load}
}

func (c *ModelCache) Get(ctx context.Context) (*ml.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model != nil {
		return c.model, nil
	}

	data, err := c.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("model fetch failed: %w", err)
	}
	m, err := ml.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	c.model = m
	log.Info().Int("trees", len(m.Trees)).Msg("model loaded into cache")
	return m, nil
}

// Ready reports whether a model can be served, loading it if needed.
func (c *ModelCache) Ready(ctx context.Context) bool {
	_, err := c.Get(ctx)
	return err == nil
}

// Invalidate drops the cached model; the next Get reloads from storage.
func (c *ModelCache) Invalidate() {
	c.mu.Lock()
	c.model = nil
	c.mu.Unlock()
}
