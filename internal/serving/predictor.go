package serving

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Predictor applies the cached model to one preprocessed feature row.
type Predictor struct {
	cache  *ModelCache
	loader *InputLoader
}

func NewPredictor(cache *ModelCache, loader *InputLoader) *Predictor {
	return &Predictor{cache: cache, loader: loader}
}

// Predict fetches the latest input for the pair, encodes it against the
// model's feature schema and returns the prediction list.
func (p *Predictor) Predict(ctx context.Context, zoneID, equipID string) ([]float64, error) {
	model, err := p.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	row, err := p.loader.LoadRow(ctx, zoneID, equipID)
	if err != nil {
		return nil, err
	}

	x := make([]float64, len(model.FeatureNames))
	for i, col := range model.FeatureNames {
		if i == model.CatIdx {
			x[i] = model.CategoryCode(equipID)
			continue
		}
		v, ok := row[col]
		if !ok {
			return nil, fmt.Errorf("serving row missing column %q", col)
		}
		x[i] = v
	}

	pred := model.Predict(x)
	log.Info().Str("equip_id", equipID).Float64("rul", pred).Msg("prediction served")
	return []float64{pred}, nil
}

// Ready reports model availability for health checks.
func (p *Predictor) Ready(ctx context.Context) bool {
	return p.cache.Ready(ctx)
}
