package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// Params are the boosting hyperparameters. DefaultParams matches the tuned
// production configuration.
type Params struct {
	NEstimators         int     `json:"n_estimators"`
	LearningRate        float64 `json:"learning_rate"`
	NumLeaves           int     `json:"num_leaves"`
	MinDataInLeaf       int     `json:"min_data_in_leaf"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds"`
}

func DefaultParams() Params {
	return Params{
		NEstimators:         600,
		LearningRate:        0.05,
		NumLeaves:           64,
		MinDataInLeaf:       20,
		EarlyStoppingRounds: 50,
	}
}

// Model is a gradient-boosted regression ensemble over squared error.
// Categories maps the categorical feature's string values to their codes
// (index position) so serving can encode inputs identically.
type Model struct {
	Params       Params   `json:"params"`
	FeatureNames []string `json:"feature_names"`
	CatIdx       int      `json:"categorical_feature"`
	Categories   []string `json:"categories,omitempty"`
	BaseScore    float64  `json:"base_score"`
	Trees        []*Tree  `json:"trees"`
	BestIter     int      `json:"best_iteration"`
}

// Train boosts regression trees on the squared-error objective, using the
// validation set for early stopping on RMSE: once validation RMSE has not
// improved for EarlyStoppingRounds consecutive rounds, training halts and
// the best-iteration ensemble is returned, not the final one.
func Train(train, valid *Dataset, p Params, categories []string) (*Model, error) {
	if train.Len() == 0 || valid.Len() == 0 {
		return nil, errors.New("train: empty train or validation set")
	}
	if len(train.Cols) == 0 {
		return nil, errors.New("train: no feature columns")
	}

	m := &Model{
		Params:       p,
		FeatureNames: train.Cols,
		CatIdx:       train.CatIdx,
		Categories:   categories,
	}

	base := 0.0
	for _, v := range train.Y {
		base += v
	}
	base /= float64(train.Len())
	m.BaseScore = base

	rows := make([]int, train.Len())
	for i := range rows {
		rows[i] = i
	}

	predTrain := make([]float64, train.Len())
	predValid := make([]float64, valid.Len())
	for i := range predTrain {
		predTrain[i] = base
	}
	for i := range predValid {
		predValid[i] = base
	}

	residual := make([]float64, train.Len())
	bestRMSE := math.Inf(1)
	sinceBest := 0

	log.Info().Int("train", train.Len()).Int("valid", valid.Len()).Msg("gbdt fit start")

	for iter := 0; iter < p.NEstimators; iter++ {
		for i := range residual {
			residual[i] = train.Y[i] - predTrain[i]
		}

		tree := buildTree(train.X, residual, rows, train.CatIdx, p.NumLeaves, p.MinDataInLeaf)
		m.Trees = append(m.Trees, tree)

		for i := range predTrain {
			predTrain[i] += p.LearningRate * tree.Predict(train.X[i])
		}
		for i := range predValid {
			predValid[i] += p.LearningRate * tree.Predict(valid.X[i])
		}

		vr := RMSE(valid.Y, predValid)
		if vr < bestRMSE {
			bestRMSE = vr
			m.BestIter = iter + 1
			sinceBest = 0
		} else {
			sinceBest++
			if sinceBest >= p.EarlyStoppingRounds {
				log.Info().Int("iteration", iter+1).Int("best_iteration", m.BestIter).
					Float64("valid_rmse", bestRMSE).Msg("early stopping")
				break
			}
		}
	}

	m.Trees = m.Trees[:m.BestIter]
	return m, nil
}

// Predict scores one encoded feature vector.
func (m *Model) Predict(x []float64) float64 {
	out := m.BaseScore
	for _, t := range m.Trees {
		out += m.Params.LearningRate * t.Predict(x)
	}
	return out
}

// PredictAll scores a matrix.
func (m *Model) PredictAll(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Predict(x)
	}
	return out
}

// CategoryCode returns the code for a categorical value, or -1 for values
// unseen during training (they fall through every one-vs-rest split).
func (m *Model) CategoryCode(v string) float64 {
	for i, c := range m.Categories {
		if c == v {
			return float64(i)
		}
	}
	return -1
}

func (m *Model) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

func Unmarshal(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if len(m.FeatureNames) == 0 {
		return nil, errors.New("model has no feature schema")
	}
	return &m, nil
}
