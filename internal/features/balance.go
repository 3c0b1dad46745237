package features

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"
)

// Balance corrects the RUL label skew: the RUL=0 majority is downsampled to
// downRatioZero (uniform, without replacement), each rare class in overRatio
// is replicated exactly overRatio[rul] times, and every other class passes
// through unchanged. The result is shuffled. Rows are shared, not copied;
// only multiplicities change. Deterministic for a fixed input and seed.
func Balance(t *Table, downRatioZero float64, overRatio map[int]int, seed int64) []*Row {
	rng := rand.New(rand.NewSource(seed))

	var zero, rest []*Row
	rare := make(map[int][]*Row, len(overRatio))
	for _, row := range t.Rows {
		switch {
		case row.RUL == 0:
			zero = append(zero, row)
		case overRatio[row.RUL] > 0:
			rare[row.RUL] = append(rare[row.RUL], row)
		default:
			rest = append(rest, row)
		}
	}

	keep := int(math.Round(downRatioZero * float64(len(zero))))
	out := make([]*Row, 0, len(t.Rows))
	for _, i := range rng.Perm(len(zero))[:keep] {
		out = append(out, zero[i])
	}

	ruls := make([]int, 0, len(overRatio))
	for rul := range overRatio {
		ruls = append(ruls, rul)
	}
	sort.Ints(ruls)
	for _, rul := range ruls {
		for range overRatio[rul] {
			out = append(out, rare[rul]...)
		}
	}

	out = append(out, rest...)

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	log.Info().
		Int("in", len(t.Rows)).
		Int("out", len(out)).
		Int("zero_kept", keep).
		Msg("label distribution rebalanced")
	return out
}
