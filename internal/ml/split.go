package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train/test keeping the label
// distribution. Every class must have at least 2 members so both sides see
// it; a thinner class is a data-insufficiency error, not something to drop
// silently.
func StratifiedSplit(y []float64, testFrac float64, seed int64) (trainIdx, testIdx []int, err error) {
	classes := make(map[float64][]int)
	for i, v := range y {
		classes[v] = append(classes[v], i)
	}

	keys := make([]float64, 0, len(classes))
	for k := range classes {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	rng := rand.New(rand.NewSource(seed))
	for _, k := range keys {
		members := classes[k]
		if len(members) < 2 {
			return nil, nil, fmt.Errorf("stratified split: class %v has %d member(s), need at least 2", k, len(members))
		}
		n := len(members)
		nTest := int(math.Round(testFrac * float64(n)))
		if nTest < 1 {
			nTest = 1
		}
		if nTest > n-1 {
			nTest = n - 1
		}
		perm := rng.Perm(n)
		for i, p := range perm {
			if i < nTest {
				testIdx = append(testIdx, members[p])
			} else {
				trainIdx = append(trainIdx, members[p])
			}
		}
	}

	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return trainIdx, testIdx, nil
}
