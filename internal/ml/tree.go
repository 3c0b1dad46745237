package ml

import "sort"

// Node is one tree node in array form so the ensemble serializes to JSON
// directly. Leaves carry Value; internal nodes route on Feature/Threshold.
// Categorical nodes send rows equal to the threshold code left, all others
// (including unseen codes) right.
type Node struct {
	Leaf        bool    `json:"leaf"`
	Value       float64 `json:"value,omitempty"`
	Feature     int     `json:"feature,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	Categorical bool    `json:"categorical,omitempty"`
	Left        int     `json:"left,omitempty"`
	Right       int     `json:"right,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		var goLeft bool
		if n.Categorical {
			goLeft = x[n.Feature] == n.Threshold
		} else {
			goLeft = x[n.Feature] <= n.Threshold
		}
		if goLeft {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type split struct {
	feature     int
	threshold   float64
	categorical bool
	gain        float64
	left, right []int
}

// candidate is a grown-but-unsplit leaf with its best available split.
type candidate struct {
	nodeIdx int
	rows    []int
	best    *split
}

// buildTree fits one regression tree to the targets by leaf-wise (best-first)
// growth: the leaf with the highest variance-reduction gain splits next, up
// to maxLeaves leaves.
func buildTree(X [][]float64, target []float64, rows []int, catIdx, maxLeaves, minLeaf int) *Tree {
	t := &Tree{}
	t.Nodes = append(t.Nodes, Node{Leaf: true, Value: meanOf(target, rows)})

	open := []*candidate{{nodeIdx: 0, rows: rows, best: bestSplit(X, target, rows, catIdx, minLeaf)}}
	leaves := 1

	for leaves < maxLeaves {
		bi := -1
		for i, c := range open {
			if c.best == nil {
				continue
			}
			if bi == -1 || c.best.gain > open[bi].best.gain {
				bi = i
			}
		}
		if bi == -1 {
			break
		}

		c := open[bi]
		open = append(open[:bi], open[bi+1:]...)

		li := len(t.Nodes)
		t.Nodes = append(t.Nodes, Node{Leaf: true, Value: meanOf(target, c.best.left)})
		ri := len(t.Nodes)
		t.Nodes = append(t.Nodes, Node{Leaf: true, Value: meanOf(target, c.best.right)})

		t.Nodes[c.nodeIdx] = Node{
			Feature:     c.best.feature,
			Threshold:   c.best.threshold,
			Categorical: c.best.categorical,
			Left:        li,
			Right:       ri,
		}

		open = append(open,
			&candidate{nodeIdx: li, rows: c.best.left, best: bestSplit(X, target, c.best.left, catIdx, minLeaf)},
			&candidate{nodeIdx: ri, rows: c.best.right, best: bestSplit(X, target, c.best.right, catIdx, minLeaf)},
		)
		leaves++
	}

	return t
}

// bestSplit scans every feature for the highest-gain split of the rows, or
// nil when no split clears the minimum leaf size with positive gain.
func bestSplit(X [][]float64, target []float64, rows []int, catIdx, minLeaf int) *split {
	if len(rows) < 2*minLeaf {
		return nil
	}

	total := 0.0
	for _, r := range rows {
		total += target[r]
	}
	n := float64(len(rows))
	parentScore := total * total / n

	var best *split
	nFeatures := len(X[rows[0]])

	for f := 0; f < nFeatures; f++ {
		if f == catIdx {
			if s := bestCategoricalSplit(X, target, rows, f, minLeaf, total, parentScore); s != nil && (best == nil || s.gain > best.gain) {
				best = s
			}
			continue
		}
		if s := bestNumericSplit(X, target, rows, f, minLeaf, total, parentScore); s != nil && (best == nil || s.gain > best.gain) {
			best = s
		}
	}
	return best
}

func bestNumericSplit(X [][]float64, target []float64, rows []int, f, minLeaf int, total, parentScore float64) *split {
	order := make([]int, len(rows))
	copy(order, rows)
	sort.SliceStable(order, func(i, j int) bool { return X[order[i]][f] < X[order[j]][f] })

	var best *split
	leftSum := 0.0
	for i := 0; i < len(order)-1; i++ {
		leftSum += target[order[i]]
		if X[order[i]][f] == X[order[i+1]][f] {
			continue
		}
		nl := i + 1
		nr := len(order) - nl
		if nl < minLeaf || nr < minLeaf {
			continue
		}
		gain := leftSum*leftSum/float64(nl) + (total-leftSum)*(total-leftSum)/float64(nr) - parentScore
		if gain <= 0 {
			continue
		}
		if best == nil || gain > best.gain {
			best = &split{
				feature:   f,
				threshold: (X[order[i]][f] + X[order[i+1]][f]) / 2,
				gain:      gain,
			}
			best.left = append([]int(nil), order[:nl]...)
			best.right = append([]int(nil), order[nl:]...)
		}
	}
	return best
}

// bestCategoricalSplit tries one-vs-rest splits: each category code in turn
// goes left, everything else right.
func bestCategoricalSplit(X [][]float64, target []float64, rows []int, f, minLeaf int, total, parentScore float64) *split {
	sums := make(map[float64]float64)
	counts := make(map[float64]int)
	for _, r := range rows {
		c := X[r][f]
		sums[c] += target[r]
		counts[c]++
	}
	if len(counts) < 2 {
		return nil
	}

	codes := make([]float64, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Float64s(codes)

	var best *split
	for _, c := range codes {
		nl := counts[c]
		nr := len(rows) - nl
		if nl < minLeaf || nr < minLeaf {
			continue
		}
		ls := sums[c]
		gain := ls*ls/float64(nl) + (total-ls)*(total-ls)/float64(nr) - parentScore
		if gain <= 0 {
			continue
		}
		if best == nil || gain > best.gain {
			s := &split{feature: f, threshold: c, categorical: true, gain: gain}
			for _, r := range rows {
				if X[r][f] == c {
					s.left = append(s.left, r)
				} else {
					s.right = append(s.right, r)
				}
			}
			best = s
		}
	}
	return best
}

func meanOf(target []float64, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rows {
		sum += target[r]
	}
	return sum / float64(len(rows))
}
