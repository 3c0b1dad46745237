package pipeline

import (
	"sort"

	"monitory/internal/features"
	"monitory/internal/ml"
)

// toDataset encodes balanced feature rows into a dense matrix following
// FeatureCols exactly. The equipment column becomes integer category codes;
// the returned slice maps codes back to equipment ids.
func toDataset(rows []*features.Row) (*ml.Dataset, []string) {
	cols := features.FeatureCols
	catIdx := -1
	for i, c := range cols {
		if c == "equipment" {
			catIdx = i
		}
	}

	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.Equipment] = struct{}{}
	}
	categories := make([]string, 0, len(seen))
	for e := range seen {
		categories = append(categories, e)
	}
	sort.Strings(categories)
	codes := make(map[string]float64, len(categories))
	for i, e := range categories {
		codes[e] = float64(i)
	}

	d := &ml.Dataset{Cols: cols, CatIdx: catIdx}
	d.X = make([][]float64, len(rows))
	d.Y = make([]float64, len(rows))
	for i, r := range rows {
		x := make([]float64, len(cols))
		for j, c := range cols {
			if j == catIdx {
				x[j] = codes[r.Equipment]
			} else {
				x[j] = r.Vals[c]
			}
		}
		d.X[i] = x
		d.Y[i] = float64(r.RUL)
	}
	return d, categories
}
