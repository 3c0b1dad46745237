package ml

// Dataset is a dense feature matrix with one target vector. A single
// categorical feature is supported; its values are integer category codes
// stored as float64 alongside the numeric columns.
type Dataset struct {
	Cols   []string
	X      [][]float64
	Y      []float64
	CatIdx int // index of the categorical column, -1 when absent
}

func (d *Dataset) Len() int { return len(d.X) }

// Subset selects rows by index into a new dataset sharing row slices.
func (d *Dataset) Subset(idx []int) *Dataset {
	sub := &Dataset{Cols: d.Cols, CatIdx: d.CatIdx}
	sub.X = make([][]float64, len(idx))
	sub.Y = make([]float64, len(idx))
	for i, j := range idx {
		sub.X[i] = d.X[j]
		sub.Y[i] = d.Y[j]
	}
	return sub
}
