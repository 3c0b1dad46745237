package ml

import "math"

func RMSE(yTrue, yPred []float64) float64 {
	ss := 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(yTrue)))
}

func MAE(yTrue, yPred []float64) float64 {
	sum := 0.0
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue))
}

// R2 is the coefficient of determination. A constant target is degenerate:
// exact predictions score 1, anything else 0.
func R2(yTrue, yPred []float64) float64 {
	mean := 0.0
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	ssRes, ssTot := 0.0, 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		t := yTrue[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
