// Package learn holds the small set of statistics and classification
// primitives used by the risk and analytics stages. Matrices are row-major
// [][]float64 and missing values are NaN.
package learn

import (
	"errors"
	"math"
	"sort"
)

var (
	ErrEmpty         = errors.New("learn: empty input")
	ErrShape         = errors.New("learn: inconsistent shape")
	ErrNotFitted     = errors.New("learn: model not fitted")
	ErrBinaryOnly    = errors.New("learn: exactly two classes required")
	ErrTooFewSamples = errors.New("learn: not enough samples")
)

// Classifier is implemented by every supervised model in this package.
type Classifier interface {
	Fit(X [][]float64, y []string) error
	Predict(X [][]float64) []string
	Classes() []string
}

// Column copies column j of X.
func Column(X [][]float64, j int) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = row[j]
	}
	return out
}

func checkShape(X [][]float64) (int, int, error) {
	if len(X) == 0 {
		return 0, 0, ErrEmpty
	}
	d := len(X[0])
	for _, row := range X {
		if len(row) != d {
			return 0, 0, ErrShape
		}
	}
	return len(X), d, nil
}

// Labels returns the sorted distinct values of y.
func Labels(y []string) []string {
	seen := make(map[string]struct{}, 2)
	for _, v := range y {
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func encode(y []string, classes []string) []int {
	idx := make(map[string]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	out := make([]int, len(y))
	for i, v := range y {
		out[i] = idx[v]
	}
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Median of the finite values in x. Returns NaN when none are present.
func Median(x []float64) float64 {
	vals := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
