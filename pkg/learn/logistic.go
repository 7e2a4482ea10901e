package learn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogisticRegression is a binary L2-regularised logistic model trained by
// batch gradient descent. The second sorted class is the positive one.
// A zero LearningRate is derived from the data's Lipschitz bound.
type LogisticRegression struct {
	C            float64
	MaxIter      int
	LearningRate float64

	Coef      []float64
	Intercept float64
	classes   []string
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1, MaxIter: 2000}
}

func (m *LogisticRegression) Classes() []string { return m.classes }

func (m *LogisticRegression) Fit(X [][]float64, y []string) error {
	n, d, err := checkShape(X)
	if err != nil {
		return err
	}
	if len(y) != n {
		return ErrShape
	}
	classes := Labels(y)
	if len(classes) != 2 {
		return ErrBinaryOnly
	}
	target := encode(y, classes)

	w := make([]float64, d)
	b := 0.0
	grad := make([]float64, d)
	reg := 1 / (m.C * float64(n))
	lr := m.LearningRate
	if lr <= 0 {
		bound := 0.0
		for _, row := range X {
			bound = math.Max(bound, floats.Dot(row, row)+1)
		}
		lr = 1 / (0.25*bound + reg)
	}
	for iter := 0; iter < m.MaxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		gb := 0.0
		for i, row := range X {
			diff := sigmoid(floats.Dot(w, row)+b) - float64(target[i])
			floats.AddScaled(grad, diff, row)
			gb += diff
		}
		floats.Scale(1/float64(n), grad)
		floats.AddScaled(grad, reg, w)
		gb /= float64(n)

		floats.AddScaled(w, -lr, grad)
		b -= lr * gb
		if floats.Norm(grad, 2)+math.Abs(gb) < 1e-6 {
			break
		}
	}
	m.Coef, m.Intercept, m.classes = w, b, classes
	return nil
}

// PredictProba returns the positive-class probability per row.
func (m *LogisticRegression) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = sigmoid(floats.Dot(m.Coef, row) + m.Intercept)
	}
	return out
}

func (m *LogisticRegression) Predict(X [][]float64) []string {
	out := make([]string, len(X))
	for i, p := range m.PredictProba(X) {
		if p > 0.5 {
			out[i] = m.classes[1]
		} else {
			out[i] = m.classes[0]
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
