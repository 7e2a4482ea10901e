package learn

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MeanImputer replaces NaN cells with the column mean of the fitted data.
type MeanImputer struct {
	Means []float64
}

func (m *MeanImputer) Fit(X [][]float64) error {
	_, d, err := checkShape(X)
	if err != nil {
		return err
	}
	m.Means = make([]float64, d)
	for j := 0; j < d; j++ {
		present := make([]float64, 0, len(X))
		for _, row := range X {
			if !math.IsNaN(row[j]) {
				present = append(present, row[j])
			}
		}
		if len(present) > 0 {
			m.Means[j] = stat.Mean(present, nil)
		}
	}
	return nil
}

func (m *MeanImputer) Transform(X [][]float64) ([][]float64, error) {
	if m.Means == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.Means) {
			return nil, ErrShape
		}
		r := make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) {
				v = m.Means[j]
			}
			r[j] = v
		}
		out[i] = r
	}
	return out, nil
}

func (m *MeanImputer) FitTransform(X [][]float64) ([][]float64, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// StandardScaler centres each column and divides by its population
// standard deviation. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func (s *StandardScaler) Fit(X [][]float64) error {
	_, d, err := checkShape(X)
	if err != nil {
		return err
	}
	s.Mean = make([]float64, d)
	s.Scale = make([]float64, d)
	for j := 0; j < d; j++ {
		mean, variance := stat.PopMeanVariance(Column(X, j), nil)
		s.Mean[j] = mean
		s.Scale[j] = math.Sqrt(variance)
		if s.Scale[j] == 0 {
			s.Scale[j] = 1
		}
	}
	return nil
}

func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.Mean) {
			return nil, ErrShape
		}
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = r
	}
	return out, nil
}

func (s *StandardScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}
