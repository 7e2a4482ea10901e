package analytics

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telematics/pkg/generator"
	"telematics/pkg/learn"
	"telematics/pkg/logger"
)

func TestRowScoresSkipMissing(t *testing.T) {
	nan := optional(nil)
	scores := rowScores([][]float64{
		{1, nan},
		{3, 10},
		{5, 20},
	})
	// column 0: mean 3, sample std 2; column 1: mean 15, sample std ~7.07
	assert.InDelta(t, -1.0, scores[0], 1e-9)
	assert.InDelta(t, (0+(-0.7071067811865476))/2, scores[1], 1e-9)
}

func TestPrepareDataTarget(t *testing.T) {
	records, err := generator.New(101, 30, 5).Generate()
	require.NoError(t, err)
	a := NewAnalyzer(42, 2, logger.Nop())
	X, y, err := a.PrepareData(records)
	require.NoError(t, err)
	require.Len(t, X, 101)
	require.Len(t, X[0], len(Features))

	abnormal := 0
	for _, label := range y {
		if label == LabelAbnormal {
			abnormal++
		}
	}
	// strictly above the median: at most half the drivers
	assert.LessOrEqual(t, abnormal, 50)
	assert.Greater(t, abnormal, 30)

	_, _, err = a.PrepareData(nil)
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	records, err := generator.New(150, 30, 9).Generate()
	require.NoError(t, err)
	a := NewAnalyzer(42, 4, logger.Nop())
	report, err := a.Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, report.Models, 3)
	for i, m := range report.Models {
		assert.Equal(t, ModelNames[i], m.Name)
		assert.Equal(t, []string{LabelAbnormal, LabelSafe}, m.Labels)
		assert.Len(t, m.FeatureImportance, len(Features))
		assert.GreaterOrEqual(t, m.Accuracy, 0.5)
		total := 0
		for _, row := range m.ConfusionMatrix {
			for _, v := range row {
				total += v
			}
		}
		assert.Equal(t, 30, total)
	}

	c := report.Clustering
	require.Len(t, c.Assignments, 150)
	assert.Len(t, c.Mapping, 3)
	assert.Greater(t, c.Silhouette, -1.0)
	assert.LessOrEqual(t, c.Silhouette, 1.0)
	drivers := 0
	for _, s := range c.Stats {
		assert.Contains(t, Levels, s.Level)
		drivers += s.Drivers
	}
	assert.Equal(t, 150, drivers)

	path := filepath.Join(t.TempDir(), "ml_results", "report.json")
	require.NoError(t, WriteReport(path, report))
	back, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.Drivers, back.Drivers)
	assert.Equal(t, report.Models[0].ConfusionMatrix, back.Models[0].ConfusionMatrix)
}

func TestTrainClassifiersSingleClass(t *testing.T) {
	a := NewAnalyzer(42, 1, logger.Nop())
	_, err := a.TrainClassifiers(context.Background(), [][]float64{{1}, {2}}, []string{LabelSafe, LabelSafe})
	require.ErrorIs(t, err, ErrSingleClass)
}

func TestTowardAbnormal(t *testing.T) {
	X := [][]float64{{-2}, {-1}, {1}, {2}}
	y := []string{LabelSafe, LabelSafe, LabelAbnormal, LabelAbnormal}
	m := learn.NewLogisticRegression()
	require.NoError(t, m.Fit(X, y))
	// Safe sorts last, so the raw coefficient points away from Abnormal
	require.Less(t, m.Coef[0], 0.0)
	assert.Greater(t, towardAbnormal(m)[0], 0.0)
}
