package learn

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns two well separated 2-D groups labelled "a" and "b".
func blobs(n int, seed uint64) ([][]float64, []string) {
	rng := rand.New(rand.NewPCG(seed, seed))
	var X [][]float64
	var y []string
	for i := 0; i < n; i++ {
		X = append(X, []float64{rng.NormFloat64() * 0.3, rng.NormFloat64() * 0.3})
		y = append(y, "a")
		X = append(X, []float64{5 + rng.NormFloat64()*0.3, 5 + rng.NormFloat64()*0.3})
		y = append(y, "b")
	}
	return X, y
}

func TestMeanImputer(t *testing.T) {
	X := [][]float64{{1, math.NaN()}, {3, 4}, {math.NaN(), 8}}
	var imp MeanImputer
	out, err := imp.FitTransform(X)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 6}, imp.Means)
	require.Equal(t, [][]float64{{1, 6}, {3, 4}, {2, 8}}, out)
	require.True(t, math.IsNaN(X[0][1]), "input must not be modified")
}

func TestStandardScaler(t *testing.T) {
	X := [][]float64{{1, 5}, {3, 5}}
	var sc StandardScaler
	out, err := sc.FitTransform(X)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 1}, sc.Scale)
	require.Equal(t, [][]float64{{-1, 0}, {1, 0}}, out)

	_, err = (&StandardScaler{}).Transform(X)
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestTrainTestSplitStratified(t *testing.T) {
	var X [][]float64
	var y []string
	for i := 0; i < 100; i++ {
		X = append(X, []float64{float64(i)})
		if i < 30 {
			y = append(y, "Abnormal")
		} else {
			y = append(y, "Safe")
		}
	}
	s, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)
	require.Len(t, s.YTest, 20)
	require.Len(t, s.YTrain, 80)

	abnormal := 0
	for _, l := range s.YTest {
		if l == "Abnormal" {
			abnormal++
		}
	}
	require.Equal(t, 6, abnormal)

	again, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)
	require.Equal(t, s.TestIdx, again.TestIdx)
}

func TestClassifiersSeparateBlobs(t *testing.T) {
	X, y := blobs(40, 7)
	models := map[string]Classifier{
		"logistic": NewLogisticRegression(),
		"tree":     NewDecisionTree(5),
		"forest":   NewRandomForest(20, 4, 42),
	}
	for name, m := range models {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, m.Fit(X, y))
			require.Equal(t, []string{"a", "b"}, m.Classes())
			pred := m.Predict([][]float64{{0, 0}, {5, 5}})
			require.Equal(t, []string{"a", "b"}, pred)
			require.InDelta(t, 1.0, Accuracy(y, m.Predict(X)), 1e-9)
		})
	}
}

func TestLogisticRequiresTwoClasses(t *testing.T) {
	err := NewLogisticRegression().Fit([][]float64{{1}, {2}}, []string{"a", "a"})
	require.ErrorIs(t, err, ErrBinaryOnly)
}

func TestDecisionTreeDepthAndImportances(t *testing.T) {
	// only the first feature carries signal
	X := [][]float64{{0, 1}, {1, 0}, {2, 1}, {10, 0}, {11, 1}, {12, 0}}
	y := []string{"a", "a", "a", "b", "b", "b"}
	tree := NewDecisionTree(3)
	require.NoError(t, tree.Fit(X, y))
	require.Equal(t, 1, tree.Depth())
	require.Equal(t, []float64{1, 0}, tree.FeatureImportances())
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := blobs(20, 3)
	f1 := NewRandomForest(10, 3, 42)
	f2 := NewRandomForest(10, 1, 42)
	require.NoError(t, f1.Fit(X, y))
	require.NoError(t, f2.Fit(X, y))
	require.Equal(t, f1.PredictProba(X), f2.PredictProba(X))
	require.InDelta(t, 1.0, f1.FeatureImportances()[0]+f1.FeatureImportances()[1], 1e-9)
}

func TestKMeansAndSilhouette(t *testing.T) {
	X, y := blobs(30, 11)
	km := NewKMeans(2, 42)
	require.NoError(t, km.Fit(X))
	require.Len(t, km.Centers, 2)

	// each true group lands in a single cluster
	byGroup := map[string]map[int]bool{"a": {}, "b": {}}
	for i, l := range km.Labels {
		byGroup[y[i]][l] = true
	}
	require.Len(t, byGroup["a"], 1)
	require.Len(t, byGroup["b"], 1)
	require.Equal(t, km.Labels, km.Predict(X))

	s, err := Silhouette(X, km.Labels)
	require.NoError(t, err)
	require.Greater(t, s, 0.8)

	_, err = Silhouette(X, make([]int, len(X)))
	require.ErrorIs(t, err, ErrTooFewSamples)
}

func TestKMeansTooFewSamples(t *testing.T) {
	require.ErrorIs(t, NewKMeans(3, 1).Fit([][]float64{{1}, {2}}), ErrTooFewSamples)
}

func TestMetrics(t *testing.T) {
	yTrue := []string{"Abnormal", "Abnormal", "Safe", "Safe", "Safe"}
	yPred := []string{"Abnormal", "Safe", "Safe", "Safe", "Abnormal"}

	assert.InDelta(t, 0.6, Accuracy(yTrue, yPred), 1e-9)
	s := Score(yTrue, yPred, "Abnormal")
	assert.InDelta(t, 0.5, s.Precision, 1e-9)
	assert.InDelta(t, 0.5, s.Recall, 1e-9)
	assert.InDelta(t, 0.5, s.F1, 1e-9)
	assert.Equal(t, 2, s.Support)

	cm := ConfusionMatrix(yTrue, yPred, []string{"Abnormal", "Safe"})
	assert.Equal(t, [][]int{{1, 1}, {1, 2}}, cm)

	report := ClassificationReport(yTrue, yPred, []string{"Abnormal", "Safe"})
	assert.Contains(t, report, "precision")
	assert.Contains(t, report, "weighted avg")
	assert.Equal(t, 8, len(strings.Split(strings.TrimSpace(report), "\n")))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.5, Median([]float64{4, 1, math.NaN(), 2, 3}))
	assert.True(t, math.IsNaN(Median([]float64{math.NaN()})))
}
