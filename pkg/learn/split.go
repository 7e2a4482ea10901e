package learn

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Split is the result of TrainTestSplit. Index slices point into the input.
type Split struct {
	XTrain, XTest [][]float64
	YTrain, YTest []string
	TrainIdx      []int
	TestIdx       []int
}

// TrainTestSplit partitions X and y, keeping class proportions in both
// halves. Every class with at least two members contributes at least one
// sample to each side.
func TrainTestSplit(X [][]float64, y []string, testSize float64, seed uint64) (Split, error) {
	n, _, err := checkShape(X)
	if err != nil {
		return Split{}, err
	}
	if len(y) != n {
		return Split{}, ErrShape
	}
	if n < 2 || testSize <= 0 || testSize >= 1 {
		return Split{}, ErrTooFewSamples
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	byClass := make(map[string][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	var train, test []int
	for _, label := range Labels(y) {
		idx := byClass[label]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		k := int(math.Round(testSize * float64(len(idx))))
		if len(idx) >= 2 {
			k = min(max(k, 1), len(idx)-1)
		}
		test = append(test, idx[:k]...)
		train = append(train, idx[k:]...)
	}
	sort.Ints(train)
	sort.Ints(test)

	s := Split{TrainIdx: train, TestIdx: test}
	for _, i := range train {
		s.XTrain = append(s.XTrain, X[i])
		s.YTrain = append(s.YTrain, y[i])
	}
	for _, i := range test {
		s.XTest = append(s.XTest, X[i])
		s.YTest = append(s.YTest, y[i])
	}
	return s, nil
}
