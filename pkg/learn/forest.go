package learn

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/alitto/pond/v2"
)

// RandomForest bags DecisionTrees over bootstrap samples and averages
// their class probabilities. Trees are grown concurrently on a worker pool.
type RandomForest struct {
	NTrees   int
	MaxDepth int
	Workers  int
	Seed     uint64

	trees       []*DecisionTree
	classes     []string
	importances []float64
}

func NewRandomForest(nTrees, workers int, seed uint64) *RandomForest {
	return &RandomForest{NTrees: nTrees, Workers: workers, Seed: seed}
}

func (f *RandomForest) Classes() []string { return f.classes }

func (f *RandomForest) FeatureImportances() []float64 { return f.importances }

func (f *RandomForest) Fit(X [][]float64, y []string) error {
	return f.FitContext(context.Background(), X, y)
}

func (f *RandomForest) FitContext(ctx context.Context, X [][]float64, y []string) error {
	n, d, err := checkShape(X)
	if err != nil {
		return err
	}
	if len(y) != n {
		return ErrShape
	}
	if f.NTrees <= 0 {
		f.NTrees = 100
	}
	workers := f.Workers
	if workers <= 0 {
		workers = 1
	}
	classes := Labels(y)
	target := encode(y, classes)
	maxFeatures := max(1, int(math.Sqrt(float64(d))))

	pool := pond.NewResultPool[*DecisionTree](workers)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)

	for k := 0; k < f.NTrees; k++ {
		seed := f.Seed + uint64(k)*0x9e3779b97f4a7c15
		group.SubmitErr(func() (*DecisionTree, error) {
			rng := rand.New(rand.NewPCG(seed, ^seed))
			bx := make([][]float64, n)
			by := make([]int, n)
			for i := 0; i < n; i++ {
				j := rng.IntN(n)
				bx[i], by[i] = X[j], target[j]
			}
			tree := &DecisionTree{
				MaxDepth:        f.MaxDepth,
				MinSamplesSplit: 2,
				MaxFeatures:     maxFeatures,
				Seed:            seed,
				classes:         classes,
			}
			if err := tree.fitEncoded(bx, by, len(classes)); err != nil {
				return nil, err
			}
			return tree, nil
		})
	}

	trees, err := group.Wait()
	if err != nil {
		return fmt.Errorf("grow forest: %w", err)
	}

	importances := make([]float64, d)
	for _, t := range trees {
		for j, v := range t.importances {
			importances[j] += v / float64(len(trees))
		}
	}
	f.trees, f.classes, f.importances = trees, classes, importances
	return nil
}

func (f *RandomForest) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range out {
		out[i] = make([]float64, len(f.classes))
	}
	for _, t := range f.trees {
		for i, p := range t.PredictProba(X) {
			for c := range p {
				out[i][c] += p[c] / float64(len(f.trees))
			}
		}
	}
	return out
}

func (f *RandomForest) Predict(X [][]float64) []string {
	out := make([]string, len(X))
	for i, p := range f.PredictProba(X) {
		out[i] = f.classes[argmax(p)]
	}
	return out
}
