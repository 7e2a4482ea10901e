package learn

import (
	"math/rand/v2"
	"sort"
)

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	proba     []float64
}

func (n *treeNode) leaf() bool { return n.left == nil }

// DecisionTree is a CART classifier splitting on Gini impurity.
// MaxFeatures > 0 draws that many candidate features at every split.
type DecisionTree struct {
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
	Seed            uint64

	root        *treeNode
	classes     []string
	importances []float64
	rng         *rand.Rand
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesSplit: 2, Seed: 42}
}

func (t *DecisionTree) Classes() []string { return t.classes }

// FeatureImportances are the normalised total impurity decreases per feature.
func (t *DecisionTree) FeatureImportances() []float64 { return t.importances }

func (t *DecisionTree) Fit(X [][]float64, y []string) error {
	n, _, err := checkShape(X)
	if err != nil {
		return err
	}
	if len(y) != n {
		return ErrShape
	}
	t.classes = Labels(y)
	return t.fitEncoded(X, encode(y, t.classes), len(t.classes))
}

func (t *DecisionTree) fitEncoded(X [][]float64, y []int, nClasses int) error {
	n, d, err := checkShape(X)
	if err != nil {
		return err
	}
	if t.MinSamplesSplit < 2 {
		t.MinSamplesSplit = 2
	}
	t.rng = rand.New(rand.NewPCG(t.Seed, t.Seed^0x2545f4914f6cdd1d))
	t.importances = make([]float64, d)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	t.root = t.grow(X, y, nClasses, idx, 0, float64(n))

	total := 0.0
	for _, v := range t.importances {
		total += v
	}
	if total > 0 {
		for j := range t.importances {
			t.importances[j] /= total
		}
	}
	return nil
}

func (t *DecisionTree) grow(X [][]float64, y []int, nClasses int, idx []int, depth int, nTotal float64) *treeNode {
	counts := make([]float64, nClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	node := &treeNode{proba: normalise(counts)}

	impurity := gini(counts, float64(len(idx)))
	if impurity == 0 || len(idx) < t.MinSamplesSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return node
	}

	feature, threshold, gain, ok := t.bestSplit(X, y, nClasses, idx, counts, impurity)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	t.importances[feature] += float64(len(idx)) / nTotal * gain
	node.feature = feature
	node.threshold = threshold
	node.left = t.grow(X, y, nClasses, left, depth+1, nTotal)
	node.right = t.grow(X, y, nClasses, right, depth+1, nTotal)
	return node
}

func (t *DecisionTree) candidateFeatures(d int) []int {
	features := make([]int, d)
	for j := range features {
		features[j] = j
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < d {
		t.rng.Shuffle(d, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:t.MaxFeatures]
	}
	return features
}

func (t *DecisionTree) bestSplit(X [][]float64, y []int, nClasses int, idx []int, counts []float64, impurity float64) (int, float64, float64, bool) {
	n := float64(len(idx))
	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0

	sorted := make([]int, len(idx))
	left := make([]float64, nClasses)
	right := make([]float64, nClasses)
	for _, f := range t.candidateFeatures(len(X[idx[0]])) {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })
		for c := range left {
			left[c] = 0
			right[c] = counts[c]
		}
		for k := 0; k < len(sorted)-1; k++ {
			cls := y[sorted[k]]
			left[cls]++
			right[cls]--
			lo, hi := X[sorted[k]][f], X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl := float64(k + 1)
			nr := n - nl
			child := nl/n*gini(left, nl) + nr/n*gini(right, nr)
			if gain := impurity - child; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (lo + hi) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestGain, bestFeature >= 0
}

// PredictProba returns class probabilities per row, ordered as Classes.
func (t *DecisionTree) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		node := t.root
		for !node.leaf() {
			if row[node.feature] <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		out[i] = node.proba
	}
	return out
}

func (t *DecisionTree) Predict(X [][]float64) []string {
	out := make([]string, len(X))
	for i, p := range t.PredictProba(X) {
		out[i] = t.classes[argmax(p)]
	}
	return out
}

// Depth of the fitted tree; a single leaf has depth 0.
func (t *DecisionTree) Depth() int {
	var walk func(*treeNode) int
	walk = func(n *treeNode) int {
		if n == nil || n.leaf() {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(t.root)
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func normalise(counts []float64) []float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	out := make([]float64, len(counts))
	if total == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = c / total
	}
	return out
}
