package learn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// KMeans is Lloyd's algorithm with k-means++ seeding. The run with the
// lowest inertia out of NInit restarts is kept.
type KMeans struct {
	K       int
	NInit   int
	MaxIter int
	Tol     float64
	Seed    uint64

	Centers [][]float64
	Labels  []int
	Inertia float64
	Iter    int
}

func NewKMeans(k int, seed uint64) *KMeans {
	return &KMeans{K: k, NInit: 10, MaxIter: 300, Tol: 1e-4, Seed: seed}
}

func (km *KMeans) Fit(X [][]float64) error {
	n, d, err := checkShape(X)
	if err != nil {
		return err
	}
	if km.K <= 0 || n < km.K {
		return ErrTooFewSamples
	}

	// convergence threshold is relative to the data's mean column variance
	variance := 0.0
	for j := 0; j < d; j++ {
		variance += stat.Variance(Column(X, j), nil)
	}
	tol := km.Tol * variance / float64(d)
	if math.IsNaN(tol) {
		tol = 0
	}

	rng := rand.New(rand.NewPCG(km.Seed, km.Seed^0xda942042e4dd58b5))
	best := math.Inf(1)
	for run := 0; run < max(1, km.NInit); run++ {
		centers, labels, inertia, iter := km.lloyd(X, km.seedCenters(X, rng), tol)
		if inertia < best {
			best = inertia
			km.Centers, km.Labels, km.Inertia, km.Iter = centers, labels, inertia, iter
		}
	}
	return nil
}

func (km *KMeans) seedCenters(X [][]float64, rng *rand.Rand) [][]float64 {
	n := len(X)
	centers := make([][]float64, 0, km.K)
	centers = append(centers, append([]float64(nil), X[rng.IntN(n)]...))

	dist := make([]float64, n)
	for len(centers) < km.K {
		total := 0.0
		for i, row := range X {
			_, dd := nearest(row, centers)
			dist[i] = dd
			total += dd
		}
		next := rng.IntN(n)
		if total > 0 {
			r := rng.Float64() * total
			for i, dd := range dist {
				r -= dd
				if r <= 0 {
					next = i
					break
				}
			}
		}
		centers = append(centers, append([]float64(nil), X[next]...))
	}
	return centers
}

func (km *KMeans) lloyd(X [][]float64, centers [][]float64, tol float64) ([][]float64, []int, float64, int) {
	n, d := len(X), len(X[0])
	labels := make([]int, n)
	iter := 0
	for iter = 1; iter <= km.MaxIter; iter++ {
		for i, row := range X {
			labels[i], _ = nearest(row, centers)
		}
		next := make([][]float64, km.K)
		counts := make([]float64, km.K)
		for c := range next {
			next[c] = make([]float64, d)
		}
		for i, row := range X {
			floats.Add(next[labels[i]], row)
			counts[labels[i]]++
		}
		shift := 0.0
		for c := range next {
			if counts[c] == 0 {
				// empty cluster keeps its previous centre
				copy(next[c], centers[c])
			} else {
				floats.Scale(1/counts[c], next[c])
			}
			dd := floats.Distance(next[c], centers[c], 2)
			shift += dd * dd
		}
		centers = next
		if shift <= tol {
			break
		}
	}
	inertia := 0.0
	for i, row := range X {
		l, dd := nearest(row, centers)
		labels[i] = l
		inertia += dd
	}
	return centers, labels, inertia, min(iter, km.MaxIter)
}

// Predict assigns each row to its nearest fitted centre.
func (km *KMeans) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, row := range X {
		out[i], _ = nearest(row, km.Centers)
	}
	return out
}

// nearest returns the closest centre and the squared distance to it.
func nearest(row []float64, centers [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		dd := floats.Distance(row, center, 2)
		if dd*dd < bestDist {
			best, bestDist = c, dd*dd
		}
	}
	return best, bestDist
}

// Silhouette is the mean silhouette coefficient over all samples.
// It needs between 2 and n-1 distinct labels.
func Silhouette(X [][]float64, labels []int) (float64, error) {
	n, _, err := checkShape(X)
	if err != nil {
		return 0, err
	}
	if len(labels) != n {
		return 0, ErrShape
	}
	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	if len(sizes) < 2 || len(sizes) > n-1 {
		return 0, ErrTooFewSamples
	}

	total := 0.0
	for i := range X {
		if sizes[labels[i]] == 1 {
			continue
		}
		sums := make(map[int]float64, len(sizes))
		for j := range X {
			if i != j {
				sums[labels[j]] += floats.Distance(X[i], X[j], 2)
			}
		}
		a := sums[labels[i]] / float64(sizes[labels[i]]-1)
		b := math.Inf(1)
		for l, s := range sums {
			if l != labels[i] {
				b = math.Min(b, s/float64(sizes[l]))
			}
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n), nil
}
