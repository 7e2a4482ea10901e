// Package analytics trains the behaviour classifiers and the k-means
// segmentation over the risk-enriched driver set.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"telematics/pkg/learn"
	"telematics/pkg/logger"
	"telematics/pkg/models"
)

const (
	LabelAbnormal = "Abnormal"
	LabelSafe     = "Safe"

	LevelLow      = "Low Risk"
	LevelModerate = "Moderate Risk"
	LevelHigh     = "High Risk"
)

var Levels = []string{LevelLow, LevelModerate, LevelHigh}

var Features = []string{
	"sudden_braking_events", "speeding_events", "previous_accidents", "traffic_fines",
	"total_km", "age", "years_of_experience",
}

// ModelNames in training order.
var ModelNames = []string{"logistic", "decision_tree", "random_forest"}

var ErrSingleClass = errors.New("target has a single class")

type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

type ModelResult struct {
	Name                 string          `json:"name"`
	Accuracy             float64         `json:"accuracy"`
	Precision            float64         `json:"precision"`
	Recall               float64         `json:"recall"`
	F1                   float64         `json:"f1"`
	Labels               []string        `json:"labels"`
	ConfusionMatrix      [][]int         `json:"confusion_matrix"`
	ClassificationReport string          `json:"classification_report"`
	FeatureImportance    []FeatureWeight `json:"feature_importance"`
}

type LevelStats struct {
	Level             string  `json:"risk_level"`
	BrakingEvents     float64 `json:"sudden_braking_events"`
	SpeedingEvents    float64 `json:"speeding_events"`
	PreviousAccidents float64 `json:"previous_accidents"`
	TrafficFines      float64 `json:"traffic_fines"`
	Drivers           int     `json:"drivers"`
}

type Clustering struct {
	Silhouette  float64                    `json:"silhouette_score"`
	Mapping     map[int]string             `json:"risk_mapping"`
	Stats       []LevelStats               `json:"cluster_stats"`
	Assignments []models.ClusterAssignment `json:"-"`
}

// Report bundles everything one analytics run produces.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Drivers     int           `json:"drivers"`
	Features    []string      `json:"features"`
	Abnormal    int           `json:"abnormal_drivers"`
	Models      []ModelResult `json:"models"`
	Clustering  Clustering    `json:"clustering"`
}

type Analyzer struct {
	log     logger.ILogger
	seed    uint64
	workers int
}

func NewAnalyzer(seed uint64, forestWorkers int, log logger.ILogger) *Analyzer {
	return &Analyzer{log: log, seed: seed, workers: forestWorkers}
}

// PrepareData builds the scaled feature matrix and the Safe/Abnormal
// target. A driver is Abnormal when the mean z-score of their event
// columns is above the median.
func (a *Analyzer) PrepareData(records []models.DriverRecord) ([][]float64, []string, error) {
	if len(records) == 0 {
		return nil, nil, learn.ErrEmpty
	}
	X := make([][]float64, len(records))
	events := make([][]float64, len(records))
	for i := range records {
		r := &records[i]
		braking, speeding := optional(r.SuddenBrakingEvents), optional(r.SpeedingEvents)
		X[i] = []float64{
			braking, speeding,
			float64(r.PreviousAccidents), float64(r.TrafficFines),
			r.TotalKm, float64(r.Age), float64(r.YearsOfExperience),
		}
		events[i] = []float64{braking, speeding, float64(r.PreviousAccidents), float64(r.TrafficFines)}
	}

	scores := rowScores(events)
	threshold := learn.Median(scores)
	y := make([]string, len(records))
	for i, s := range scores {
		if s > threshold {
			y[i] = LabelAbnormal
		} else {
			y[i] = LabelSafe
		}
	}

	var imputer learn.MeanImputer
	X, err := imputer.FitTransform(X)
	if err != nil {
		return nil, nil, fmt.Errorf("impute: %w", err)
	}
	var scaler learn.StandardScaler
	if X, err = scaler.FitTransform(X); err != nil {
		return nil, nil, fmt.Errorf("scale: %w", err)
	}
	return X, y, nil
}

// rowScores z-scores every column with its sample deviation, skipping NaN,
// and averages the present values per row.
func rowScores(cols [][]float64) []float64 {
	d := len(cols[0])
	means := make([]float64, d)
	stds := make([]float64, d)
	for j := 0; j < d; j++ {
		var present []float64
		for _, row := range cols {
			if !math.IsNaN(row[j]) {
				present = append(present, row[j])
			}
		}
		if len(present) > 1 {
			means[j], stds[j] = stat.MeanStdDev(present, nil)
		}
	}
	scores := make([]float64, len(cols))
	for i, row := range cols {
		sum, n := 0.0, 0
		for j, v := range row {
			if math.IsNaN(v) || stds[j] == 0 {
				continue
			}
			sum += (v - means[j]) / stds[j]
			n++
		}
		scores[i] = math.NaN()
		if n > 0 {
			scores[i] = sum / float64(n)
		}
	}
	return scores
}

func optional(v *int) float64 {
	if v == nil {
		return math.NaN()
	}
	return float64(*v)
}

// TrainClassifiers fits every model on a stratified 80/20 split and scores
// it on the held-out part with Abnormal as the positive label.
func (a *Analyzer) TrainClassifiers(ctx context.Context, X [][]float64, y []string) ([]ModelResult, error) {
	labels := learn.Labels(y)
	if len(labels) < 2 {
		return nil, ErrSingleClass
	}
	split, err := learn.TrainTestSplit(X, y, 0.2, a.seed)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}

	logistic := learn.NewLogisticRegression()
	tree := learn.NewDecisionTree(5)
	tree.Seed = a.seed
	forest := learn.NewRandomForest(100, a.workers, a.seed)

	results := make([]ModelResult, 0, len(ModelNames))
	for _, name := range ModelNames {
		var (
			model      learn.Classifier
			importance []float64
		)
		switch name {
		case "logistic":
			if err := logistic.Fit(split.XTrain, split.YTrain); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			model = logistic
			importance = towardAbnormal(logistic)
		case "decision_tree":
			if err := tree.Fit(split.XTrain, split.YTrain); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			model = tree
			importance = tree.FeatureImportances()
		case "random_forest":
			if err := forest.FitContext(ctx, split.XTrain, split.YTrain); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			model = forest
			importance = forest.FeatureImportances()
		}

		pred := model.Predict(split.XTest)
		score := learn.Score(split.YTest, pred, LabelAbnormal)
		res := ModelResult{
			Name:                 name,
			Accuracy:             learn.Accuracy(split.YTest, pred),
			Precision:            score.Precision,
			Recall:               score.Recall,
			F1:                   score.F1,
			Labels:               labels,
			ConfusionMatrix:      learn.ConfusionMatrix(split.YTest, pred, labels),
			ClassificationReport: learn.ClassificationReport(split.YTest, pred, labels),
		}
		for j, f := range Features {
			if j < len(importance) {
				res.FeatureImportance = append(res.FeatureImportance, FeatureWeight{Feature: f, Weight: importance[j]})
			}
		}
		a.log.Info("model trained",
			logger.String("model", name),
			logger.Float64("accuracy", res.Accuracy),
			logger.Float64("f1", res.F1),
		)
		results = append(results, res)
	}
	return results, nil
}

// towardAbnormal orients logistic coefficients so positive values push
// toward the Abnormal label.
func towardAbnormal(m *learn.LogisticRegression) []float64 {
	out := make([]float64, len(m.Coef))
	sign := 1.0
	if classes := m.Classes(); len(classes) == 2 && classes[1] != LabelAbnormal {
		sign = -1
	}
	for j, c := range m.Coef {
		out[j] = sign * c
	}
	return out
}

// PerformClustering segments the scaled matrix into three clusters ranked
// by centre mean and reports per-level event averages.
func (a *Analyzer) PerformClustering(X [][]float64, records []models.DriverRecord) (Clustering, error) {
	if len(X) != len(records) {
		return Clustering{}, learn.ErrShape
	}
	km := learn.NewKMeans(len(Levels), a.seed)
	if err := km.Fit(X); err != nil {
		return Clustering{}, fmt.Errorf("kmeans: %w", err)
	}
	silhouette, err := learn.Silhouette(X, km.Labels)
	if err != nil {
		return Clustering{}, fmt.Errorf("silhouette: %w", err)
	}

	order := make([]int, len(km.Centers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return stat.Mean(km.Centers[order[x]], nil) < stat.Mean(km.Centers[order[y]], nil)
	})
	mapping := make(map[int]string, len(order))
	for rank, c := range order {
		mapping[c] = Levels[rank]
	}

	out := Clustering{Silhouette: silhouette, Mapping: mapping}
	type acc struct{ braking, speeding, accidents, fines []float64 }
	groups := make(map[string]*acc)
	for i, label := range km.Labels {
		r := &records[i]
		level := mapping[label]
		out.Assignments = append(out.Assignments, models.ClusterAssignment{
			DriverID:     r.DriverID,
			DrivingStyle: r.DrivingStyle,
			RiskCluster:  label,
			RiskLevel:    level,
		})
		g := groups[level]
		if g == nil {
			g = &acc{}
			groups[level] = g
		}
		if r.SuddenBrakingEvents != nil {
			g.braking = append(g.braking, float64(*r.SuddenBrakingEvents))
		}
		if r.SpeedingEvents != nil {
			g.speeding = append(g.speeding, float64(*r.SpeedingEvents))
		}
		g.accidents = append(g.accidents, float64(r.PreviousAccidents))
		g.fines = append(g.fines, float64(r.TrafficFines))
	}
	for _, level := range Levels {
		g := groups[level]
		if g == nil {
			continue
		}
		out.Stats = append(out.Stats, LevelStats{
			Level:             level,
			BrakingEvents:     mean2(g.braking),
			SpeedingEvents:    mean2(g.speeding),
			PreviousAccidents: mean2(g.accidents),
			TrafficFines:      mean2(g.fines),
			Drivers:           len(g.accidents),
		})
	}
	a.log.Info("drivers segmented", logger.Float64("silhouette", silhouette))
	return out, nil
}

// Run prepares the data, trains the classifiers and clusters the drivers.
func (a *Analyzer) Run(ctx context.Context, records []models.DriverRecord) (*Report, error) {
	X, y, err := a.PrepareData(records)
	if err != nil {
		return nil, err
	}
	results, err := a.TrainClassifiers(ctx, X, y)
	if err != nil {
		return nil, err
	}
	clustering, err := a.PerformClustering(X, records)
	if err != nil {
		return nil, err
	}
	abnormal := 0
	for _, label := range y {
		if label == LabelAbnormal {
			abnormal++
		}
	}
	return &Report{
		GeneratedAt: time.Now().UTC(),
		Drivers:     len(records),
		Features:    Features,
		Abnormal:    abnormal,
		Models:      results,
		Clustering:  clustering,
	}, nil
}

func mean2(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return math.Round(stat.Mean(xs, nil)*100) / 100
}
