// Package risk clusters drivers into Low/Moderate/High groups and derives
// per-driver risk metrics.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"telematics/pkg/learn"
	"telematics/pkg/logger"
	"telematics/pkg/models"
)

const (
	CategoryLow      = "Low"
	CategoryModerate = "Moderate"
	CategoryHigh     = "High"
)

// Categories in ascending risk order.
var Categories = []string{CategoryLow, CategoryModerate, CategoryHigh}

var Features = []string{
	"sudden_braking_events", "speeding_events", "previous_accidents", "traffic_fines", "total_km",
}

var ErrClusterCount = errors.New("cluster count must be between 1 and 3")

type Analyzer struct {
	log     logger.ILogger
	seed    uint64
	records []models.RiskRecord
	kmeans  *learn.KMeans
}

func NewAnalyzer(records []models.DriverRecord, seed uint64, log logger.ILogger) *Analyzer {
	rr := make([]models.RiskRecord, len(records))
	for i := range records {
		rr[i].DriverRecord = records[i]
	}
	return &Analyzer{log: log, seed: seed, records: rr}
}

// Records returns the enriched rows in input order.
func (a *Analyzer) Records() []models.RiskRecord { return a.records }

func optional(v *int) float64 {
	if v == nil {
		return math.NaN()
	}
	return float64(*v)
}

// Preprocess builds the mean-imputed, standardised feature matrix.
func (a *Analyzer) Preprocess() ([][]float64, error) {
	X := make([][]float64, len(a.records))
	for i := range a.records {
		r := &a.records[i]
		X[i] = []float64{
			optional(r.SuddenBrakingEvents),
			optional(r.SpeedingEvents),
			float64(r.PreviousAccidents),
			float64(r.TrafficFines),
			r.TotalKm,
		}
	}
	var imputer learn.MeanImputer
	X, err := imputer.FitTransform(X)
	if err != nil {
		return nil, fmt.Errorf("impute: %w", err)
	}
	var scaler learn.StandardScaler
	X, err = scaler.FitTransform(X)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	return X, nil
}

// ClusterDrivers runs k-means on the preprocessed features and names the
// clusters by the mean of their centroid, lowest first.
func (a *Analyzer) ClusterDrivers(k int) error {
	if k < 1 || k > len(Categories) {
		return ErrClusterCount
	}
	X, err := a.Preprocess()
	if err != nil {
		return err
	}
	km := learn.NewKMeans(k, a.seed)
	if err := km.Fit(X); err != nil {
		return fmt.Errorf("kmeans: %w", err)
	}
	a.kmeans = km

	names := CategoryNames(km.Centers)
	for i, label := range km.Labels {
		a.records[i].RiskCluster = label
		a.records[i].RiskCategory = names[label]
	}
	a.log.Info("drivers clustered", logger.Int("drivers", len(X)), logger.Int("clusters", k), logger.Float64("inertia", km.Inertia))
	return nil
}

// CategoryNames maps cluster index to category by ascending centroid mean.
func CategoryNames(centers [][]float64) map[int]string {
	order := make([]int, len(centers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return stat.Mean(centers[order[x]], nil) < stat.Mean(centers[order[y]], nil)
	})
	names := make(map[int]string, len(centers))
	for rank, c := range order {
		if rank < len(Categories) {
			names[c] = Categories[rank]
		}
	}
	return names
}

// CalculateRiskMetrics fills the per-1000km rates, the experience factor
// and the comprehensive score. Rates are missing when the event count is
// missing or total_km is not positive.
func (a *Analyzer) CalculateRiskMetrics() {
	maxYears := 0
	for i := range a.records {
		maxYears = max(maxYears, a.records[i].YearsOfExperience)
	}
	for i := range a.records {
		r := &a.records[i]
		r.BrakingRisk = perThousand(r.SuddenBrakingEvents, r.TotalKm)
		r.SpeedingRisk = perThousand(r.SpeedingEvents, r.TotalKm)
		r.ExperienceFactor = 0
		if maxYears > 0 {
			r.ExperienceFactor = 1 - float64(r.YearsOfExperience)/float64(maxYears)
		}
		r.ComprehensiveRiskScore = nil
		if r.BrakingRisk != nil && r.SpeedingRisk != nil {
			score := *r.BrakingRisk*0.25 + *r.SpeedingRisk*0.25 +
				float64(r.PreviousAccidents)*0.3 + r.ExperienceFactor*0.2
			r.ComprehensiveRiskScore = &score
		}
	}
}

func perThousand(events *int, totalKm float64) *float64 {
	if events == nil || totalKm <= 0 {
		return nil
	}
	v := float64(*events) / totalKm * 1000
	return &v
}

type CategorySummary struct {
	Category      string  `json:"risk_category"`
	MeanScore     float64 `json:"comprehensive_risk_score_mean"`
	ScoredDrivers int     `json:"comprehensive_risk_score_count"`
	MeanAccidents float64 `json:"previous_accidents_mean"`
	MeanTotalKm   float64 `json:"total_km_mean"`
	Drivers       int     `json:"drivers"`
}

// Summary groups the enriched rows by category, ordered Low to High.
// Categories without drivers are omitted.
func (a *Analyzer) Summary() []CategorySummary {
	var out []CategorySummary
	for _, cat := range Categories {
		var scores, accidents, km []float64
		for i := range a.records {
			r := &a.records[i]
			if r.RiskCategory != cat {
				continue
			}
			if r.ComprehensiveRiskScore != nil {
				scores = append(scores, *r.ComprehensiveRiskScore)
			}
			accidents = append(accidents, float64(r.PreviousAccidents))
			km = append(km, r.TotalKm)
		}
		if len(km) == 0 {
			continue
		}
		s := CategorySummary{
			Category:      cat,
			ScoredDrivers: len(scores),
			MeanAccidents: round2(stat.Mean(accidents, nil)),
			MeanTotalKm:   round2(stat.Mean(km, nil)),
			Drivers:       len(km),
		}
		if len(scores) > 0 {
			s.MeanScore = round2(stat.Mean(scores, nil))
		}
		out = append(out, s)
	}
	return out
}

// Run clusters with k clusters and then computes the metrics.
func (a *Analyzer) Run(k int) ([]models.RiskRecord, error) {
	if err := a.ClusterDrivers(k); err != nil {
		return nil, err
	}
	a.CalculateRiskMetrics()
	return a.records, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
