// Package insurance prices drivers under the Pay-As-You-Drive and
// Pay-How-You-Drive plans.
package insurance

import (
	"errors"
	"fmt"
	"math"

	"telematics/pkg/models"
)

// BasePremiums are annual premiums in rupees per vehicle type.
var BasePremiums = map[string]float64{
	models.VehicleSedan:   25000,
	models.VehicleSUV:     30000,
	models.VehicleSports:  40000,
	models.VehicleCompact: 20000,
}

type bracket struct {
	limit       float64
	factor      float64
	description string
}

var distanceBrackets = []bracket{
	{500, 0.7, "Very Low Usage"},
	{1000, 0.85, "Low Usage"},
	{1500, 1.0, "Average Usage"},
	{2000, 1.2, "High Usage"},
	{math.Inf(1), 1.4, "Very High Usage"},
}

// median event counts substituted when a record lacks sensor data
var (
	brakingMedians  = map[string]float64{models.StyleConservative: 1.25, models.StyleModerate: 2.75}
	speedingMedians = map[string]float64{models.StyleConservative: 0.9, models.StyleModerate: 2.0}
)

const (
	brakingMedianDefault  = 5.0
	speedingMedianDefault = 4.25
)

var styleAdjustments = map[string]float64{
	models.StyleConservative: -0.2,
	models.StyleModerate:     0,
	models.StyleAggressive:   0.3,
}

type DistanceInfo struct {
	MonthlyKm   float64 `json:"monthly_km"`
	Description string  `json:"bracket_description"`
	Factor      float64 `json:"distance_factor"`
}

type RiskScores struct {
	Braking  float64 `json:"braking_risk"`
	Speeding float64 `json:"speeding_risk"`
	Accident float64 `json:"accident_risk"`
	Fine     float64 `json:"fine_risk"`
	Total    float64 `json:"total_risk_score"`
}

// Breakdown is the full pricing of one driver.
type Breakdown struct {
	DriverID       int64        `json:"driver_id"`
	BasePremium    float64      `json:"base_premium"`
	Distance       DistanceInfo `json:"distance_info"`
	Risk           RiskScores   `json:"risk_scores"`
	BehaviorWeight float64      `json:"behavior_weight"`
	PAYDPremium    float64      `json:"payd_premium"`
	PHYDPremium    float64      `json:"phyd_premium"`
}

// Quote flattens the breakdown into the row persisted per driver.
func (b Breakdown) Quote(r *models.DriverRecord) models.PremiumQuote {
	recommended := models.PlanPHYD
	if b.PAYDPremium < b.PHYDPremium {
		recommended = models.PlanPAYD
	}
	return models.PremiumQuote{
		DriverID:         r.DriverID,
		DrivingStyle:     r.DrivingStyle,
		VehicleType:      r.VehicleType,
		MonthlyKm:        b.Distance.MonthlyKm,
		RiskScore:        b.Risk.Total,
		BehaviorWeight:   b.BehaviorWeight,
		PAYDPremium:      b.PAYDPremium,
		PHYDPremium:      b.PHYDPremium,
		RecommendedModel: recommended,
	}
}

// DistanceFactor spreads total_km over 30 and places it in a usage bracket.
func DistanceFactor(totalKm float64) DistanceInfo {
	monthly := totalKm / 30
	for _, b := range distanceBrackets {
		if monthly <= b.limit {
			return DistanceInfo{MonthlyKm: round2(monthly), Description: b.description, Factor: b.factor}
		}
	}
	last := distanceBrackets[len(distanceBrackets)-1]
	return DistanceInfo{MonthlyKm: round2(monthly), Description: last.description, Factor: last.factor}
}

func RiskScore(r *models.DriverRecord) RiskScores {
	kmFactor := 0.0
	if r.TotalKm > 0 {
		kmFactor = 100 / r.TotalKm
	}

	braking, ok := brakingMedians[r.DrivingStyle]
	if !ok {
		braking = brakingMedianDefault
	}
	if r.SuddenBrakingEvents != nil {
		braking = float64(*r.SuddenBrakingEvents)
	}
	speeding, ok := speedingMedians[r.DrivingStyle]
	if !ok {
		speeding = speedingMedianDefault
	}
	if r.SpeedingEvents != nil {
		speeding = float64(*r.SpeedingEvents)
	}

	b := math.Min(2, braking*kmFactor/5)
	s := math.Min(2, speeding*kmFactor/5)
	a := math.Min(2, float64(r.PreviousAccidents)*0.67)
	f := math.Min(2, float64(r.TrafficFines)*0.5)
	total := b*0.3 + s*0.3 + a*0.25 + f*0.15

	return RiskScores{
		Braking:  round2(b),
		Speeding: round2(s),
		Accident: round2(a),
		Fine:     round2(f),
		Total:    round2(total),
	}
}

func BehaviorWeight(r *models.DriverRecord, risk RiskScores) float64 {
	w := 1.0 + styleAdjustments[r.DrivingStyle]

	switch {
	case r.YearsOfExperience < 3:
		w += 0.2
	case r.YearsOfExperience < 10:
		w += 0.1
	}
	switch {
	case r.Age < 25:
		w += 0.2
	case r.Age > 65:
		w += 0.1
	}
	w += (risk.Total - 1) * 0.2

	return round2(math.Max(0.6, math.Min(1.8, w)))
}

// ErrUnknownVehicle is returned for a vehicle type without a base premium.
var ErrUnknownVehicle = errors.New("unknown vehicle type")

func CalculatePremiums(r *models.DriverRecord) (Breakdown, error) {
	base, ok := BasePremiums[r.VehicleType]
	if !ok {
		return Breakdown{}, fmt.Errorf("%w %q", ErrUnknownVehicle, r.VehicleType)
	}
	distance := DistanceFactor(r.TotalKm)
	risk := RiskScore(r)
	weight := BehaviorWeight(r, risk)
	return Breakdown{
		DriverID:       r.DriverID,
		BasePremium:    base,
		Distance:       distance,
		Risk:           risk,
		BehaviorWeight: weight,
		PAYDPremium:    round2(base * distance.Factor),
		PHYDPremium:    round2(base * weight),
	}, nil
}

// Quote prices a single record.
func Quote(r *models.DriverRecord) (models.PremiumQuote, error) {
	b, err := CalculatePremiums(r)
	if err != nil {
		return models.PremiumQuote{}, err
	}
	return b.Quote(r), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
