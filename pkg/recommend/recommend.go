// Package recommend scores a driver for the dashboard and suggests the
// best suited insurance plan.
package recommend

import (
	"math"
	"time"

	"telematics/pkg/models"
)

type factor struct {
	key    string
	label  string
	weight float64
	norm   float64
	value  func(r *models.DriverRecord) *float64
}

func intValue(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

var factors = []factor{
	{"sudden_braking_events", "Sudden Braking", 0.25, 100, func(r *models.DriverRecord) *float64 { return intValue(r.SuddenBrakingEvents) }},
	{"speeding_events", "Speeding", 0.25, 100, func(r *models.DriverRecord) *float64 { return intValue(r.SpeedingEvents) }},
	{"previous_accidents", "Accidents", 0.3, 3, func(r *models.DriverRecord) *float64 { return intValue(&r.PreviousAccidents) }},
	{"traffic_fines", "Traffic Fines", 0.2, 3, func(r *models.DriverRecord) *float64 { return intValue(&r.TrafficFines) }},
}

// RiskScore is in [0,1]. Missing factors contribute nothing.
func RiskScore(r *models.DriverRecord) float64 {
	score := 0.0
	for _, f := range factors {
		if v := f.value(r); v != nil {
			score += math.Min(*v/f.norm, 1) * f.weight
		}
	}
	return score
}

var planFeatures = map[models.Plan][]string{
	models.PlanPAYD: {
		"Pay based on actual kilometers driven",
		"Lower premiums for less driving",
		"Ideal for occasional drivers",
		"Monthly distance tracking",
		"Flexible payment options",
	},
	models.PlanPHYD: {
		"Premium based on driving behavior",
		"Rewards for safe driving habits",
		"Real-time feedback on driving patterns",
		"Monthly behavior assessment",
		"Personalized driving tips",
	},
	models.PlanMHYD: {
		"Active risk management",
		"Intensive driving behavior monitoring",
		"Regular safety coaching",
		"Incident alerts and analysis",
		"Mandatory safety workshops",
	},
}

type Recommendation struct {
	Plan     models.Plan `json:"plan"`
	Name     string      `json:"name"`
	Features []string    `json:"features"`
}

func Recommend(score float64) Recommendation {
	plan := models.PlanMHYD
	switch {
	case score < 0.3:
		plan = models.PlanPAYD
	case score < 0.6:
		plan = models.PlanPHYD
	}
	return Recommendation{Plan: plan, Name: plan.DisplayName(), Features: planFeatures[plan]}
}

// PlanScore pairs a plan with a percentage or amount.
type PlanScore struct {
	Plan  models.Plan `json:"plan"`
	Name  string      `json:"name"`
	Value float64     `json:"value"`
}

var styleModifiers = map[string][3]float64{
	models.StyleConservative: {1.1, 1.2, 0.8},
	models.StyleModerate:     {1, 1, 1},
	models.StyleAggressive:   {0.8, 0.8, 1.2},
}

// Suitability rates every plan from 0 to 100 for the driver.
func Suitability(score, monthlyKm float64, style string) []PlanScore {
	mod, ok := styleModifiers[style]
	if !ok {
		mod = [3]float64{1, 1, 1}
	}
	payd := math.Max(math.Min((1-monthlyKm/3000)*100, 100), 0)
	raw := [3]float64{payd, (1 - score) * 100, score * 100}

	out := make([]PlanScore, len(models.Plans))
	for i, p := range models.Plans {
		out[i] = PlanScore{Plan: p, Name: p.DisplayName(), Value: math.Min(raw[i]*mod[i], 100)}
	}
	return out
}

const monthlyBasePremium = 5000

type CostLine struct {
	Plan    models.Plan `json:"plan"`
	Name    string      `json:"name"`
	Premium float64     `json:"premium"`
	Savings float64     `json:"savings"`
}

// CostBenefit estimates monthly premiums per plan against a flat base.
func CostBenefit(totalKm, score float64) []CostLine {
	monthly := totalKm / 12
	premiums := [3]float64{
		monthlyBasePremium * (0.7 + monthly/1000*0.1),
		monthlyBasePremium * (0.8 + score*0.4),
		monthlyBasePremium * (0.9 + score*0.6),
	}
	out := make([]CostLine, len(models.Plans))
	for i, p := range models.Plans {
		out[i] = CostLine{Plan: p, Name: p.DisplayName(), Premium: premiums[i], Savings: monthlyBasePremium - premiums[i]}
	}
	return out
}

type BreakdownItem struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Raw      float64 `json:"raw_value"`
}

// ScoreBreakdown lists each present factor as a percentage of its cap.
func ScoreBreakdown(r *models.DriverRecord) []BreakdownItem {
	var out []BreakdownItem
	for _, f := range factors {
		if v := f.value(r); v != nil {
			out = append(out, BreakdownItem{Category: f.label, Score: math.Min(*v/f.norm, 1) * 100, Raw: *v})
		}
	}
	return out
}

type PatternPoint struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// DrivingPattern gives the radar chart values. Unlike ScoreBreakdown they
// are not capped and missing factors show as 0.
func DrivingPattern(r *models.DriverRecord) []PatternPoint {
	labels := []string{"Sudden Braking", "Speeding", "Accidents", "Fines"}
	out := make([]PatternPoint, len(factors))
	for i, f := range factors {
		v := 0.0
		if p := f.value(r); p != nil {
			v = *p / f.norm
		}
		out[i] = PatternPoint{Category: labels[i], Value: v}
	}
	return out
}

type ComparisonRow struct {
	Feature string   `json:"feature"`
	Values  []string `json:"values"`
}

// Comparison is the static plan feature table, values ordered as models.Plans.
func Comparison() []ComparisonRow {
	return []ComparisonRow{
		{"Premium Calculation", []string{"Distance Based", "Behavior Based", "Risk Based"}},
		{"Main Focus", []string{"Usage Amount", "Driving Quality", "Risk Management"}},
		{"Monitoring Level", []string{"Basic", "Moderate", "Intensive"}},
		{"Feedback Frequency", []string{"Monthly", "Weekly", "Daily"}},
		{"Risk Assessment", []string{"Distance-focused", "Pattern Analysis", "Comprehensive"}},
		{"Reward System", []string{"Low-mileage Discounts", "Safe Driving Bonuses", "Improvement Rewards"}},
	}
}

func UsageHint(monthlyKm float64) string {
	switch {
	case monthlyKm < 1000:
		return "Low monthly usage suggests Pay-As-You-Drive might be cost-effective"
	case monthlyKm > 2000:
		return "High monthly usage suggests focusing on driving behavior for better rates"
	}
	return ""
}

func StyleHint(style string) string {
	switch style {
	case models.StyleConservative:
		return "Conservative driving style is ideal for Pay-How-You-Drive benefits"
	case models.StyleAggressive:
		return "Aggressive driving style might benefit from Manage-How-You-Drive coaching"
	}
	return ""
}

// EnrollmentNote is shown after a plan has been selected.
func EnrollmentNote(p models.Plan) string {
	switch p {
	case models.PlanPAYD:
		return "Download our app to start tracking your mileage"
	case models.PlanPHYD:
		return "Your driving behavior monitoring will begin within 24 hours"
	}
	return "We'll contact you to schedule your first driving assessment"
}

type Metric struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Status string  `json:"status"`
}

type Status struct {
	Plan        *models.Plan `json:"plan"`
	PlanName    string       `json:"plan_name,omitempty"`
	Locked      bool         `json:"locked"`
	LockedUntil *time.Time   `json:"locked_until,omitempty"`
	Metric      *Metric      `json:"metric,omitempty"`
}

func orZero(v *int) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

// PlanStatus reports the current plan, its lock and the plan's headline metric.
func PlanStatus(d *models.Driver, r *models.DriverRecord, now time.Time) Status {
	var s Status
	if d == nil || d.SelectedPlan == nil {
		return s
	}
	s.Plan = d.SelectedPlan
	s.PlanName = d.SelectedPlan.DisplayName()
	if d.PlanLocked(now) {
		s.Locked = true
		s.LockedUntil = d.PlanLockedUntil
	}
	if r == nil {
		return s
	}
	switch *d.SelectedPlan {
	case models.PlanPAYD:
		s.Metric = &Metric{Label: "Monthly Distance", Value: r.MonthlyKm(), Unit: "km", Status: "Tracked"}
	case models.PlanPHYD:
		safe := 100 - (orZero(r.SuddenBrakingEvents)+orZero(r.SpeedingEvents))/2
		s.Metric = &Metric{Label: "Safe Driving Score", Value: safe, Unit: "%", Status: "Monitored"}
	default:
		events := orZero(r.SuddenBrakingEvents) + orZero(r.SpeedingEvents) +
			float64(r.PreviousAccidents)*10 + float64(r.TrafficFines)*5
		s.Metric = &Metric{Label: "Risk Events", Value: events, Status: "Monitored"}
	}
	return s
}

// View is everything the recommendations page renders.
type View struct {
	Driver         *models.Driver       `json:"driver"`
	Record         *models.DriverRecord `json:"record"`
	RiskScore      float64              `json:"risk_score"`
	MonthlyKm      float64              `json:"monthly_km"`
	Recommendation Recommendation       `json:"recommendation"`
	Suitability    []PlanScore          `json:"suitability"`
	CostBenefit    []CostLine           `json:"cost_benefit"`
	Breakdown      []BreakdownItem      `json:"score_breakdown"`
	Pattern        []PatternPoint       `json:"driving_pattern"`
	Comparison     []ComparisonRow      `json:"comparison"`
	UsageHint      string               `json:"usage_hint,omitempty"`
	StyleHint      string               `json:"style_hint,omitempty"`
	Status         Status               `json:"status"`
}

// Build assembles the view. A nil record yields a view with only the
// account and status filled in.
func Build(details models.DriverDetails, now time.Time) View {
	v := View{Driver: details.Driver, Record: details.Record, Comparison: Comparison()}
	v.Status = PlanStatus(details.Driver, details.Record, now)
	r := details.Record
	if r == nil {
		return v
	}
	v.RiskScore = RiskScore(r)
	v.MonthlyKm = r.MonthlyKm()
	v.Recommendation = Recommend(v.RiskScore)
	v.Suitability = Suitability(v.RiskScore, v.MonthlyKm, r.DrivingStyle)
	v.CostBenefit = CostBenefit(r.TotalKm, v.RiskScore)
	v.Breakdown = ScoreBreakdown(r)
	v.Pattern = DrivingPattern(r)
	v.UsageHint = UsageHint(v.MonthlyKm)
	v.StyleHint = StyleHint(r.DrivingStyle)
	return v
}
