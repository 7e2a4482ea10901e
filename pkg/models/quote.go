package models

// PremiumQuote is the per-driver PAYD/PHYD calculation written to premium_calculations.csv.
type PremiumQuote struct {
	DriverID         int64   `json:"driver_id"`
	DrivingStyle     string  `json:"driving_style"`
	VehicleType      string  `json:"vehicle_type"`
	MonthlyKm        float64 `json:"monthly_km"`
	RiskScore        float64 `json:"risk_score"`
	BehaviorWeight   float64 `json:"behavior_weight"`
	PAYDPremium      float64 `json:"payd_premium"`
	PHYDPremium      float64 `json:"phyd_premium"`
	RecommendedModel Plan    `json:"recommended_model"`
}

func (q *PremiumQuote) Savings() float64 {
	d := q.PAYDPremium - q.PHYDPremium
	if d < 0 {
		return -d
	}
	return d
}
