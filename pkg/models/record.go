package models

import "strconv"

const (
	StyleConservative = "conservative"
	StyleModerate     = "moderate"
	StyleAggressive   = "aggressive"
)

const (
	VehicleSedan   = "sedan"
	VehicleSUV     = "suv"
	VehicleSports  = "sports"
	VehicleCompact = "compact"
)

var (
	DrivingStyles = []string{StyleConservative, StyleModerate, StyleAggressive}
	VehicleTypes  = []string{VehicleSedan, VehicleSUV, VehicleSports, VehicleCompact}
)

// DriverRecord is one month of telematics for a driver, as exchanged via CSV.
// Nil event counts mean the sensor data was missing.
type DriverRecord struct {
	DriverID            int64   `json:"driver_id"`
	Age                 int     `json:"age"`
	DrivingStyle        string  `json:"driving_style"`
	VehicleType         string  `json:"vehicle_type"`
	YearsOfExperience   int     `json:"years_of_experience"`
	LicenseNumber       string  `json:"license_number"`
	LicensePlate        string  `json:"license_plate"`
	TotalKm             float64 `json:"total_km"`
	SuddenBrakingEvents *int    `json:"sudden_braking_events"`
	SpeedingEvents      *int    `json:"speeding_events"`
	PreviousAccidents   int     `json:"previous_accidents"`
	TrafficFines        int     `json:"traffic_fines"`
	DataDate            string  `json:"data_date"`
}

// DriverKey is the account-side identifier for the record.
func (r *DriverRecord) DriverKey() string {
	return strconv.FormatInt(r.DriverID, 10)
}

// MonthlyKm is the dashboard's monthly average (total spread over twelve months).
func (r *DriverRecord) MonthlyKm() float64 {
	return r.TotalKm / 12
}

// RiskRecord is a DriverRecord enriched by the clustering stage.
type RiskRecord struct {
	DriverRecord
	RiskCluster            int      `json:"risk_cluster"`
	RiskCategory           string   `json:"risk_category"`
	BrakingRisk            *float64 `json:"braking_risk"`
	SpeedingRisk           *float64 `json:"speeding_risk"`
	ExperienceFactor       float64  `json:"experience_factor"`
	ComprehensiveRiskScore *float64 `json:"comprehensive_risk_score"`
}

// ClusterAssignment is a driver's place in the behaviour clustering.
type ClusterAssignment struct {
	DriverID     int64  `json:"driver_id"`
	DrivingStyle string `json:"driving_style"`
	RiskCluster  int    `json:"risk_cluster"`
	RiskLevel    string `json:"risk_level"`
}

func IntPtr(v int) *int { return &v }

func Float64Ptr(v float64) *float64 { return &v }
