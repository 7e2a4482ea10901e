package generator

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"telematics/pkg/models"
)

type StyleMeans struct {
	Style               string  `json:"driving_style"`
	TotalKm             float64 `json:"total_km"`
	SuddenBrakingEvents float64 `json:"sudden_braking_events"`
	SpeedingEvents      float64 `json:"speeding_events"`
	TrafficFines        float64 `json:"traffic_fines"`
}

// Distribution summarises a generated dataset.
type Distribution struct {
	StyleShare    map[string]float64 `json:"style_share"`
	VehicleShare  map[string]float64 `json:"vehicle_share"`
	MeansByStyle  []StyleMeans       `json:"means_by_style"`
	MissingValues map[string]int     `json:"missing_values"`
}

func Summarize(records []models.DriverRecord) Distribution {
	d := Distribution{
		StyleShare:    make(map[string]float64),
		VehicleShare:  make(map[string]float64),
		MissingValues: map[string]int{"sudden_braking_events": 0, "speeding_events": 0},
	}
	if len(records) == 0 {
		return d
	}

	n := float64(len(records))
	byStyle := make(map[string][]models.DriverRecord)
	for _, r := range records {
		d.StyleShare[r.DrivingStyle] += 100 / n
		d.VehicleShare[r.VehicleType] += 100 / n
		byStyle[r.DrivingStyle] = append(byStyle[r.DrivingStyle], r)
		if r.SuddenBrakingEvents == nil {
			d.MissingValues["sudden_braking_events"]++
		}
		if r.SpeedingEvents == nil {
			d.MissingValues["speeding_events"]++
		}
	}

	styles := make([]string, 0, len(byStyle))
	for s := range byStyle {
		styles = append(styles, s)
	}
	sort.Strings(styles)

	for _, s := range styles {
		var km, braking, speeding, fines []float64
		for _, r := range byStyle[s] {
			km = append(km, r.TotalKm)
			fines = append(fines, float64(r.TrafficFines))
			if r.SuddenBrakingEvents != nil {
				braking = append(braking, float64(*r.SuddenBrakingEvents))
			}
			if r.SpeedingEvents != nil {
				speeding = append(speeding, float64(*r.SpeedingEvents))
			}
		}
		d.MeansByStyle = append(d.MeansByStyle, StyleMeans{
			Style:               s,
			TotalKm:             mean(km),
			SuddenBrakingEvents: mean(braking),
			SpeedingEvents:      mean(speeding),
			TrafficFines:        mean(fines),
		})
	}
	return d
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
