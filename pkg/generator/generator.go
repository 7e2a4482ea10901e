// Package generator produces synthetic monthly telematics for a fleet of drivers.
package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"telematics/pkg/models"
)

type rangeF struct{ min, max float64 }

// StyleProfile holds the per-style ranges the monthly metrics are drawn from.
// Braking and speeding rates are events per 100 km; fines are per month.
type StyleProfile struct {
	DailyKm      rangeF
	BrakingRate  rangeF
	SpeedingRate rangeF
	AccidentProb [4]float64
	FineRate     rangeF
}

var Profiles = map[string]StyleProfile{
	models.StyleConservative: {
		DailyKm:      rangeF{20, 50},
		BrakingRate:  rangeF{0.5, 2},
		SpeedingRate: rangeF{0.3, 1.5},
		AccidentProb: [4]float64{0.85, 0.12, 0.03, 0},
		FineRate:     rangeF{0.1, 0.5},
	},
	models.StyleModerate: {
		DailyKm:      rangeF{30, 70},
		BrakingRate:  rangeF{1.5, 4},
		SpeedingRate: rangeF{1, 3},
		AccidentProb: [4]float64{0.75, 0.18, 0.05, 0.02},
		FineRate:     rangeF{0.3, 1.0},
	},
	models.StyleAggressive: {
		DailyKm:      rangeF{40, 90},
		BrakingRate:  rangeF{3, 7},
		SpeedingRate: rangeF{2.5, 6},
		AccidentProb: [4]float64{0.65, 0.25, 0.07, 0.03},
		FineRate:     rangeF{0.5, 2.0},
	},
}

const missingProb = 0.05

// keySpace enumerates the values of a unique driver key.
type keySpace struct {
	size int
	at   func(i int) string
}

var (
	licenseNumbers = keySpace{900000, func(i int) string { return fmt.Sprintf("DL%d", 100000+i) }}
	licensePlates  = keySpace{90 * 9000, func(i int) string { return fmt.Sprintf("KA%dM%d", 10+i/9000, 1000+i%9000) }}
)

// MaxDrivers is the largest fleet for which every driver gets a distinct
// licence number and plate.
var MaxDrivers = min(licenseNumbers.size, licensePlates.size)

// maxDraws bounds the random attempts before unique falls back to a scan.
const maxDraws = 64

var (
	ErrDriverCount       = errors.New("invalid number of drivers")
	ErrKeySpaceExhausted = errors.New("no unused key left")
)

type Generator struct {
	NumDrivers int
	Days       int
	Now        func() time.Time

	rng  *rand.Rand
	seen map[string]struct{}
}

func New(numDrivers, days int, seed uint64) *Generator {
	if days <= 0 {
		days = 30
	}
	return &Generator{
		NumDrivers: numDrivers,
		Days:       days,
		Now:        time.Now,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seen:       make(map[string]struct{}),
	}
}

// Profile is the static part of a driver: demographics, vehicle and licence.
type Profile struct {
	Age               int
	DrivingStyle      string
	VehicleType       string
	YearsOfExperience int
	LicenseNumber     string
	LicensePlate      string
}

func (g *Generator) profile() (Profile, error) {
	age := 18 + g.rng.IntN(52)

	var styleProbs []float64
	switch {
	case age < 25:
		styleProbs = []float64{0.2, 0.5, 0.3}
	case age > 60:
		styleProbs = []float64{0.4, 0.5, 0.1}
	default:
		styleProbs = []float64{0.3, 0.5, 0.2}
	}
	style := models.DrivingStyles[g.choice(styleProbs)]

	var vehicleProbs []float64
	switch {
	case style == models.StyleAggressive:
		vehicleProbs = []float64{0.3, 0.3, 0.3, 0.1}
	case age > 50:
		vehicleProbs = []float64{0.5, 0.3, 0.05, 0.15}
	default:
		vehicleProbs = []float64{0.4, 0.3, 0.1, 0.2}
	}
	vehicle := models.VehicleTypes[g.choice(vehicleProbs)]

	number, err := g.unique(licenseNumbers)
	if err != nil {
		return Profile{}, fmt.Errorf("licence number: %w", err)
	}
	plate, err := g.unique(licensePlates)
	if err != nil {
		return Profile{}, fmt.Errorf("licence plate: %w", err)
	}
	return Profile{
		Age:               age,
		DrivingStyle:      style,
		VehicleType:       vehicle,
		YearsOfExperience: max(1, age-18),
		LicenseNumber:     number,
		LicensePlate:      plate,
	}, nil
}

// Metrics is one month of driving for a profile.
type Metrics struct {
	TotalKm             float64
	SuddenBrakingEvents *int
	SpeedingEvents      *int
	PreviousAccidents   int
	TrafficFines        int
}

func (g *Generator) metrics(p Profile) Metrics {
	sp := Profiles[p.DrivingStyle]

	totalKm := g.uniform(sp.DailyKm.min*30, sp.DailyKm.max*30)
	brakingRate := g.uniform(sp.BrakingRate.min, sp.BrakingRate.max)
	speedingRate := g.uniform(sp.SpeedingRate.min, sp.SpeedingRate.max)

	braking := int(totalKm * brakingRate / 100)
	speeding := int(totalKm * speedingRate / 100)
	accidents := g.choice(sp.AccidentProb[:])
	fines := int(g.uniform(sp.FineRate.min, sp.FineRate.max))

	m := Metrics{
		TotalKm:             math.Round(totalKm*100) / 100,
		SuddenBrakingEvents: &braking,
		SpeedingEvents:      &speeding,
		PreviousAccidents:   accidents,
		TrafficFines:        fines,
	}
	if g.rng.Float64() < missingProb {
		m.SuddenBrakingEvents = nil
	}
	if g.rng.Float64() < missingProb {
		m.SpeedingEvents = nil
	}
	return m
}

// Generate builds records for driver ids 1..NumDrivers.
func (g *Generator) Generate() ([]models.DriverRecord, error) {
	if g.NumDrivers <= 0 || g.NumDrivers > MaxDrivers {
		return nil, fmt.Errorf("%w: %d (want 1..%d)", ErrDriverCount, g.NumDrivers, MaxDrivers)
	}
	date := g.Now().Format("2006-01-02")
	records := make([]models.DriverRecord, 0, g.NumDrivers)
	for id := 1; id <= g.NumDrivers; id++ {
		p, err := g.profile()
		if err != nil {
			return nil, err
		}
		m := g.metrics(p)
		records = append(records, models.DriverRecord{
			DriverID:            int64(id),
			Age:                 p.Age,
			DrivingStyle:        p.DrivingStyle,
			VehicleType:         p.VehicleType,
			YearsOfExperience:   p.YearsOfExperience,
			LicenseNumber:       p.LicenseNumber,
			LicensePlate:        p.LicensePlate,
			TotalKm:             m.TotalKm,
			SuddenBrakingEvents: m.SuddenBrakingEvents,
			SpeedingEvents:      m.SpeedingEvents,
			PreviousAccidents:   m.PreviousAccidents,
			TrafficFines:        m.TrafficFines,
			DataDate:            date,
		})
	}
	return records, nil
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// choice draws an index according to probs (which sum to 1).
func (g *Generator) choice(probs []float64) int {
	x := g.rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if x < acc {
			return i
		}
	}
	for i := len(probs) - 1; i >= 0; i-- {
		if probs[i] > 0 {
			return i
		}
	}
	return 0
}

// unique hands out a value of the key space that has not been used before;
// licence numbers and plates are unique keys in the driver table.
func (g *Generator) unique(ks keySpace) (string, error) {
	for range maxDraws {
		if v := ks.at(g.rng.IntN(ks.size)); g.claim(v) {
			return v, nil
		}
	}
	start := g.rng.IntN(ks.size)
	for i := range ks.size {
		if v := ks.at((start + i) % ks.size); g.claim(v) {
			return v, nil
		}
	}
	return "", ErrKeySpaceExhausted
}

func (g *Generator) claim(v string) bool {
	if _, ok := g.seen[v]; ok {
		return false
	}
	g.seen[v] = struct{}{}
	return true
}
