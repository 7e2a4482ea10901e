// Package csvio reads and writes the pipeline's CSV interchange files.
// Empty cells stand for missing values.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"telematics/pkg/models"
)

var ErrMissingColumn = errors.New("missing column")

var DriverColumns = []string{
	"driver_id", "age", "driving_style", "vehicle_type", "years_of_experience",
	"license_number", "license_plate", "total_km", "sudden_braking_events",
	"speeding_events", "previous_accidents", "traffic_fines", "data_date",
}

var RiskColumns = append(append([]string{}, DriverColumns...),
	"risk_cluster", "risk_category", "braking_risk", "speeding_risk",
	"experience_factor", "comprehensive_risk_score",
)

var QuoteColumns = []string{
	"driver_id", "driving_style", "vehicle_type", "monthly_km", "risk_score",
	"behavior_weight", "payd_premium", "phyd_premium", "recommended_model",
}

var ClusterColumns = []string{"driver_id", "driving_style", "risk_cluster", "risk_level"}

// row gives header-keyed access to a CSV record.
type row struct {
	index  map[string]int
	fields []string
	line   int
}

func (r row) str(col string) (string, error) {
	i, ok := r.index[col]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrMissingColumn, col)
	}
	if i >= len(r.fields) {
		return "", nil
	}
	return strings.TrimSpace(r.fields[i]), nil
}

func (r row) float(col string) (float64, error) {
	s, err := r.str(col)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, fmt.Errorf("line %d: %s is empty", r.line, col)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", r.line, col, err)
	}
	return v, nil
}

func (r row) int(col string) (int, error) {
	v, err := r.float(col)
	return int(v), err
}

func (r row) optFloat(col string) (*float64, error) {
	s, err := r.str(col)
	if err != nil {
		return nil, err
	}
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: %s: %w", r.line, col, err)
	}
	return &v, nil
}

func (r row) optInt(col string) (*int, error) {
	v, err := r.optFloat(col)
	if err != nil || v == nil {
		return nil, err
	}
	i := int(*v)
	return &i, nil
}

func readRows(rd io.Reader, fn func(row) error) error {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	line := 1
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line++
		if err := fn(row{index: index, fields: fields, line: line}); err != nil {
			return err
		}
	}
}

func parseDriver(r row) (models.DriverRecord, error) {
	var (
		rec models.DriverRecord
		err error
		id  float64
	)
	if id, err = r.float("driver_id"); err != nil {
		return rec, err
	}
	rec.DriverID = int64(id)
	if rec.Age, err = r.int("age"); err != nil {
		return rec, err
	}
	if rec.DrivingStyle, err = r.str("driving_style"); err != nil {
		return rec, err
	}
	if rec.VehicleType, err = r.str("vehicle_type"); err != nil {
		return rec, err
	}
	if rec.YearsOfExperience, err = r.int("years_of_experience"); err != nil {
		return rec, err
	}
	if rec.LicenseNumber, err = r.str("license_number"); err != nil {
		return rec, err
	}
	if rec.LicensePlate, err = r.str("license_plate"); err != nil {
		return rec, err
	}
	if rec.TotalKm, err = r.float("total_km"); err != nil {
		return rec, err
	}
	if rec.SuddenBrakingEvents, err = r.optInt("sudden_braking_events"); err != nil {
		return rec, err
	}
	if rec.SpeedingEvents, err = r.optInt("speeding_events"); err != nil {
		return rec, err
	}
	if rec.PreviousAccidents, err = r.int("previous_accidents"); err != nil {
		return rec, err
	}
	if rec.TrafficFines, err = r.int("traffic_fines"); err != nil {
		return rec, err
	}
	if rec.DataDate, err = r.str("data_date"); err != nil {
		return rec, err
	}
	return rec, nil
}

func ReadDrivers(rd io.Reader) ([]models.DriverRecord, error) {
	var out []models.DriverRecord
	err := readRows(rd, func(r row) error {
		rec, err := parseDriver(r)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func ReadRisk(rd io.Reader) ([]models.RiskRecord, error) {
	var out []models.RiskRecord
	err := readRows(rd, func(r row) error {
		base, err := parseDriver(r)
		if err != nil {
			return err
		}
		rec := models.RiskRecord{DriverRecord: base}
		if rec.RiskCluster, err = r.int("risk_cluster"); err != nil {
			return err
		}
		if rec.RiskCategory, err = r.str("risk_category"); err != nil {
			return err
		}
		if rec.BrakingRisk, err = r.optFloat("braking_risk"); err != nil {
			return err
		}
		if rec.SpeedingRisk, err = r.optFloat("speeding_risk"); err != nil {
			return err
		}
		if rec.ExperienceFactor, err = r.float("experience_factor"); err != nil {
			return err
		}
		if rec.ComprehensiveRiskScore, err = r.optFloat("comprehensive_risk_score"); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func ReadQuotes(rd io.Reader) ([]models.PremiumQuote, error) {
	var out []models.PremiumQuote
	err := readRows(rd, func(r row) error {
		var (
			q   models.PremiumQuote
			id  float64
			err error
		)
		if id, err = r.float("driver_id"); err != nil {
			return err
		}
		q.DriverID = int64(id)
		if q.DrivingStyle, err = r.str("driving_style"); err != nil {
			return err
		}
		if q.VehicleType, err = r.str("vehicle_type"); err != nil {
			return err
		}
		if q.MonthlyKm, err = r.float("monthly_km"); err != nil {
			return err
		}
		if q.RiskScore, err = r.float("risk_score"); err != nil {
			return err
		}
		if q.BehaviorWeight, err = r.float("behavior_weight"); err != nil {
			return err
		}
		if q.PAYDPremium, err = r.float("payd_premium"); err != nil {
			return err
		}
		if q.PHYDPremium, err = r.float("phyd_premium"); err != nil {
			return err
		}
		plan, err := r.str("recommended_model")
		if err != nil {
			return err
		}
		if q.RecommendedModel, err = models.ParsePlan(plan); err != nil {
			return fmt.Errorf("line %d: %w", r.line, err)
		}
		out = append(out, q)
		return nil
	})
	return out, err
}

func driverFields(r *models.DriverRecord) []string {
	return []string{
		strconv.FormatInt(r.DriverID, 10),
		strconv.Itoa(r.Age),
		r.DrivingStyle,
		r.VehicleType,
		strconv.Itoa(r.YearsOfExperience),
		r.LicenseNumber,
		r.LicensePlate,
		formatFloat(r.TotalKm),
		formatOptInt(r.SuddenBrakingEvents),
		formatOptInt(r.SpeedingEvents),
		strconv.Itoa(r.PreviousAccidents),
		strconv.Itoa(r.TrafficFines),
		r.DataDate,
	}
}

func WriteDrivers(w io.Writer, records []models.DriverRecord) error {
	return writeAll(w, DriverColumns, len(records), func(i int) []string {
		return driverFields(&records[i])
	})
}

func WriteRisk(w io.Writer, records []models.RiskRecord) error {
	return writeAll(w, RiskColumns, len(records), func(i int) []string {
		r := &records[i]
		return append(driverFields(&r.DriverRecord),
			strconv.Itoa(r.RiskCluster),
			r.RiskCategory,
			formatOptFloat(r.BrakingRisk),
			formatOptFloat(r.SpeedingRisk),
			formatFloat(r.ExperienceFactor),
			formatOptFloat(r.ComprehensiveRiskScore),
		)
	})
}

func WriteQuotes(w io.Writer, quotes []models.PremiumQuote) error {
	return writeAll(w, QuoteColumns, len(quotes), func(i int) []string {
		q := &quotes[i]
		return []string{
			strconv.FormatInt(q.DriverID, 10),
			q.DrivingStyle,
			q.VehicleType,
			formatFloat(q.MonthlyKm),
			formatFloat(q.RiskScore),
			formatFloat(q.BehaviorWeight),
			formatFloat(q.PAYDPremium),
			formatFloat(q.PHYDPremium),
			string(q.RecommendedModel),
		}
	})
}

func WriteClusters(w io.Writer, rows []models.ClusterAssignment) error {
	return writeAll(w, ClusterColumns, len(rows), func(i int) []string {
		c := &rows[i]
		return []string{
			strconv.FormatInt(c.DriverID, 10),
			c.DrivingStyle,
			strconv.Itoa(c.RiskCluster),
			c.RiskLevel,
		}
	})
}

func writeAll(w io.Writer, header []string, n int, fields func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(fields(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// SaveFile creates parent directories and writes through fn.
func SaveFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadFile opens path and reads it through fn.
func LoadFile[T any](path string, fn func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fn(f)
}
