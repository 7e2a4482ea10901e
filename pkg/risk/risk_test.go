package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telematics/pkg/generator"
	"telematics/pkg/logger"
	"telematics/pkg/models"
)

func generated(t *testing.T, n int, seed uint64) []models.DriverRecord {
	t.Helper()
	records, err := generator.New(n, 30, seed).Generate()
	require.NoError(t, err)
	return records
}

func TestCategoryNames(t *testing.T) {
	centers := [][]float64{{1, 1}, {-2, -2}, {0, 0.5}}
	assert.Equal(t, map[int]string{0: CategoryHigh, 1: CategoryLow, 2: CategoryModerate}, CategoryNames(centers))
}

func TestCalculateRiskMetrics(t *testing.T) {
	records := []models.DriverRecord{
		{DriverID: 1, YearsOfExperience: 10, TotalKm: 2000, SuddenBrakingEvents: models.IntPtr(20), SpeedingEvents: models.IntPtr(10), PreviousAccidents: 1},
		{DriverID: 2, YearsOfExperience: 20, TotalKm: 1000, SuddenBrakingEvents: nil, SpeedingEvents: models.IntPtr(5)},
	}
	a := NewAnalyzer(records, 42, logger.Nop())
	a.CalculateRiskMetrics()
	got := a.Records()

	require.NotNil(t, got[0].BrakingRisk)
	assert.InDelta(t, 10.0, *got[0].BrakingRisk, 1e-9)
	assert.InDelta(t, 5.0, *got[0].SpeedingRisk, 1e-9)
	assert.InDelta(t, 0.5, got[0].ExperienceFactor, 1e-9)
	require.NotNil(t, got[0].ComprehensiveRiskScore)
	assert.InDelta(t, 2.5+1.25+0.3+0.1, *got[0].ComprehensiveRiskScore, 1e-9)

	assert.Nil(t, got[1].BrakingRisk)
	assert.InDelta(t, 5.0, *got[1].SpeedingRisk, 1e-9)
	assert.Zero(t, got[1].ExperienceFactor)
	assert.Nil(t, got[1].ComprehensiveRiskScore)
}

func TestCalculateRiskMetricsWithoutDistance(t *testing.T) {
	records := []models.DriverRecord{
		{DriverID: 1, YearsOfExperience: 5, TotalKm: 0, SuddenBrakingEvents: models.IntPtr(3), SpeedingEvents: models.IntPtr(2)},
		{DriverID: 2, YearsOfExperience: 10, TotalKm: -5, SuddenBrakingEvents: models.IntPtr(1), SpeedingEvents: models.IntPtr(1)},
	}
	a := NewAnalyzer(records, 42, logger.Nop())
	a.CalculateRiskMetrics()

	for _, r := range a.Records() {
		assert.Nil(t, r.BrakingRisk, "driver %d", r.DriverID)
		assert.Nil(t, r.SpeedingRisk, "driver %d", r.DriverID)
		assert.Nil(t, r.ComprehensiveRiskScore, "driver %d", r.DriverID)
	}
	assert.InDelta(t, 0.5, a.Records()[0].ExperienceFactor, 1e-9)
}

func TestRunOnGeneratedData(t *testing.T) {
	records := generated(t, 200, 7)
	a := NewAnalyzer(records, 42, logger.Nop())
	out, err := a.Run(3)
	require.NoError(t, err)
	require.Len(t, out, 200)

	seen := map[string]bool{}
	for _, r := range out {
		assert.Contains(t, Categories, r.RiskCategory)
		assert.GreaterOrEqual(t, r.RiskCluster, 0)
		assert.Less(t, r.RiskCluster, 3)
		seen[r.RiskCategory] = true
	}
	assert.Len(t, seen, 3)

	summary := a.Summary()
	require.Len(t, summary, 3)
	total := 0
	for i, s := range summary {
		assert.Equal(t, Categories[i], s.Category)
		assert.LessOrEqual(t, s.ScoredDrivers, s.Drivers)
		total += s.Drivers
	}
	assert.Equal(t, 200, total)
}

func TestClusterDriversValidatesK(t *testing.T) {
	a := NewAnalyzer(generated(t, 10, 1), 42, logger.Nop())
	require.ErrorIs(t, a.ClusterDrivers(4), ErrClusterCount)
	require.ErrorIs(t, a.ClusterDrivers(0), ErrClusterCount)
}
