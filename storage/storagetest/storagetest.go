// Package storagetest holds behaviour checks shared by every storage.IStorage
// implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"telematics/pkg/models"
	"telematics/storage"
)

func Records() []models.DriverRecord {
	return []models.DriverRecord{
		{
			DriverID: 1, Age: 30, DrivingStyle: models.StyleModerate, VehicleType: models.VehicleSedan,
			YearsOfExperience: 12, LicenseNumber: "DL100001", LicensePlate: "KA10M1001", TotalKm: 1500.5,
			SuddenBrakingEvents: models.IntPtr(40), SpeedingEvents: nil, PreviousAccidents: 1, TrafficFines: 0,
			DataDate: "2025-03-14",
		},
		{
			DriverID: 2, Age: 45, DrivingStyle: models.StyleConservative, VehicleType: models.VehicleSUV,
			YearsOfExperience: 27, LicenseNumber: "DL100002", LicensePlate: "KA10M1002", TotalKm: 900,
			SuddenBrakingEvents: models.IntPtr(10), SpeedingEvents: models.IntPtr(5), PreviousAccidents: 0, TrafficFines: 0,
			DataDate: "2025-03-14",
		},
	}
}

// Run exercises drivers, records and quotes against a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) storage.IStorage) {
	t.Run("drivers", func(t *testing.T) { testDrivers(t, newStore(t)) })
	t.Run("records", func(t *testing.T) { testRecords(t, newStore(t)) })
	t.Run("quotes", func(t *testing.T) { testQuotes(t, newStore(t)) })
	t.Run("reset", func(t *testing.T) { testReset(t, newStore(t)) })
}

func testDrivers(t *testing.T, st storage.IStorage) {
	ctx := context.Background()
	repo := st.Driver()

	created, err := repo.Create(ctx, &models.Driver{
		DriverID: "1", LicensePlate: "KA10M1001", LicenseNumber: "DL100001", PasswordHash: "hash",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.True(t, created.IsActive)
	require.False(t, created.RegistrationDate.IsZero())
	require.Nil(t, created.SelectedPlan)

	_, err = repo.Create(ctx, &models.Driver{DriverID: "2", LicensePlate: "KA10M1001", LicenseNumber: "DL100002", PasswordHash: "x"})
	require.ErrorIs(t, err, storage.ErrConflict)
	_, err = repo.Create(ctx, &models.Driver{DriverID: "1", LicensePlate: "KA10M9999", LicenseNumber: "DL999999", PasswordHash: "x"})
	require.ErrorIs(t, err, storage.ErrConflict)

	got, err := repo.GetByLicenseNumber(ctx, "DL100001")
	require.NoError(t, err)
	require.Equal(t, "1", got.DriverID)
	got, err = repo.GetByLicensePlate(ctx, "KA10M1001")
	require.NoError(t, err)
	require.Equal(t, "hash", got.PasswordHash)
	_, err = repo.GetByDriverID(ctx, "404")
	require.ErrorIs(t, err, storage.ErrNotFound)

	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, "1", at))
	require.ErrorIs(t, repo.UpdateLastLogin(ctx, "404", at), storage.ErrNotFound)

	until := at.AddDate(0, 0, 360)
	require.NoError(t, repo.UpdatePlan(ctx, "1", models.PlanPHYD, until))
	require.ErrorIs(t, repo.UpdatePlan(ctx, "404", models.PlanPHYD, until), storage.ErrNotFound)

	got, err = repo.GetByDriverID(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	require.True(t, at.Equal(*got.LastLogin))
	require.NotNil(t, got.SelectedPlan)
	require.Equal(t, models.PlanPHYD, *got.SelectedPlan)
	require.True(t, until.Equal(*got.PlanLockedUntil))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func testRecords(t *testing.T, st storage.IStorage) {
	ctx := context.Background()
	repo := st.Record()

	require.NoError(t, repo.Upsert(ctx, Records()))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := repo.GetByDriverID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, Records()[0], *got)

	found, err := repo.FindByLicense(ctx, "KA10M1002", "DL100002")
	require.NoError(t, err)
	require.Equal(t, int64(2), found.DriverID)
	_, err = repo.FindByLicense(ctx, "KA10M1002", "DL100001")
	require.ErrorIs(t, err, storage.ErrNotFound)

	updated := Records()[:1]
	updated[0].TotalKm = 2000
	require.NoError(t, repo.Upsert(ctx, updated))
	got, err = repo.GetByDriverID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2000.0, got.TotalKm)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, int64(1), all[0].DriverID)

	_, err = repo.GetByDriverID(ctx, 99)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testQuotes(t *testing.T, st storage.IStorage) {
	ctx := context.Background()
	repo := st.Quote()

	q := models.PremiumQuote{
		DriverID: 7, DrivingStyle: models.StyleModerate, VehicleType: models.VehicleSedan, MonthlyKm: 50,
		RiskScore: 0.18, BehaviorWeight: 0.84, PAYDPremium: 17500, PHYDPremium: 21000, RecommendedModel: models.PlanPAYD,
	}
	require.NoError(t, repo.Upsert(ctx, []models.PremiumQuote{q}))
	got, err := repo.GetByDriverID(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, q, *got)

	q.RecommendedModel = models.PlanPHYD
	require.NoError(t, repo.Upsert(ctx, []models.PremiumQuote{q}))
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []models.PremiumQuote{q}, all)

	_, err = repo.GetByDriverID(ctx, 8)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testReset(t *testing.T, st storage.IStorage) {
	ctx := context.Background()
	require.NoError(t, st.Record().Upsert(ctx, Records()))
	_, err := st.Driver().Create(ctx, &models.Driver{DriverID: "1", LicensePlate: "p", LicenseNumber: "n", PasswordHash: "h"})
	require.NoError(t, err)

	require.NoError(t, st.Reset(ctx))
	n, err := st.Record().Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = st.Driver().Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
