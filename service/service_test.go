package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"telematics/pkg/csvio"
	"telematics/pkg/logger"
	"telematics/pkg/models"
	"telematics/storage"
	"telematics/storage/memory"
	"telematics/storage/storagetest"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newServices(t *testing.T, withRecords bool) (IServiceManager, *memory.Store, *clock) {
	t.Helper()
	st := memory.New()
	if withRecords {
		require.NoError(t, st.Record().Upsert(context.Background(), storagetest.Records()))
	}
	c := &clock{now: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	svc := NewWithOptions(st, logger.Nop(), AccountOptions{
		LockMonths: 12,
		CacheTTL:   time.Minute,
		HashCost:   bcrypt.MinCost,
		Now:        c.Now,
	})
	return svc, st, c
}

func TestRegisterOrderOfChecks(t *testing.T) {
	ctx := context.Background()

	empty, _, _ := newServices(t, false)
	_, err := empty.Account().Register(ctx, "KA10M1001", "DL100001", "pw")
	require.ErrorIs(t, err, ErrRecordsUnavailable)

	svc, _, _ := newServices(t, true)
	acc := svc.Account()

	_, err = acc.Register(ctx, "KA10M1001", "DL100002", "pw")
	require.ErrorIs(t, err, ErrRecordNotFound)

	id, err := acc.Register(ctx, "KA10M1001", "DL100001", "pw")
	require.NoError(t, err)
	require.Equal(t, "1", id)

	_, err = acc.Register(ctx, "KA10M1001", "DL100001", "other")
	require.ErrorIs(t, err, ErrLicenseRegistered)

	_, err = acc.Register(ctx, "", "DL100001", "pw")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterDriverAlreadyLinked(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newServices(t, true)

	// a second record row pointing at an already registered driver id
	dup := storagetest.Records()[0]
	dup.DriverID = 1
	dup.LicenseNumber = "DL777777"
	dup.LicensePlate = "KA77M7777"
	_, err := svc.Account().Register(ctx, "KA10M1001", "DL100001", "pw")
	require.NoError(t, err)
	require.NoError(t, st.Record().Upsert(ctx, []models.DriverRecord{dup}))

	_, err = svc.Account().Register(ctx, "KA77M7777", "DL777777", "pw")
	require.ErrorIs(t, err, ErrDriverRegistered)
}

func TestRegisterRejectsLongPassword(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newServices(t, true)

	_, err := svc.Account().Register(ctx, "KA10M1001", "DL100001", strings.Repeat("a", MaxPasswordBytes+1))
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, err, ErrPasswordTooLong)
	_, err = st.Driver().GetByDriverID(ctx, "1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	id, err := svc.Account().Register(ctx, "KA10M1001", "DL100001", strings.Repeat("a", MaxPasswordBytes))
	require.NoError(t, err)
	require.Equal(t, "1", id)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, st, c := newServices(t, true)
	_, err := svc.Account().Register(ctx, "KA10M1002", "DL100002", "secret")
	require.NoError(t, err)

	stored, err := st.Driver().GetByDriverID(ctx, "2")
	require.NoError(t, err)
	require.NotEqual(t, "secret", stored.PasswordHash)

	_, err = svc.Account().Authenticate(ctx, "DL100002", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Account().Authenticate(ctx, "DL404", "secret")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// unknown licences still pay for one bcrypt comparison
	acc := svc.Account().(*accountService)
	cost, err := bcrypt.Cost(acc.dummyHash)
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost, cost)

	d, err := svc.Account().Authenticate(ctx, "DL100002", "secret")
	require.NoError(t, err)
	require.Equal(t, "2", d.DriverID)
	require.True(t, c.now.Equal(*d.LastLogin))
}

func TestSelectPlanLocks(t *testing.T) {
	ctx := context.Background()
	svc, _, c := newServices(t, true)
	acc := svc.Account()
	_, err := acc.Register(ctx, "KA10M1001", "DL100001", "pw")
	require.NoError(t, err)

	_, err = acc.SelectPlan(ctx, "1", "gold", 0)
	require.ErrorIs(t, err, ErrUnknownPlan)
	_, err = acc.SelectPlan(ctx, "404", "PAYD", 0)
	require.ErrorIs(t, err, ErrDriverNotFound)

	d, err := acc.SelectPlan(ctx, "1", "Pay-How-You-Drive", 0)
	require.NoError(t, err)
	require.Equal(t, models.PlanPHYD, *d.SelectedPlan)
	require.Equal(t, c.now.AddDate(0, 0, 360), *d.PlanLockedUntil)

	_, err = acc.SelectPlan(ctx, "1", "MHYD", 0)
	require.ErrorIs(t, err, ErrPlanLocked)

	c.now = c.now.AddDate(0, 0, 361)
	d, err = acc.SelectPlan(ctx, "1", "mhyd", 1)
	require.NoError(t, err)
	require.Equal(t, models.PlanMHYD, *d.SelectedPlan)
	require.Equal(t, c.now.AddDate(0, 0, 30), *d.PlanLockedUntil)
}

func TestDetailsCacheInvalidatedOnPlanChange(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newServices(t, true)
	acc := svc.Account()
	_, err := acc.Register(ctx, "KA10M1001", "DL100001", "pw")
	require.NoError(t, err)

	details, err := acc.Details(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, details.Record)
	require.Equal(t, 1500.5, details.Record.TotalKm)
	require.Nil(t, details.Driver.SelectedPlan)

	_, err = acc.SelectPlan(ctx, "1", "PAYD", 0)
	require.NoError(t, err)
	details, err = acc.Details(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, models.PlanPAYD, *details.Driver.SelectedPlan)

	_, err = acc.Details(ctx, "404")
	require.ErrorIs(t, err, ErrDriverNotFound)
}

func TestDetailsReturnsCopies(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newServices(t, true)
	acc := svc.Account()
	_, err := acc.Register(ctx, "KA10M1001", "DL100001", "pw")
	require.NoError(t, err)

	first, err := acc.Details(ctx, "1")
	require.NoError(t, err)
	first.Record.TotalKm = 1
	*first.Record.SuddenBrakingEvents = 999
	first.Driver.LicensePlate = "changed"

	second, err := acc.Details(ctx, "1")
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, 1500.5, second.Record.TotalKm)
	require.Equal(t, "KA10M1001", second.Driver.LicensePlate)
	require.NotEqual(t, 999, *second.Record.SuddenBrakingEvents)
}

func TestDetailsCacheInvalidatedOnImport(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newServices(t, true)
	_, err := svc.Account().Register(ctx, "KA10M1001", "DL100001", "pw")
	require.NoError(t, err)

	details, err := svc.Account().Details(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 1500.5, details.Record.TotalKm)

	updated := storagetest.Records()[0]
	updated.TotalKm = 2100
	_, err = svc.Record().Import(ctx, []models.DriverRecord{updated})
	require.NoError(t, err)

	details, err = svc.Account().Details(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 2100.0, details.Record.TotalKm)
}

func TestPremiumQuoteFallsBackToRecord(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newServices(t, true)

	q, err := svc.Premium().Quote(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), q.DriverID)
	assert.Equal(t, 30000*0.7, q.PAYDPremium)

	stored := models.PremiumQuote{DriverID: 2, PAYDPremium: 1, PHYDPremium: 2, RecommendedModel: models.PlanPAYD}
	require.NoError(t, svc.Premium().Store(ctx, []models.PremiumQuote{stored}))
	q, err = svc.Premium().Quote(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, stored, *q)

	_, err = svc.Premium().Quote(ctx, 99)
	require.ErrorIs(t, err, ErrRecordNotFound)

	summary, err := svc.Premium().Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
}

func TestRecordLoadCSV(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newServices(t, false)

	path := filepath.Join(t.TempDir(), "driver_data.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, csvio.WriteDrivers(f, storagetest.Records()))
	require.NoError(t, f.Close())

	n, err := svc.Record().LoadCSV(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	count, err := svc.Record().Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = svc.Record().LoadCSV(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}
