package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/crypto/bcrypt"

	"telematics/pkg/logger"
	"telematics/pkg/metrics"
	"telematics/pkg/models"
	"telematics/storage"
)

type AccountService interface {
	Register(ctx context.Context, licensePlate, licenseNumber, password string) (string, error)
	Authenticate(ctx context.Context, licenseNumber, password string) (*models.Driver, error)
	SelectPlan(ctx context.Context, driverID, plan string, lockMonths int) (*models.Driver, error)
	Get(ctx context.Context, driverID string) (*models.Driver, error)
	Details(ctx context.Context, driverID string) (*models.DriverDetails, error)
}

type AccountOptions struct {
	LockMonths int
	CacheTTL   time.Duration
	HashCost   int
	Now        func() time.Time
}

type accountService struct {
	drivers storage.IDriverStorage
	records storage.IRecordStorage
	log     logger.ILogger
	opts    AccountOptions
	cache   *ttlcache.Cache[string, *models.DriverDetails]
	// compared against on unknown licences so lookups cost the same
	dummyHash []byte
}

func NewAccountService(stg storage.IStorage, log logger.ILogger, opts AccountOptions) AccountService {
	return newAccountService(stg, log, opts)
}

func newAccountService(stg storage.IStorage, log logger.ILogger, opts AccountOptions) *accountService {
	if opts.LockMonths <= 0 {
		opts.LockMonths = 12
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("telematics-unknown-driver"), opts.HashCost)
	if err != nil {
		log.Warning("dummy password hash unavailable", logger.Error(err))
	}
	return &accountService{
		dummyHash: dummy,
		drivers:   stg.Driver(),
		records:   stg.Record(),
		log:       log,
		opts:      opts,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, *models.DriverDetails](opts.CacheTTL),
		),
	}
}

// Register links a portal account to an existing telematics record and
// returns the linked driver id.
func (s *accountService) Register(ctx context.Context, licensePlate, licenseNumber, password string) (string, error) {
	id, err := s.register(ctx, licensePlate, licenseNumber, password)
	metrics.Registrations.WithLabelValues(metrics.Outcome(err)).Inc()
	return id, err
}

func (s *accountService) register(ctx context.Context, licensePlate, licenseNumber, password string) (string, error) {
	licensePlate = strings.TrimSpace(licensePlate)
	licenseNumber = strings.TrimSpace(licenseNumber)
	if licensePlate == "" || licenseNumber == "" || password == "" {
		return "", ErrInvalidInput
	}
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	_, err := s.drivers.GetByLicenseNumber(ctx, licenseNumber)
	switch {
	case err == nil:
		return "", ErrLicenseRegistered
	case !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("lookup license: %w", err)
	}

	n, err := s.records.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("count records: %w", err)
	}
	if n == 0 {
		return "", ErrRecordsUnavailable
	}

	rec, err := s.records.FindByLicense(ctx, licensePlate, licenseNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find record: %w", err)
	}
	driverID := rec.DriverKey()

	_, err = s.drivers.GetByDriverID(ctx, driverID)
	switch {
	case err == nil:
		return "", ErrDriverRegistered
	case !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("lookup driver: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.HashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	_, err = s.drivers.Create(ctx, &models.Driver{
		DriverID:      driverID,
		LicensePlate:  licensePlate,
		LicenseNumber: licenseNumber,
		PasswordHash:  string(hash),
	})
	if errors.Is(err, storage.ErrConflict) {
		return "", ErrDriverRegistered
	}
	if err != nil {
		return "", fmt.Errorf("create driver: %w", err)
	}

	s.log.Info("driver registered", logger.String("driver_id", driverID))
	return driverID, nil
}

func (s *accountService) Authenticate(ctx context.Context, licenseNumber, password string) (*models.Driver, error) {
	d, err := s.authenticate(ctx, licenseNumber, password)
	metrics.Logins.WithLabelValues(metrics.Outcome(err)).Inc()
	return d, err
}

func (s *accountService) authenticate(ctx context.Context, licenseNumber, password string) (*models.Driver, error) {
	d, err := s.drivers.GetByLicenseNumber(ctx, strings.TrimSpace(licenseNumber))
	if errors.Is(err, storage.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup license: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) != nil || !d.IsActive {
		return nil, ErrInvalidCredentials
	}

	now := s.opts.Now().UTC()
	if err := s.drivers.UpdateLastLogin(ctx, d.DriverID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	d.LastLogin = &now
	s.cache.Delete(d.DriverID)
	return d, nil
}

// SelectPlan stores the plan and freezes it for lockMonths of 30 days.
// A non-positive lockMonths uses the configured default.
func (s *accountService) SelectPlan(ctx context.Context, driverID, plan string, lockMonths int) (*models.Driver, error) {
	p, err := models.ParsePlan(plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	if lockMonths <= 0 {
		lockMonths = s.opts.LockMonths
	}

	d, err := s.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now().UTC()
	if d.PlanLocked(now) {
		return nil, fmt.Errorf("%w until %s", ErrPlanLocked, d.PlanLockedUntil.Format("2006-01-02"))
	}

	until := now.AddDate(0, 0, 30*lockMonths)
	if err := s.drivers.UpdatePlan(ctx, driverID, p, until); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("update plan: %w", err)
	}
	s.cache.Delete(driverID)

	d.SelectedPlan = &p
	d.PlanLockedUntil = &until
	metrics.PlanSelections.WithLabelValues(string(p)).Inc()
	s.log.Info("plan selected", logger.String("driver_id", driverID), logger.String("plan", string(p)))
	return d, nil
}

func (s *accountService) Get(ctx context.Context, driverID string) (*models.Driver, error) {
	d, err := s.drivers.GetByDriverID(ctx, driverID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver: %w", err)
	}
	return d, nil
}

// Details returns the account with its telematics record. The record is
// nil when the driver id has no matching row. Callers get their own copy.
func (s *accountService) Details(ctx context.Context, driverID string) (*models.DriverDetails, error) {
	if item := s.cache.Get(driverID); item != nil {
		return item.Value().Clone(), nil
	}

	d, err := s.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	details := &models.DriverDetails{Driver: d}

	if id, err := strconv.ParseInt(driverID, 10, 64); err == nil {
		rec, err := s.records.GetByDriverID(ctx, id)
		switch {
		case err == nil:
			details.Record = rec
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("get record: %w", err)
		}
	}

	s.cache.Set(driverID, details, ttlcache.DefaultTTL)
	return details.Clone(), nil
}

// forget drops every cached details entry, e.g. after records change.
func (s *accountService) forget() {
	s.cache.DeleteAll()
}
