package storage

import (
	"context"
	"errors"
	"time"

	"telematics/pkg/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type IStorage interface {
	Driver() IDriverStorage
	Record() IRecordStorage
	Quote() IQuoteStorage
	// Reset removes every driver, record and quote.
	Reset(ctx context.Context) error
	Close()
}

type IDriverStorage interface {
	Create(ctx context.Context, driver *models.Driver) (*models.Driver, error)
	GetByDriverID(ctx context.Context, driverID string) (*models.Driver, error)
	GetByLicenseNumber(ctx context.Context, licenseNumber string) (*models.Driver, error)
	GetByLicensePlate(ctx context.Context, licensePlate string) (*models.Driver, error)
	UpdateLastLogin(ctx context.Context, driverID string, at time.Time) error
	UpdatePlan(ctx context.Context, driverID string, plan models.Plan, lockedUntil time.Time) error
	GetAll(ctx context.Context) ([]*models.Driver, error)
	Count(ctx context.Context) (int, error)
}

type IRecordStorage interface {
	Upsert(ctx context.Context, records []models.DriverRecord) error
	GetByDriverID(ctx context.Context, driverID int64) (*models.DriverRecord, error)
	FindByLicense(ctx context.Context, licensePlate, licenseNumber string) (*models.DriverRecord, error)
	Count(ctx context.Context) (int, error)
	GetAll(ctx context.Context) ([]models.DriverRecord, error)
}

type IQuoteStorage interface {
	Upsert(ctx context.Context, quotes []models.PremiumQuote) error
	GetByDriverID(ctx context.Context, driverID int64) (*models.PremiumQuote, error)
	GetAll(ctx context.Context) ([]models.PremiumQuote, error)
}
