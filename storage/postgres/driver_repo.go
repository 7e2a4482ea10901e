package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telematics/pkg/logger"
	"telematics/pkg/models"
	"telematics/storage"
)

type driverRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewDriverRepo(db *pgxpool.Pool, log logger.ILogger) storage.IDriverStorage {
	return &driverRepo{db: db, log: log}
}

const driverColumns = `id, driver_id, license_plate, license_number, password_hash, registration_date,
	last_login, is_active, selected_plan, plan_locked_until`

func scanDriver(row pgx.Row) (*models.Driver, error) {
	var (
		d    models.Driver
		plan *string
	)
	err := row.Scan(
		&d.ID, &d.DriverID, &d.LicensePlate, &d.LicenseNumber, &d.PasswordHash, &d.RegistrationDate,
		&d.LastLogin, &d.IsActive, &plan, &d.PlanLockedUntil,
	)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		p := models.Plan(*plan)
		d.SelectedPlan = &p
	}
	return &d, nil
}

func (r *driverRepo) Create(ctx context.Context, driver *models.Driver) (*models.Driver, error) {
	query := `
		INSERT INTO drivers (driver_id, license_plate, license_number, password_hash, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING ` + driverColumns
	d, err := scanDriver(r.db.QueryRow(ctx, query,
		driver.DriverID, driver.LicensePlate, driver.LicenseNumber, driver.PasswordHash,
	))
	if err != nil {
		r.log.Error("failed to create driver", logger.String("driver_id", driver.DriverID), logger.Error(err))
		return nil, mapError(err)
	}
	return d, nil
}

func (r *driverRepo) getBy(ctx context.Context, column, value string) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE ` + column + ` = $1`
	d, err := scanDriver(r.db.QueryRow(ctx, query, value))
	if err != nil {
		err = mapError(err)
		if err != storage.ErrNotFound {
			r.log.Error("failed to get driver", logger.String(column, value), logger.Error(err))
		}
		return nil, err
	}
	return d, nil
}

func (r *driverRepo) GetByDriverID(ctx context.Context, driverID string) (*models.Driver, error) {
	return r.getBy(ctx, "driver_id", driverID)
}

func (r *driverRepo) GetByLicenseNumber(ctx context.Context, licenseNumber string) (*models.Driver, error) {
	return r.getBy(ctx, "license_number", licenseNumber)
}

func (r *driverRepo) GetByLicensePlate(ctx context.Context, licensePlate string) (*models.Driver, error) {
	return r.getBy(ctx, "license_plate", licensePlate)
}

func (r *driverRepo) UpdateLastLogin(ctx context.Context, driverID string, at time.Time) error {
	tag, err := r.db.Exec(ctx, "UPDATE drivers SET last_login=$1 WHERE driver_id=$2", at, driverID)
	if err != nil {
		r.log.Error("failed to update last login", logger.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *driverRepo) UpdatePlan(ctx context.Context, driverID string, plan models.Plan, lockedUntil time.Time) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE drivers SET selected_plan=$1, plan_locked_until=$2 WHERE driver_id=$3",
		string(plan), lockedUntil, driverID,
	)
	if err != nil {
		r.log.Error("failed to update plan", logger.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *driverRepo) GetAll(ctx context.Context) ([]*models.Driver, error) {
	rows, err := r.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (r *driverRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM drivers").Scan(&n)
	return n, err
}
