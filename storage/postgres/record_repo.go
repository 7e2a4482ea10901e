package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telematics/pkg/logger"
	"telematics/pkg/models"
	"telematics/storage"
)

type recordRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewRecordRepo(db *pgxpool.Pool, log logger.ILogger) storage.IRecordStorage {
	return &recordRepo{db: db, log: log}
}

const recordColumns = `driver_id, age, driving_style, vehicle_type, years_of_experience, license_number,
	license_plate, total_km, sudden_braking_events, speeding_events, previous_accidents, traffic_fines, data_date`

func scanRecord(row pgx.Row) (*models.DriverRecord, error) {
	var rec models.DriverRecord
	err := row.Scan(
		&rec.DriverID, &rec.Age, &rec.DrivingStyle, &rec.VehicleType, &rec.YearsOfExperience, &rec.LicenseNumber,
		&rec.LicensePlate, &rec.TotalKm, &rec.SuddenBrakingEvents, &rec.SpeedingEvents, &rec.PreviousAccidents,
		&rec.TrafficFines, &rec.DataDate,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepo) Upsert(ctx context.Context, records []models.DriverRecord) error {
	query := `
		INSERT INTO driver_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (driver_id) DO UPDATE SET
			age = EXCLUDED.age,
			driving_style = EXCLUDED.driving_style,
			vehicle_type = EXCLUDED.vehicle_type,
			years_of_experience = EXCLUDED.years_of_experience,
			license_number = EXCLUDED.license_number,
			license_plate = EXCLUDED.license_plate,
			total_km = EXCLUDED.total_km,
			sudden_braking_events = EXCLUDED.sudden_braking_events,
			speeding_events = EXCLUDED.speeding_events,
			previous_accidents = EXCLUDED.previous_accidents,
			traffic_fines = EXCLUDED.traffic_fines,
			data_date = EXCLUDED.data_date,
			updated_at = NOW()`

	batch := &pgx.Batch{}
	for i := range records {
		rec := &records[i]
		batch.Queue(query,
			rec.DriverID, rec.Age, rec.DrivingStyle, rec.VehicleType, rec.YearsOfExperience, rec.LicenseNumber,
			rec.LicensePlate, rec.TotalKm, rec.SuddenBrakingEvents, rec.SpeedingEvents, rec.PreviousAccidents,
			rec.TrafficFines, rec.DataDate,
		)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		r.log.Error("failed to upsert driver records", logger.Int("records", len(records)), logger.Error(err))
		return err
	}
	return nil
}

func (r *recordRepo) GetByDriverID(ctx context.Context, driverID int64) (*models.DriverRecord, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM driver_records WHERE driver_id = $1`, driverID))
	if err != nil {
		err = mapError(err)
		if err != storage.ErrNotFound {
			r.log.Error("failed to get driver record", logger.Int64("driver_id", driverID), logger.Error(err))
		}
		return nil, err
	}
	return rec, nil
}

func (r *recordRepo) FindByLicense(ctx context.Context, licensePlate, licenseNumber string) (*models.DriverRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM driver_records
		WHERE license_plate = $1 AND license_number = $2
		ORDER BY driver_id LIMIT 1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, licensePlate, licenseNumber))
	if err != nil {
		err = mapError(err)
		if err != storage.ErrNotFound {
			r.log.Error("failed to find driver record", logger.Error(err))
		}
		return nil, err
	}
	return rec, nil
}

func (r *recordRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM driver_records").Scan(&n)
	return n, err
}

func (r *recordRepo) GetAll(ctx context.Context) ([]models.DriverRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+` FROM driver_records ORDER BY driver_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DriverRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
