package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telematics/pkg/logger"
	"telematics/pkg/models"
	"telematics/storage"
)

type quoteRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewQuoteRepo(db *pgxpool.Pool, log logger.ILogger) storage.IQuoteStorage {
	return &quoteRepo{db: db, log: log}
}

const quoteColumns = `driver_id, driving_style, vehicle_type, monthly_km, risk_score, behavior_weight,
	payd_premium, phyd_premium, recommended_model`

func scanQuote(row pgx.Row) (*models.PremiumQuote, error) {
	var (
		q    models.PremiumQuote
		plan string
	)
	err := row.Scan(&q.DriverID, &q.DrivingStyle, &q.VehicleType, &q.MonthlyKm, &q.RiskScore, &q.BehaviorWeight,
		&q.PAYDPremium, &q.PHYDPremium, &plan)
	if err != nil {
		return nil, err
	}
	q.RecommendedModel = models.Plan(plan)
	return &q, nil
}

func (r *quoteRepo) Upsert(ctx context.Context, quotes []models.PremiumQuote) error {
	query := `
		INSERT INTO premium_quotes (` + quoteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (driver_id) DO UPDATE SET
			driving_style = EXCLUDED.driving_style,
			vehicle_type = EXCLUDED.vehicle_type,
			monthly_km = EXCLUDED.monthly_km,
			risk_score = EXCLUDED.risk_score,
			behavior_weight = EXCLUDED.behavior_weight,
			payd_premium = EXCLUDED.payd_premium,
			phyd_premium = EXCLUDED.phyd_premium,
			recommended_model = EXCLUDED.recommended_model,
			calculated_at = NOW()`

	batch := &pgx.Batch{}
	for i := range quotes {
		q := &quotes[i]
		batch.Queue(query, q.DriverID, q.DrivingStyle, q.VehicleType, q.MonthlyKm, q.RiskScore, q.BehaviorWeight,
			q.PAYDPremium, q.PHYDPremium, string(q.RecommendedModel))
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		r.log.Error("failed to upsert premium quotes", logger.Int("quotes", len(quotes)), logger.Error(err))
		return err
	}
	return nil
}

func (r *quoteRepo) GetByDriverID(ctx context.Context, driverID int64) (*models.PremiumQuote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM premium_quotes WHERE driver_id = $1`, driverID))
	if err != nil {
		err = mapError(err)
		if err != storage.ErrNotFound {
			r.log.Error("failed to get premium quote", logger.Int64("driver_id", driverID), logger.Error(err))
		}
		return nil, err
	}
	return q, nil
}

func (r *quoteRepo) GetAll(ctx context.Context) ([]models.PremiumQuote, error) {
	rows, err := r.db.Query(ctx, `SELECT `+quoteColumns+` FROM premium_quotes ORDER BY driver_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PremiumQuote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}
