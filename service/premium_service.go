package service

import (
	"context"
	"errors"
	"fmt"

	"telematics/pkg/insurance"
	"telematics/pkg/logger"
	"telematics/pkg/models"
	"telematics/storage"
)

type PremiumService interface {
	// Quote returns the stored quote for the driver, pricing the telematics
	// record on the fly when none has been stored.
	Quote(ctx context.Context, driverID int64) (*models.PremiumQuote, error)
	Summary(ctx context.Context) (insurance.Summary, error)
	Store(ctx context.Context, quotes []models.PremiumQuote) error
}

type premiumService struct {
	quotes  storage.IQuoteStorage
	records storage.IRecordStorage
	log     logger.ILogger
}

func NewPremiumService(stg storage.IStorage, log logger.ILogger) PremiumService {
	return &premiumService{quotes: stg.Quote(), records: stg.Record(), log: log}
}

func (s *premiumService) Quote(ctx context.Context, driverID int64) (*models.PremiumQuote, error) {
	q, err := s.quotes.GetByDriverID(ctx, driverID)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get quote: %w", err)
	}

	rec, err := s.records.GetByDriverID(ctx, driverID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	computed, err := insurance.Quote(rec)
	if err != nil {
		return nil, err
	}
	return &computed, nil
}

func (s *premiumService) Summary(ctx context.Context) (insurance.Summary, error) {
	quotes, err := s.quotes.GetAll(ctx)
	if err != nil {
		return insurance.Summary{}, fmt.Errorf("list quotes: %w", err)
	}
	return insurance.Summarize(quotes), nil
}

func (s *premiumService) Store(ctx context.Context, quotes []models.PremiumQuote) error {
	if err := s.quotes.Upsert(ctx, quotes); err != nil {
		return fmt.Errorf("store quotes: %w", err)
	}
	s.log.Info("premium quotes stored", logger.Int("quotes", len(quotes)))
	return nil
}
