package service

import (
	"context"
	"fmt"

	"telematics/pkg/csvio"
	"telematics/pkg/logger"
	"telematics/pkg/models"
	"telematics/storage"
)

type RecordService interface {
	Import(ctx context.Context, records []models.DriverRecord) (int, error)
	LoadCSV(ctx context.Context, path string) (int, error)
	Count(ctx context.Context) (int, error)
}

type recordService struct {
	records storage.IRecordStorage
	log     logger.ILogger
	// onImport runs after records were written.
	onImport func()
}

func NewRecordService(stg storage.IStorage, log logger.ILogger) RecordService {
	return &recordService{records: stg.Record(), log: log}
}

func (s *recordService) Import(ctx context.Context, records []models.DriverRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.records.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("import records: %w", err)
	}
	if s.onImport != nil {
		s.onImport()
	}
	s.log.Info("driver records imported", logger.Int("records", len(records)))
	return len(records), nil
}

// LoadCSV imports a driver_data.csv style file.
func (s *recordService) LoadCSV(ctx context.Context, path string) (int, error) {
	records, err := csvio.LoadFile(path, csvio.ReadDrivers)
	if err != nil {
		s.log.Error("error while loading driver records", logger.String("path", path), logger.Error(err))
		return 0, fmt.Errorf("load %s: %w", path, err)
	}
	return s.Import(ctx, records)
}

func (s *recordService) Count(ctx context.Context) (int, error) {
	return s.records.Count(ctx)
}
