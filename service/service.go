package service

import (
	"time"

	"telematics/config"
	"telematics/pkg/logger"
	"telematics/storage"
)

type IServiceManager interface {
	Account() AccountService
	Premium() PremiumService
	Record() RecordService
}

type service struct {
	accountService AccountService
	premiumService PremiumService
	recordService  RecordService
}

func New(stg storage.IStorage, cfg config.Config, log logger.ILogger) IServiceManager {
	return NewWithOptions(stg, log, AccountOptions{
		LockMonths: cfg.PlanLockMonths,
		CacheTTL:   time.Duration(cfg.DetailsCacheTTL) * time.Second,
	})
}

func NewWithOptions(stg storage.IStorage, log logger.ILogger, opts AccountOptions) IServiceManager {
	account := newAccountService(stg, log, opts)
	return &service{
		accountService: account,
		premiumService: NewPremiumService(stg, log),
		recordService:  &recordService{records: stg.Record(), log: log, onImport: account.forget},
	}
}

func (s *service) Account() AccountService {
	return s.accountService
}

func (s *service) Premium() PremiumService {
	return s.premiumService
}

func (s *service) Record() RecordService {
	return s.recordService
}
