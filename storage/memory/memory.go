// Package memory is an in-process storage.IStorage used by tests and by
// STORAGE_DRIVER=memory deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"telematics/pkg/models"
	"telematics/storage"
)

type Store struct {
	mu      sync.RWMutex
	nextID  int64
	drivers map[string]*models.Driver
	records map[int64]models.DriverRecord
	quotes  map[int64]models.PremiumQuote
	now     func() time.Time
}

func New() *Store {
	return &Store{
		drivers: make(map[string]*models.Driver),
		records: make(map[int64]models.DriverRecord),
		quotes:  make(map[int64]models.PremiumQuote),
		now:     time.Now,
	}
}

func (s *Store) Driver() storage.IDriverStorage { return driverRepo{s} }
func (s *Store) Record() storage.IRecordStorage { return recordRepo{s} }
func (s *Store) Quote() storage.IQuoteStorage   { return quoteRepo{s} }
func (s *Store) Close()                         {}

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = 0
	s.drivers = make(map[string]*models.Driver)
	s.records = make(map[int64]models.DriverRecord)
	s.quotes = make(map[int64]models.PremiumQuote)
	return nil
}

func cloneDriver(d *models.Driver) *models.Driver {
	c := *d
	if d.LastLogin != nil {
		t := *d.LastLogin
		c.LastLogin = &t
	}
	if d.SelectedPlan != nil {
		p := *d.SelectedPlan
		c.SelectedPlan = &p
	}
	if d.PlanLockedUntil != nil {
		t := *d.PlanLockedUntil
		c.PlanLockedUntil = &t
	}
	return &c
}

func cloneRecord(r models.DriverRecord) models.DriverRecord {
	if r.SuddenBrakingEvents != nil {
		r.SuddenBrakingEvents = models.IntPtr(*r.SuddenBrakingEvents)
	}
	if r.SpeedingEvents != nil {
		r.SpeedingEvents = models.IntPtr(*r.SpeedingEvents)
	}
	return r
}

type driverRepo struct{ s *Store }

func (r driverRepo) Create(_ context.Context, driver *models.Driver) (*models.Driver, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drivers[driver.DriverID]; ok {
		return nil, storage.ErrConflict
	}
	for _, d := range r.s.drivers {
		if d.LicensePlate == driver.LicensePlate || d.LicenseNumber == driver.LicenseNumber {
			return nil, storage.ErrConflict
		}
	}
	r.s.nextID++
	d := &models.Driver{
		ID:               r.s.nextID,
		DriverID:         driver.DriverID,
		LicensePlate:     driver.LicensePlate,
		LicenseNumber:    driver.LicenseNumber,
		PasswordHash:     driver.PasswordHash,
		RegistrationDate: r.s.now().UTC(),
		IsActive:         true,
	}
	r.s.drivers[d.DriverID] = d
	return cloneDriver(d), nil
}

func (r driverRepo) find(match func(*models.Driver) bool) (*models.Driver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, d := range r.s.drivers {
		if match(d) {
			return cloneDriver(d), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r driverRepo) GetByDriverID(_ context.Context, driverID string) (*models.Driver, error) {
	return r.find(func(d *models.Driver) bool { return d.DriverID == driverID })
}

func (r driverRepo) GetByLicenseNumber(_ context.Context, licenseNumber string) (*models.Driver, error) {
	return r.find(func(d *models.Driver) bool { return d.LicenseNumber == licenseNumber })
}

func (r driverRepo) GetByLicensePlate(_ context.Context, licensePlate string) (*models.Driver, error) {
	return r.find(func(d *models.Driver) bool { return d.LicensePlate == licensePlate })
}

func (r driverRepo) update(driverID string, fn func(*models.Driver)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drivers[driverID]
	if !ok {
		return storage.ErrNotFound
	}
	fn(d)
	return nil
}

func (r driverRepo) UpdateLastLogin(_ context.Context, driverID string, at time.Time) error {
	return r.update(driverID, func(d *models.Driver) { d.LastLogin = &at })
}

func (r driverRepo) UpdatePlan(_ context.Context, driverID string, plan models.Plan, lockedUntil time.Time) error {
	return r.update(driverID, func(d *models.Driver) {
		d.SelectedPlan = &plan
		d.PlanLockedUntil = &lockedUntil
	})
}

func (r driverRepo) GetAll(context.Context) ([]*models.Driver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*models.Driver, 0, len(r.s.drivers))
	for _, d := range r.s.drivers {
		out = append(out, cloneDriver(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r driverRepo) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.drivers), nil
}

type recordRepo struct{ s *Store }

func (r recordRepo) Upsert(_ context.Context, records []models.DriverRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range records {
		r.s.records[rec.DriverID] = cloneRecord(rec)
	}
	return nil
}

func (r recordRepo) GetByDriverID(_ context.Context, driverID int64) (*models.DriverRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.records[driverID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := cloneRecord(rec)
	return &c, nil
}

func (r recordRepo) FindByLicense(ctx context.Context, licensePlate, licenseNumber string) (*models.DriverRecord, error) {
	all, _ := r.GetAll(ctx)
	for i := range all {
		if all[i].LicensePlate == licensePlate && all[i].LicenseNumber == licenseNumber {
			return &all[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r recordRepo) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.records), nil
}

func (r recordRepo) GetAll(context.Context) ([]models.DriverRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.DriverRecord, 0, len(r.s.records))
	for _, rec := range r.s.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

type quoteRepo struct{ s *Store }

func (r quoteRepo) Upsert(_ context.Context, quotes []models.PremiumQuote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, q := range quotes {
		r.s.quotes[q.DriverID] = q
	}
	return nil
}

func (r quoteRepo) GetByDriverID(_ context.Context, driverID int64) (*models.PremiumQuote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.quotes[driverID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &q, nil
}

func (r quoteRepo) GetAll(context.Context) ([]models.PremiumQuote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.PremiumQuote, 0, len(r.s.quotes))
	for _, q := range r.s.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}
