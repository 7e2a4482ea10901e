package models

import "time"

// Driver is a registered portal account. DriverID links it to the telematics records.
type Driver struct {
	ID               int64      `json:"id"`
	DriverID         string     `json:"driver_id"`
	LicensePlate     string     `json:"license_plate"`
	LicenseNumber    string     `json:"license_number"`
	PasswordHash     string     `json:"-"`
	RegistrationDate time.Time  `json:"registration_date"`
	LastLogin        *time.Time `json:"last_login"`
	IsActive         bool       `json:"is_active"`
	SelectedPlan     *Plan      `json:"selected_plan"`
	PlanLockedUntil  *time.Time `json:"plan_locked_until"`
}

// PlanLocked reports whether the plan choice is still frozen at now.
func (d *Driver) PlanLocked(now time.Time) bool {
	return d.PlanLockedUntil != nil && d.PlanLockedUntil.After(now)
}

type DriverDetails struct {
	Driver *Driver       `json:"driver"`
	Record *DriverRecord `json:"record,omitempty"`
}

// Clone returns a copy that shares no pointers with d.
func (d *DriverDetails) Clone() *DriverDetails {
	out := &DriverDetails{}
	if d.Driver != nil {
		drv := *d.Driver
		drv.LastLogin = clonePtr(drv.LastLogin)
		drv.SelectedPlan = clonePtr(drv.SelectedPlan)
		drv.PlanLockedUntil = clonePtr(drv.PlanLockedUntil)
		out.Driver = &drv
	}
	if d.Record != nil {
		rec := *d.Record
		rec.SuddenBrakingEvents = clonePtr(rec.SuddenBrakingEvents)
		rec.SpeedingEvents = clonePtr(rec.SpeedingEvents)
		out.Record = &rec
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
