package service

import (
	"errors"
	"fmt"
)

var (
	ErrLicenseRegistered  = errors.New("this license number is already registered, please login instead")
	ErrRecordsUnavailable = errors.New("driver data not available, please try again later")
	ErrRecordNotFound     = errors.New("license plate and license number combination not found in records")
	ErrDriverRegistered   = errors.New("this driver is already registered, please login instead")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDriverNotFound     = errors.New("driver not found")
	ErrPlanLocked         = errors.New("plan is locked")
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrInvalidInput       = errors.New("invalid input")
)

// ErrPasswordTooLong is an ErrInvalidInput: bcrypt only accepts 72 bytes.
var ErrPasswordTooLong = fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, MaxPasswordBytes)

const MaxPasswordBytes = 72
