package service

import (
	"errors"

	"battery_dashboard/internal/scheduler"
)

var (
	ErrInvalidMode      = errors.New("invalid mode: must be MANUAL or AUTO")
	ErrInvalidThreshold = errors.New("invalid threshold: must be between 0 and 100")
	ErrTooManyPending   = errors.New("too many relay commands awaiting confirmation")
	ErrInvalidFilter    = errors.New("invalid log filter")

	// ErrLoopStopped is returned once the service has been shut down.
	ErrLoopStopped = scheduler.ErrStopped
)
