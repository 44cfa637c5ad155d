package model

import "errors"

// Sentinel errors shared by stores, services and the HTTP layer.
// Wrap with %w so callers can match them with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	// ErrRobotInactive is returned when an on-demand run targets a robot
	// whose policy is switched off or has no schedule.
	ErrRobotInactive = errors.New("robot inactive")
)
