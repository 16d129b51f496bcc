package service

import (
	"errors"

	"github.com/okian/league/internal/domain/schedule"
	"github.com/okian/league/internal/domain/workflow"
)

// Sentinel kinds surfaced by the service.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrMissingDependency = errors.New("missing dependency")
	ErrInvalidPage       = errors.New("invalid page")
	ErrNoSchedule        = errors.New("no schedule source configured")
	ErrQueueFull         = errors.New("export queue full")

	// Aliases so callers branch on one name per failure.
	ErrUnknownDivision = schedule.ErrUnknownDivision
	ErrNotRegistered   = workflow.ErrNotRegistered
)
