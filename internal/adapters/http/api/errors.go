package api

import (
	"errors"
	"net/http"

	"github.com/okian/league/internal/adapters/repository"
	"github.com/okian/league/internal/adapters/standings"
	service "github.com/okian/league/internal/app"
	"github.com/okian/league/internal/domain/rating"
	"github.com/okian/league/internal/domain/schedule"
	"github.com/okian/league/internal/domain/workflow"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
)

// statusFor maps an error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden),
		errors.Is(err, workflow.ErrNotSubmitter),
		errors.Is(err, workflow.ErrSelfReview):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, schedule.ErrUnknownDivision):
		return http.StatusBadRequest, "unknown_division"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidPage),
		errors.Is(err, standings.ErrInvalidLimit),
		errors.Is(err, repository.ErrEmptyAssignment),
		errors.Is(err, repository.ErrInvalidPage):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, workflow.ErrNotRegistered),
		errors.Is(err, workflow.ErrSessionNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, standings.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, workflow.ErrAlreadyPlayed),
		errors.Is(err, repository.ErrDuplicateMatch),
		errors.Is(err, repository.ErrStaleRating):
		return http.StatusConflict, "conflict"
	case errors.Is(err, workflow.ErrWrongState):
		return http.StatusConflict, "wrong_state"
	case errors.Is(err, workflow.ErrSessionExpired):
		return http.StatusConflict, "session_expired"
	case errors.Is(err, workflow.ErrNotOffered),
		errors.Is(err, workflow.ErrTooManyReplays),
		errors.Is(err, rating.ErrInvalidScore),
		errors.Is(err, repository.ErrSamePlayer):
		return http.StatusUnprocessableEntity, "invalid_selection"
	case errors.Is(err, workflow.ErrNoOpenMatches),
		errors.Is(err, workflow.ErrNoOpponents):
		return http.StatusUnprocessableEntity, "nothing_to_submit"
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, service.ErrNoSchedule):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
