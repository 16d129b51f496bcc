package rating

import "errors"

// Sentinel kinds for rating errors.
var (
	ErrInvalidScore  = errors.New("invalid score token")
	ErrInvalidResult = errors.New("result must be within [0,1]")
	ErrInvalidK      = errors.New("k-factor must be positive")
)
