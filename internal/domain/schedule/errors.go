package schedule

import "errors"

// Sentinel kinds for schedule errors.
var (
	ErrMalformedGrid    = errors.New("malformed schedule grid")
	ErrDuplicateFixture = errors.New("duplicate fixture")
	ErrUnknownDivision  = errors.New("unknown division")
)
