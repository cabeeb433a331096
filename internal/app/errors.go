package app

import "errors"

// Sentinel errors for application assembly.
var (
	// ErrInvalidUpstream is returned when DYNCACHE_UPSTREAM is not an absolute URL.
	ErrInvalidUpstream = errors.New("app: invalid upstream URL")

	// ErrInvalidSchedule is returned for an unparsable sweep schedule.
	ErrInvalidSchedule = errors.New("app: invalid sweep schedule")
)
