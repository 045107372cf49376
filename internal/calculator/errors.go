package calculator

import "errors"

var (
	// ErrInsufficientData means fewer bars than the warm-up window were supplied.
	// Callers treat the symbol as not yet evaluable.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateRange means highest == lowest over a KDJ window under the strict policy.
	ErrDegenerateRange = errors.New("degenerate high/low range")
	// ErrOutOfRange means a close lies outside the high/low range of its own
	// window, which only malformed bars can produce.
	ErrOutOfRange = errors.New("close outside high/low range")
	// ErrInvalidPeriod is returned for non-positive periods.
	ErrInvalidPeriod = errors.New("period must be positive")
)
