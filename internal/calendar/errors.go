package calendar

import "errors"

var (
	// ErrInvalidInterval marks an interval whose start does not precede
	// its end. Zero-length and wrap-past-midnight intervals are rejected
	// at configuration time.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrBreakOutsideWorkingHours marks a break not contained in its
	// day's working interval.
	ErrBreakOutsideWorkingHours = errors.New("break outside working hours")
)

// ValidationError reports a rejected configuration field. Err, when
// set, carries one of the sentinel errors above for errors.Is checks.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Err }
