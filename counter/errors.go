package counter

import "github.com/pkg/errors"

var (
	// ErrInvalidObservation is reported for observations which were skipped: non-finite position or duplicate track ID within one batch
	ErrInvalidObservation = errors.New("invalid observation")
	// ErrInvalidConfiguration is returned by constructors for degenerate line or bad parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// SkippedObservation is a diagnostic for an observation which has not been processed
type SkippedObservation[K comparable] struct {
	// Index of observation in the input batch
	Index       int
	Observation TrackObservation[K]
	// Err wraps ErrInvalidObservation
	Err error
}
