package worker

import "errors"

var (
	// ErrWarmupTimeout is returned when an engine does not signal
	// readiness within its configured warm-up window.
	ErrWarmupTimeout = errors.New("worker: warm-up timed out")
	// ErrTranscribeTimeout is returned when a transcribe call exceeds
	// its read timeout.
	ErrTranscribeTimeout = errors.New("worker: transcribe timed out")
	// ErrMalformedResponse is returned when an engine's response cannot
	// be parsed into fragments.
	ErrMalformedResponse = errors.New("worker: malformed engine response")
)
