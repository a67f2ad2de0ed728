// Package worker defines the transcription engine contract the runner
// pool (pkg/runner) dispatches against. The core only needs a function
// that warms up and a function that returns a result or times out —
// engines are modeled as a tagged variant rather than a class hierarchy,
// since every concrete engine in this repo exposes the same two
// operations.
package worker

import "context"

// Fragment is one transcribed span within a window, in window-local
// time: a (start_sec, end_sec, text) triple.
type Fragment struct {
	StartSec float64
	EndSec   float64
	Text     string
}

// Engine is implemented by every transcription variant: a process-bridge
// worker backed by an HTTP STT API (pkg/providers/stt), a
// websocket-backed streaming worker (pkg/worker/wsworker), an in-process
// memoizing recognizer (pkg/worker/inprocess), or a deterministic test
// double (pkg/worker/mock).
type Engine interface {
	// Name identifies the engine for logging and stats.
	Name() string
	// WarmUp signals readiness. Callers apply their own timeout and
	// treat a failure as "mark unavailable", not "abort everything".
	WarmUp(ctx context.Context) error
	// Transcribe returns the fragments found in the WAV file at
	// wavPath. Failures return an empty (nil) slice with a non-nil
	// error; the caller (pkg/runner) is responsible for registering an
	// empty result with the reorder buffer regardless, to preserve
	// ordering.
	Transcribe(ctx context.Context, wavPath string) ([]Fragment, error)
}
