// Package mock provides a deterministic worker.Engine test double, used
// by pipeline and runner tests.
package mock

import (
	"context"
	"sync"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
)

// Engine returns a fixed fragment list (by default, the whole file is
// one fragment with Text) for every call, or can be configured per-call
// with SetScript. It records every wavPath it was asked to transcribe.
type Engine struct {
	mu       sync.Mutex
	name     string
	text     string
	script   map[string][]worker.Fragment
	hang     chan struct{} // if set, Transcribe blocks until closed or ctx.Done
	calls    []string
	warmErr  error
}

// New creates a mock engine named name that returns text as a single
// fragment for any WAV it is asked to transcribe.
func New(name, text string) *Engine {
	return &Engine{name: name, text: text, script: make(map[string][]worker.Fragment)}
}

// SetScript overrides the fragments returned for a specific wavPath.
func (e *Engine) SetScript(wavPath string, fragments []worker.Fragment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.script[wavPath] = fragments
}

// Hang makes the next Transcribe call block until ch is closed or the
// context is canceled — used to simulate T6 (worker timeout).
func (e *Engine) Hang(ch chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hang = ch
}

// FailWarmUp makes WarmUp return err.
func (e *Engine) FailWarmUp(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warmErr = err
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) WarmUp(ctx context.Context) error {
	e.mu.Lock()
	err := e.warmErr
	e.mu.Unlock()
	return err
}

func (e *Engine) Transcribe(ctx context.Context, wavPath string) ([]worker.Fragment, error) {
	e.mu.Lock()
	e.calls = append(e.calls, wavPath)
	hang := e.hang
	e.hang = nil
	scripted, ok := e.script[wavPath]
	text := e.text
	e.mu.Unlock()

	if hang != nil {
		select {
		case <-hang:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if ok {
		return scripted, nil
	}
	return []worker.Fragment{{StartSec: 0, EndSec: 0, Text: text}}, nil
}

// Calls returns every wavPath passed to Transcribe, in order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}
