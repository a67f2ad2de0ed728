// Package inprocess implements the in-process transcription variant: a
// worker.Engine that adds no transport of its own. It wraps any other
// Engine (local or remote) and memoizes results by WAV content hash,
// useful both for a genuinely local
// recognizer and for absorbing duplicate windows produced by
// overlapping word-boundary cuts.
package inprocess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
)

// Engine memoizes an inner worker.Engine's results by WAV file content
// hash, bounded to a fixed number of cached entries.
type Engine struct {
	inner worker.Engine
	cache *lru.Cache[string, []worker.Fragment]
}

// New wraps inner with an LRU cache holding up to capacity entries.
func New(inner worker.Engine, capacity int) (*Engine, error) {
	c, err := lru.New[string, []worker.Fragment](capacity)
	if err != nil {
		return nil, err
	}
	return &Engine{inner: inner, cache: c}, nil
}

func (e *Engine) Name() string { return "inprocess(" + e.inner.Name() + ")" }

func (e *Engine) WarmUp(ctx context.Context) error { return e.inner.WarmUp(ctx) }

func (e *Engine) Transcribe(ctx context.Context, wavPath string) ([]worker.Fragment, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	frags, err := e.inner.Transcribe(ctx, wavPath)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, frags)
	return frags, nil
}
