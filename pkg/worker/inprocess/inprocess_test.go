package inprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker/mock"
)

func TestRepeatedWavIsServedFromCache(t *testing.T) {
	inner := mock.New("inner", "cached text")
	e, err := New(inner, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "w.wav")
	os.WriteFile(path, []byte("identical bytes"), 0o644)

	first, err := e.Transcribe(context.Background(), path)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	second, err := e.Transcribe(context.Background(), path)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(inner.Calls()) != 1 {
		t.Fatalf("expected inner engine called once, got %d calls", len(inner.Calls()))
	}
	if first[0].Text != second[0].Text {
		t.Fatalf("expected identical cached fragments")
	}
}

func TestDifferentContentBypassesCache(t *testing.T) {
	inner := mock.New("inner", "text")
	e, _ := New(inner, 4)
	dir := t.TempDir()

	p1 := filepath.Join(dir, "a.wav")
	p2 := filepath.Join(dir, "b.wav")
	os.WriteFile(p1, []byte("aaa"), 0o644)
	os.WriteFile(p2, []byte("bbb"), 0o644)

	e.Transcribe(context.Background(), p1)
	e.Transcribe(context.Background(), p2)

	if len(inner.Calls()) != 2 {
		t.Fatalf("expected inner engine called for each distinct file, got %d", len(inner.Calls()))
	}
}

var _ worker.Engine = (*Engine)(nil)
