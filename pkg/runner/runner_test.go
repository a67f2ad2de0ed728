package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker/mock"
)

func tempWav(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOutOfOrderWorkerCompletionBothResultsArrive(t *testing.T) {
	dir := t.TempDir()
	slow := mock.New("r0", "A")
	fast := mock.New("r1", "B")
	hang := make(chan struct{})
	slow.Hang(hang)

	var mu sync.Mutex
	var results []Result
	pool := New([]worker.Engine{slow, fast}, 10, time.Second, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Start(ctx)
	defer pool.Stop()

	pool.Submit(Task{Seq: 0, WavPath: tempWav(t, dir, "w0.wav")})
	pool.Submit(Task{Seq: 1, WavPath: tempWav(t, dir, "w1.wav")})

	time.Sleep(100 * time.Millisecond)
	close(hang)
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// worker-1 (fast) must have finished before worker-0 (slow) was unblocked.
	if results[0].Task.Seq != 1 {
		t.Fatalf("expected seq=1 to complete first, got %+v", results[0])
	}
}

func TestIntakeOverflowDropsOldest(t *testing.T) {
	dir := t.TempDir()
	hang := make(chan struct{}) // never closed: both workers stay busy forever
	e0 := mock.New("r0", "A")
	e1 := mock.New("r1", "B")
	e0.Hang(hang)
	e1.Hang(hang)

	pool := New([]worker.Engine{e0, e1}, 10, time.Hour, func(Result) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Start(ctx)
	defer pool.Stop()

	var paths []string
	for i := 0; i < 12; i++ {
		p := tempWav(t, dir, "w"+string(rune('a'+i))+".wav")
		paths = append(paths, p)
		pool.Submit(Task{Seq: uint64(i), WavPath: p})
	}
	time.Sleep(100 * time.Millisecond)

	total := pool.IntakeLen() + pool.QueueLen(0) + pool.QueueLen(1) + 2 // +2 processing
	if total > 12 {
		t.Fatalf("expected no more than 12 tasks tracked total, got %d", total)
	}
	if pool.DroppedCount() < 2 {
		t.Fatalf("expected at least 2 drops for 12 submits into a 10-capacity intake with 2 busy runners, got %d", pool.DroppedCount())
	}
	if pool.IntakeCap() != 10 {
		t.Fatalf("expected IntakeCap to report the configured capacity 10, got %d", pool.IntakeCap())
	}
	if !pool.IsProcessing(0) || !pool.IsProcessing(1) {
		t.Fatalf("expected both runners to report IsProcessing=true while hung on transcribe, got %v %v", pool.IsProcessing(0), pool.IsProcessing(1))
	}
	close(hang)
}

func TestTranscribeTimeoutYieldsEmptyResult(t *testing.T) {
	dir := t.TempDir()
	e := mock.New("r0", "A")
	hang := make(chan struct{}) // never closed: forces the timeout
	e.Hang(hang)

	resultCh := make(chan Result, 1)
	pool := New([]worker.Engine{e}, 10, 50*time.Millisecond, func(r Result) {
		resultCh <- r
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Start(ctx)
	defer pool.Stop()
	defer close(hang)

	pool.Submit(Task{Seq: 0, WavPath: tempWav(t, dir, "w.wav")})

	select {
	case r := <-resultCh:
		if len(r.Frags) != 0 {
			t.Fatalf("expected empty fragments on timeout, got %+v", r.Frags)
		}
		if r.Err == nil {
			t.Fatal("expected a timeout error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the timeout result")
	}
}
