// Package runner implements the runner pool and dispatcher (C6): a
// central bounded intake queue feeding N per-worker FIFO queues, with
// round-robin-then-shortest-queue selection and single-flight processing
// per worker. Grounded on fankserver-discord-voice-mcp's SmartUserBuffer,
// whose non-blocking channel send with an overflow-drop metric is the
// model for the intake queue's oldest-drop behavior.
package runner

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
)

// Restarter is implemented by engines that can be restarted after a
// transcribe timeout. Engines that cannot restart simply keep being reused.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Task is one window routed through the pool.
type Task struct {
	Seq     uint64
	WavPath string
	WStart  float64
}

// Result is handed to the pool's onResult callback after a worker
// finishes (or times out on) a task.
type Result struct {
	Task Task
	Frags []worker.Fragment
	Err   error
}

// Pool implements C6. Callers must call Start before Submit.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	engines   []worker.Engine
	available []bool
	queues    [][]Task
	processing []bool
	lastSelected int

	intake    []Task
	intakeCap int

	transcribeTimeout time.Duration
	onResult          func(Result)

	droppedCount int
	closed       bool
}

// New creates a Pool over engines with the given bounded intake
// capacity and per-call transcribe timeout. onResult is invoked once per
// task, exactly once, in no particular cross-runner order — ordering is
// the reorder buffer's job, not the pool's. It runs on the runner's own
// goroutine for a processed task, and on Submit's caller for a task
// dropped by intake overflow.
func New(engines []worker.Engine, intakeCap int, transcribeTimeout time.Duration, onResult func(Result)) *Pool {
	n := len(engines)
	p := &Pool{
		engines:           engines,
		available:         make([]bool, n),
		queues:            make([][]Task, n),
		processing:        make([]bool, n),
		lastSelected:      -1,
		intakeCap:         intakeCap,
		transcribeTimeout: transcribeTimeout,
		onResult:          onResult,
	}
	for i := range p.available {
		p.available[i] = true
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// WarmUp calls WarmUp on every engine with the given per-engine timeout.
// An engine that fails or times out is marked unavailable rather than
// aborting the whole pool.
func (p *Pool) WarmUp(ctx context.Context, timeout time.Duration) {
	for i, e := range p.engines {
		wctx, cancel := context.WithTimeout(ctx, timeout)
		err := e.WarmUp(wctx)
		cancel()
		p.mu.Lock()
		p.available[i] = err == nil
		p.mu.Unlock()
	}
}

// Start launches the dispatcher and one single-flight goroutine per
// runner. It returns once Stop is called and every goroutine has exited.
func (p *Pool) Start(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1 + len(p.engines))

	go func() {
		defer wg.Done()
		p.dispatchLoop()
	}()
	for i := range p.engines {
		i := i
		go func() {
			defer wg.Done()
			p.runnerLoop(ctx, i)
		}()
	}
	wg.Wait()
}

// Stop signals every goroutine to exit once its current work drains.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Submit enqueues task into the bounded intake queue. If the queue is
// already at capacity the oldest pending task is dropped, its WAV file
// unlinked, and an empty result with an error is passed to onResult so
// its sequence number is still registered. Submit never blocks.
func (p *Pool) Submit(task Task) {
	p.mu.Lock()
	p.intake = append(p.intake, task)
	var droppedTask Task
	dropped := false
	if len(p.intake) > p.intakeCap {
		droppedTask = p.intake[0]
		p.intake = p.intake[1:]
		p.droppedCount++
		dropped = true
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	if dropped {
		os.Remove(droppedTask.WavPath)
		p.onResult(Result{Task: droppedTask, Err: errors.New("runner: task dropped by intake overflow")})
	}
}

func (p *Pool) dispatchLoop() {
	for {
		p.mu.Lock()
		for len(p.intake) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed && len(p.intake) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.intake[0]
		p.intake = p.intake[1:]
		idx := p.selectRunnerLocked()
		p.queues[idx] = append(p.queues[idx], task)
		p.lastSelected = idx
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}

// selectRunnerLocked implements round-robin-then-shortest-queue
// selection: prefer the next idle, empty-queued runner after the last
// one picked; fall back to whichever available runner has the
// shortest queue. The caller must hold p.mu.
func (p *Pool) selectRunnerLocked() int {
	n := len(p.engines)
	start := (p.lastSelected + 1) % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if p.available[idx] && !p.processing[idx] && len(p.queues[idx]) == 0 {
			return idx
		}
	}
	best, bestLen := -1, int(^uint(0)>>1)
	for idx := 0; idx < n; idx++ {
		if !p.available[idx] {
			continue
		}
		if len(p.queues[idx]) < bestLen {
			best, bestLen = idx, len(p.queues[idx])
		}
	}
	if best != -1 {
		return best
	}
	// every engine unavailable: pick the shortest queue anyway rather
	// than stall forever.
	for idx := 0; idx < n; idx++ {
		if len(p.queues[idx]) < bestLen {
			best, bestLen = idx, len(p.queues[idx])
		}
	}
	return best
}

func (p *Pool) runnerLoop(ctx context.Context, i int) {
	for {
		p.mu.Lock()
		for len(p.queues[i]) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed && len(p.queues[i]) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queues[i][0]
		p.queues[i] = p.queues[i][1:]
		p.processing[i] = true
		p.mu.Unlock()

		result := p.runOne(ctx, i, task)

		p.mu.Lock()
		p.processing[i] = false
		p.cond.Broadcast()
		p.mu.Unlock()

		p.onResult(result)
		os.Remove(task.WavPath)
	}
}

func (p *Pool) runOne(ctx context.Context, i int, task Task) Result {
	tctx, cancel := context.WithTimeout(ctx, p.transcribeTimeout)
	defer cancel()

	frags, err := p.engines[i].Transcribe(tctx, task.WavPath)
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		if r, ok := p.engines[i].(Restarter); ok {
			go r.Restart(context.Background())
		}
		return Result{Task: task, Frags: nil, Err: worker.ErrTranscribeTimeout}
	}
	return Result{Task: task, Frags: frags, Err: err}
}

// IntakeLen reports the current intake queue depth.
func (p *Pool) IntakeLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.intake)
}

// QueueLen reports runner i's queue depth.
func (p *Pool) QueueLen(i int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues[i])
}

// IsProcessing reports whether runner i is currently inside a Transcribe
// call, for QueueStats' per_runner.is_processing (§6).
func (p *Pool) IsProcessing(i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processing[i]
}

// IntakeCap reports the bounded intake queue's configured capacity, for
// QueueStats' intake_cap (§6).
func (p *Pool) IntakeCap() int {
	return p.intakeCap
}

// DroppedCount reports how many tasks have been dropped by intake
// overflow since the pool was created.
func (p *Pool) DroppedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.droppedCount
}
