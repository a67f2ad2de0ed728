// Package pipeline wires C1-C6 into the complete audio-to-ordered-
// transcript pipeline (C7): it owns the stream clock, feeds incoming
// frames to the pause controller, VAD, ring and window buffer, routes
// saved windows through the runner pool, and joins worker results back
// into the reorder buffer and transcript sink. Grounded on the teacher's
// Orchestrator (pkg/orchestrator/orchestrator.go), which plays the same
// "own every subsystem, wire one-way observers" role for its own domain.
package pipeline

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/clock"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/lokutorlog"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/pause"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/reorder"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/ring"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/runner"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/sink"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/vad"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/window"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/worker"
)

// Diarizer assigns a speaker label to an absolute time range. It is the
// "interfaces defined but internals are not core" hook for speaker
// diarization; when nil, every segment is tagged
// with speaker 1.
type Diarizer interface {
	Label(startAbs, endAbs float64) int
}

// Config collects every tunable named in the configuration table (§6),
// plus the sample rate the capture driver is assumed to deliver.
type Config struct {
	SampleRate int

	VADThreshold   float64
	VADSilenceHold float64

	Window window.Config

	WorkerCount       int
	IntakeCapacity    int
	TranscribeTimeout time.Duration
	WarmupTimeout     time.Duration

	TempDir string
}

// DefaultConfig mirrors defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		VADThreshold:      vad.DefaultThreshold,
		VADSilenceHold:    vad.DefaultSilenceHold,
		Window:            window.DefaultConfig(),
		WorkerCount:       2,
		IntakeCapacity:    10,
		TranscribeTimeout: 30 * time.Second,
		WarmupTimeout:     45 * time.Second,
		TempDir:           os.TempDir(),
	}
}

// QueueStats is a snapshot of C6's observable queue depths, suitable for
// a status line. Carries §6's QueueStats{ intake_count, intake_cap,
// per_runner[{queue_count, is_processing}], reorder_count }, with
// per_runner split into RunnerQueues/RunnerProcessing and reorder_count
// reported as Pending, plus the Dropped and NextExpected counters.
type QueueStats struct {
	IntakeLen        int
	IntakeCap        int
	RunnerQueues     []int
	RunnerProcessing []bool
	Dropped          int
	NextExpected     uint64
	Pending          int
}

// Pipeline is the top-level C7 orchestrator.
type Pipeline struct {
	cfg    Config
	logger lokutorlog.Logger

	clockMu sync.Mutex
	clock   *clock.Manual

	pause    *pause.Controller
	detector *vad.Detector
	ring     *ring.Buffer
	window   *window.Buffer
	pool     *runner.Pool
	reorder  *reorder.Buffer
	sink     *sink.Memory
	diarizer Diarizer

	seq uint64

	onStats func(QueueStats)
}

// New builds a Pipeline ready to accept frames via PushFrame. engines
// must contain at least one worker.Engine; Run launches the runner
// pool's goroutines.
func New(cfg Config, engines []worker.Engine, logger lokutorlog.Logger, diarizer Diarizer) *Pipeline {
	if logger == nil {
		logger = lokutorlog.NoOpLogger{}
	}

	ringSeconds := 3*cfg.Window.WindowSize + cfg.Window.MaxExtension
	r := ring.New(ringSeconds, cfg.SampleRate)
	pc := pause.New()
	sinkM := sink.NewMemory()
	reorderBuf := reorder.New(sinkM)

	p := &Pipeline{
		cfg:      cfg,
		logger:   logger,
		clock:    clock.NewManual(),
		pause:    pc,
		ring:     r,
		reorder:  reorderBuf,
		sink:     sinkM,
		diarizer: diarizer,
	}

	p.window = window.New(r, cfg.Window, pc.Paused, p.onWindowReady, cfg.TempDir, logger)
	p.detector = vad.New(vad.Config{
		Threshold:   cfg.VADThreshold,
		SilenceHold: cfg.VADSilenceHold,
		ClockNow:    p.now,
		Pause:       pc,
	})
	p.pool = runner.New(engines, cfg.IntakeCapacity, cfg.TranscribeTimeout, p.onResult)

	return p
}

// now returns the current stream-clock time from the pipeline's own
// clock.Manual, which PushFrame advances by each frame's duration, rather
// than calling a system timer inline.
func (p *Pipeline) now() float64 {
	p.clockMu.Lock()
	defer p.clockMu.Unlock()
	return p.clock.Now()
}

// WarmUp warms every engine up to cfg.WarmupTimeout each, marking any
// that fail as unavailable (the pool still functions with the rest).
func (p *Pipeline) WarmUp(ctx context.Context) {
	p.pool.WarmUp(ctx, p.cfg.WarmupTimeout)
}

// Run launches the runner pool's goroutines and the heartbeat timer; it
// blocks until Stop is called and the pool's goroutines have drained.
// Canceling ctx stops the heartbeat and cancels in-flight transcribe
// calls, but does not by itself make Run return.
func (p *Pipeline) Run(ctx context.Context) {
	go p.runHeartbeat(ctx)
	p.pool.Start(ctx)
}

// runHeartbeat implements §4.4's coarse backstop timer: every step_sec
// (or the nominal window size when step_sec is 0) it force-emits a
// window that has reached full size while speech is ongoing. It never
// starts a window and window.Buffer.Tick is itself a no-op under pause.
func (p *Pipeline) runHeartbeat(ctx context.Context) {
	interval := p.cfg.Window.StepSec
	if interval <= 0 {
		interval = p.cfg.Window.WindowSize
	}
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.window.Tick(p.now())
		}
	}
}

// Stop signals the runner pool to drain and exit.
func (p *Pipeline) Stop() {
	p.pool.Stop()
}

// SetManualPause mirrors manual pause toggle (e.g. a
// hotkey), independent of VAD-driven auto-silence.
func (p *Pipeline) SetManualPause(on bool) {
	p.pause.SetManual(on)
}

// PushFrame ingests one PCM frame. frame's sample count advances the
// stream clock by its duration; the capture thread is assumed to be the
// sole caller.
func (p *Pipeline) PushFrame(frame []byte) {
	n := len(frame) / 2
	p.clockMu.Lock()
	t := p.clock.Advance(float64(n) / float64(p.cfg.SampleRate))
	p.clockMu.Unlock()

	event := p.detector.Process(frame)
	p.window.OnFrame(frame, t)

	if event != nil {
		switch event.Type {
		case vad.SpeechDetected:
			p.window.OnSpeechDetected(event.Timestamp)
		case vad.SilenceDetected:
			p.window.OnSilenceDetected(event.Timestamp)
		}
	}
}

// onWindowReady is window.ReadyFunc: it assigns the next sequence number
// and routes the saved WAV into the runner pool.
func (p *Pipeline) onWindowReady(wavPath string, wStart float64) {
	seq := atomic.AddUint64(&p.seq, 1) - 1
	p.pool.Submit(runner.Task{Seq: seq, WavPath: wavPath, WStart: wStart})
	p.emitStats()
}

// onResult is runner.Pool's onResult callback: it translates
// window-local fragments to absolute time, joins speaker labels, and
// flushes through the reorder buffer.
func (p *Pipeline) onResult(res runner.Result) {
	if res.Err != nil {
		p.logger.Warn("worker result error", "seq", res.Task.Seq, "err", res.Err)
	}

	segments := make([]reorder.Segment, 0, len(res.Frags))
	for _, f := range res.Frags {
		startAbs := res.Task.WStart + f.StartSec
		endAbs := res.Task.WStart + f.EndSec
		speaker := 1
		if p.diarizer != nil {
			speaker = p.diarizer.Label(startAbs, endAbs)
		}
		segments = append(segments, reorder.Segment{
			Text:      f.Text,
			StartAbs:  startAbs,
			EndAbs:    endAbs,
			SpeakerID: speaker,
		})
	}
	p.reorder.Insert(res.Task.Seq, segments)
	p.emitStats()
}

// Sink exposes the transcript sink for readers.
func (p *Pipeline) Sink() *sink.Memory { return p.sink }

// Stats returns a snapshot of current queue depths.
func (p *Pipeline) Stats() QueueStats {
	queues := make([]int, p.cfg.WorkerCount)
	processing := make([]bool, p.cfg.WorkerCount)
	for i := range queues {
		queues[i] = p.pool.QueueLen(i)
		processing[i] = p.pool.IsProcessing(i)
	}
	return QueueStats{
		IntakeLen:        p.pool.IntakeLen(),
		IntakeCap:        p.pool.IntakeCap(),
		RunnerQueues:     queues,
		RunnerProcessing: processing,
		Dropped:          p.pool.DroppedCount(),
		NextExpected:     p.reorder.NextExpected(),
		Pending:          p.reorder.Pending(),
	}
}

// OnStats registers a callback invoked after every dispatch/result event
// with the latest QueueStats snapshot.
func (p *Pipeline) OnStats(fn func(QueueStats)) {
	p.onStats = fn
}

func (p *Pipeline) emitStats() {
	if p.onStats != nil {
		p.onStats(p.Stats())
	}
}
