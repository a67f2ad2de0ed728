// Package window implements the adaptive windowing buffer (C4), the
// hardest subsystem in the pipeline: it converts a continuous ring-backed
// stream into variable-length WAV windows that start at speech onset,
// end at a natural inter-word pause when possible, chain seamlessly
// during continuous speech, and never lose or overlap audio.
//
// Grounded on a dual active/processing buffer pattern used for
// VAD-triggered segment emission (adapted here to an in-place
// extend-then-cut buffer, since the word-boundary search here operates
// on a single growing buffer rather than two alternating ones) and on an
// RMS-based silence check for locating word boundaries.
package window

import (
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/audiowav"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/lokutorlog"
	"github.com/lokutor-ai/lokutor-transcribe/pkg/ring"
)

type state int

const (
	idle state = iota
	collecting
	extending
)

// Config mirrors the configuration table entries relevant to
// C4.
type Config struct {
	WindowSize        float64 // W, seconds
	MaxExtension      float64 // E, seconds
	MaxExtensionRatio float64 // R
	PreRoll           float64 // P, seconds
	WordPause         float64 // Pₚ, seconds
	SilenceThreshold  float64 // θ, matches VAD's
	StepSec           float64 // heartbeat period; 0 => use W
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:        3.0,
		MaxExtension:      0.5,
		MaxExtensionRatio: 1.5,
		PreRoll:           0.4,
		WordPause:         0.05,
		SilenceThreshold:  0.007,
		StepSec:           0.0,
	}
}

// ReadyFunc is invoked when a window is saved: wavPath is a temp file the
// caller owns (ownership transfers to whoever handles the event, per
// window-task lifecycle) and wStart is the window's absolute
// stream-clock start time.
type ReadyFunc func(wavPath string, wStart float64)

// Buffer implements the window state machine: Idle, Collecting,
// Extending. All mutation happens under a single lock — the capture
// thread is the only caller, matching every other core component's
// single-writer assumption.
type Buffer struct {
	mu      sync.Mutex
	cfg     Config
	ring    *ring.Buffer
	paused  func() bool
	ready   ReadyFunc
	tempDir string
	logger  lokutorlog.Logger

	state       state
	buf         []byte
	wStart      float64
	hasSpeech   bool
	lastSpeechT float64
}

// New creates a Buffer backed by r, emitting windows via ready. paused
// reports the current pause state (C1); when it returns true, incoming
// frames and speech/silence edges are dropped entirely. logger records
// §7's WavWriteFailed events; a nil logger falls back to
// lokutorlog.NoOpLogger.
func New(r *ring.Buffer, cfg Config, paused func() bool, ready ReadyFunc, tempDir string, logger lokutorlog.Logger) *Buffer {
	if logger == nil {
		logger = lokutorlog.NoOpLogger{}
	}
	return &Buffer{
		cfg:     cfg,
		ring:    r,
		paused:  paused,
		ready:   ready,
		tempDir: tempDir,
		logger:  logger,
		state:   idle,
	}
}

func (b *Buffer) bytesPerSecond() int {
	return b.ring.BytesPerSecond()
}

func (b *Buffer) capacityBytes() int {
	n := int((b.cfg.WindowSize + b.cfg.MaxExtension) * float64(b.bytesPerSecond()))
	return n - n%2
}

func (b *Buffer) baseBytes() int {
	n := int(b.cfg.WindowSize * float64(b.bytesPerSecond()))
	return n - n%2
}

func (b *Buffer) extensionLimitBytes() int {
	limitSec := math.Min(b.cfg.MaxExtension, b.cfg.WindowSize*b.cfg.MaxExtensionRatio)
	n := int(limitSec * float64(b.bytesPerSecond()))
	return n - n%2
}

// OnSpeechDetected starts (or restarts, from Idle) collection with a
// pre-roll lookback into the ring. No-op if already collecting or if
// paused.
func (b *Buffer) OnSpeechDetected(tSpeech float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused() || b.state != idle {
		return
	}

	ringStart, _ := b.ring.RingRange()
	wStart := tSpeech - b.cfg.PreRoll
	if wStart < ringStart {
		wStart = ringStart
	}
	if wStart < 0 {
		wStart = 0
	}

	seed := b.ring.CopyRange(wStart, tSpeech)
	if seed == nil {
		seed = []byte{}
	}

	b.wStart = wStart
	b.buf = seed
	b.hasSpeech = true
	b.lastSpeechT = tSpeech
	b.state = collecting
}

// OnSilenceDetected implements the early-silence-termination rule: a
// sustained silence while genuinely collecting speech ends the window
// immediately and returns to Idle rather than chaining, because a long
// silence means the speaker stopped.
func (b *Buffer) OnSilenceDetected(t float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused() || b.state != collecting || !b.hasSpeech {
		return
	}
	durSec := float64(len(b.buf)) / float64(b.bytesPerSecond())
	if durSec >= 0.5 && t-b.lastSpeechT >= 1.0 {
		b.cutAndEmit(len(b.buf), t, false)
	}
}

// OnFrame ingests one PCM frame at stream-clock time tNow. Frames are
// dropped (no ring write, no collection) while paused — C4's contract is
// to reject window saves and drop incoming frames under pause.
func (b *Buffer) OnFrame(frame []byte, tNow float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused() {
		return
	}
	b.ring.Write(frame, tNow)

	if b.state == idle {
		return
	}

	b.appendToBuf(frame)

	base := b.baseBytes()
	if b.state == collecting && len(b.buf) >= base {
		b.state = extending
	}

	if b.state == extending {
		if off, found := findWordBoundary(b.buf, b.bytesPerSecond(), b.cfg.WordPause, b.cfg.SilenceThreshold); found {
			b.cutAndEmit(off, tNow, true)
			return
		}
		extended := len(b.buf) - base
		if extended >= b.extensionLimitBytes() {
			b.cutAndEmit(len(b.buf), tNow, true)
			return
		}
	}
}

func (b *Buffer) appendToBuf(frame []byte) {
	capBytes := b.capacityBytes()
	remaining := capBytes - len(b.buf)
	if remaining <= 0 {
		return
	}
	chunk := frame
	if len(chunk) > remaining {
		chunk = chunk[:remaining-remaining%2]
	}
	b.buf = append(b.buf, chunk...)
}

// Tick is a coarse heartbeat: it force-emits a window that has reached
// full size while speech is ongoing, as a backstop against a word
// boundary that never arrives. It never starts a window and is a no-op
// under pause.
func (b *Buffer) Tick(tNow float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused() || b.state == idle {
		return
	}
	if len(b.buf) >= b.baseBytes() {
		b.cutAndEmit(len(b.buf), tNow, true)
	}
}

// cutAndEmit truncates the buffer to cutOffset (rounded down to a whole
// sample), writes it out, and either chains into a new Collecting window
// seeded from the ring or returns to Idle.
func (b *Buffer) cutAndEmit(cutOffset int, tNow float64, chain bool) {
	cutOffset -= cutOffset % 2
	if cutOffset > len(b.buf) {
		cutOffset = len(b.buf)
	}
	emitPCM := make([]byte, cutOffset)
	copy(emitPCM, b.buf[:cutOffset])

	wStart := b.wStart
	wEnd := wStart + float64(cutOffset)/float64(b.bytesPerSecond())

	path := filepath.Join(b.tempDir, "window-"+uuid.NewString()+".wav")
	if err := audiowav.WriteFile(path, emitPCM); err != nil {
		b.logger.Warn("window wav write failed, dropping window", "path", path, "w_start", wStart, "err", err)
	} else {
		b.ready(path, wStart)
	}

	if !chain {
		b.state = idle
		b.buf = nil
		return
	}

	seed := b.ring.CopyRange(wEnd, tNow)
	newStart := wEnd
	if seed == nil {
		// ring no longer (or not yet) covers w_end: never copy older
		// data, start empty from now instead.
		newStart = tNow
		seed = []byte{}
	}
	b.wStart = newStart
	b.buf = seed
	b.hasSpeech = false
	b.lastSpeechT = tNow
	b.state = collecting
}

// findWordBoundary analyzes the trailing min(0.3s, duration) of buf in
// 10ms chunks and returns the byte offset of the start of the first
// contiguous run of low-RMS chunks totaling at least pp seconds. Returns
// found=false if no such run exists.
func findWordBoundary(buf []byte, bytesPerSecond int, pp, theta float64) (offset int, found bool) {
	durSec := float64(len(buf)) / float64(bytesPerSecond)
	analyzeSec := math.Min(0.3, durSec)
	analyzeBytes := int(analyzeSec * float64(bytesPerSecond))
	analyzeBytes -= analyzeBytes % 2
	start := len(buf) - analyzeBytes
	if start < 0 {
		start = 0
	}

	const chunkSec = 0.01
	chunkBytes := int(chunkSec * float64(bytesPerSecond))
	chunkBytes -= chunkBytes % 2
	if chunkBytes <= 0 {
		return 0, false
	}
	requiredChunks := int(math.Ceil(pp / chunkSec))
	if requiredChunks < 1 {
		requiredChunks = 1
	}

	runLen := 0
	runStart := -1
	for off := start; off+chunkBytes <= len(buf); off += chunkBytes {
		r := rms(buf[off : off+chunkBytes])
		if r < theta {
			if runLen == 0 {
				runStart = off
			}
			runLen++
			if runLen >= requiredChunks {
				return runStart, true
			}
		} else {
			runLen = 0
			runStart = -1
		}
	}
	return 0, false
}

func rms(chunk []byte) float64 {
	n := len(chunk) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(chunk); i += 2 {
		sample := int16(uint16(chunk[i]) | uint16(chunk[i+1])<<8)
		f := float64(sample) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}

// EnsureTempDir creates dir if it does not exist. Used by callers that
// want a dedicated scratch directory for window WAV files.
func EnsureTempDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
