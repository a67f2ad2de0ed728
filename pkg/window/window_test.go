package window

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/ring"
)

const sampleRate = 16000

func silence(n int) []byte { return make([]byte, n*2) }

func tone(n int, amp int16) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amp
		if i%2 == 1 {
			v = -amp
		}
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)
	}
	return buf
}

type capture struct {
	paths  []string
	starts []float64
}

func (c *capture) ready(path string, wStart float64) {
	c.paths = append(c.paths, path)
	c.starts = append(c.starts, wStart)
}

func newTestBuffer(t *testing.T, cfg Config, paused func() bool) (*Buffer, *ring.Buffer, *capture) {
	t.Helper()
	r := ring.New(10.0, sampleRate)
	cap := &capture{}
	dir := t.TempDir()
	if paused == nil {
		paused = func() bool { return false }
	}
	wb := New(r, cfg, paused, cap.ready, dir, nil)
	return wb, r, cap
}

// feed writes n samples of frame data across the ring and window buffer in
// 10ms (160-sample) chunks, advancing the clock.
func feed(wb *Buffer, r *ring.Buffer, t0 float64, data []byte) float64 {
	const chunkSamples = 160
	chunkBytes := chunkSamples * 2
	t := t0
	for off := 0; off < len(data); off += chunkBytes {
		end := off + chunkBytes
		if end > len(data) {
			end = len(data)
		}
		frame := data[off:end]
		t += float64(len(frame)/2) / sampleRate
		wb.OnFrame(frame, t)
	}
	return t
}

func TestSingleShortPhraseEmitsOneWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 3.0
	wb, r, cap := newTestBuffer(t, cfg, nil)

	// seed the ring with a bit of leading silence so pre-roll has something
	// to copy.
	feed(wb, r, 0, silence(int(0.5*sampleRate)))

	wb.OnSpeechDetected(0.5)
	tEnd := feed(wb, r, 0.5, tone(int(1.0*sampleRate), 5000))
	// trailing silence; the buffer stays below W, so no word-boundary cut
	// happens and the early-silence event ends the window
	feed(wb, r, tEnd, silence(int(0.2*sampleRate)))
	wb.OnSilenceDetected(tEnd + 0.2 + 1.0)

	if len(cap.paths) != 1 {
		t.Fatalf("expected exactly one emitted window, got %d", len(cap.paths))
	}
	if _, err := os.Stat(cap.paths[0]); err != nil {
		t.Fatalf("expected window wav file to exist: %v", err)
	}
	if filepath.Ext(cap.paths[0]) != ".wav" {
		t.Fatalf("expected .wav extension, got %s", cap.paths[0])
	}
}

func TestLongSpeechChainsAcrossWindows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 1.0
	cfg.MaxExtension = 0.2
	cfg.MaxExtensionRatio = 1.0
	wb, r, cap := newTestBuffer(t, cfg, nil)

	wb.OnSpeechDetected(0.0)
	// 4 seconds of continuous loud tone, well beyond one window's capacity:
	// with no word boundary ever found, extension-limit cutoffs must chain
	// repeatedly rather than drop audio.
	feed(wb, r, 0.0, tone(int(4.0*sampleRate), 6000))

	if len(cap.paths) < 2 {
		t.Fatalf("expected multiple chained windows for continuous speech, got %d", len(cap.paths))
	}
	// chained windows must start exactly where the previous one ended (no
	// gap, no overlap) — verify monotonic non-decreasing starts.
	for i := 1; i < len(cap.starts); i++ {
		if cap.starts[i] < cap.starts[i-1] {
			t.Fatalf("window starts must be non-decreasing, got %v", cap.starts)
		}
	}
}

func TestPausedDropsFramesAndEdges(t *testing.T) {
	cfg := DefaultConfig()
	paused := true
	wb, r, cap := newTestBuffer(t, cfg, func() bool { return paused })

	wb.OnSpeechDetected(0.0)
	feed(wb, r, 0.0, tone(int(1.0*sampleRate), 5000))
	wb.OnSilenceDetected(2.0)

	if len(cap.paths) != 0 {
		t.Fatalf("expected no windows emitted while paused, got %d", len(cap.paths))
	}
	if r.FilledBytes() != 0 {
		t.Fatalf("expected ring untouched while paused, got %d filled bytes", r.FilledBytes())
	}
}

func TestEarlySilenceTerminatesWithoutChaining(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 5.0 // large enough that we won't hit extension
	wb, r, cap := newTestBuffer(t, cfg, nil)

	wb.OnSpeechDetected(0.0)
	tEnd := feed(wb, r, 0.0, tone(int(0.8*sampleRate), 5000))
	wb.OnSilenceDetected(tEnd + 1.0)

	if len(cap.paths) != 1 {
		t.Fatalf("expected exactly one window on early silence termination, got %d", len(cap.paths))
	}
}

func TestWordBoundaryFindsTrailingSilenceRun(t *testing.T) {
	bps := sampleRate * 2
	speech := tone(int(0.2*sampleRate), 6000)
	hush := silence(int(0.1 * sampleRate))
	buf := append(append([]byte{}, speech...), hush...)

	off, found := findWordBoundary(buf, bps, 0.05, 0.007)
	if !found {
		t.Fatal("expected to find a word boundary in trailing silence")
	}
	if off < len(speech) {
		t.Fatalf("expected boundary offset within the trailing silence run, got %d (speech ends at %d)", off, len(speech))
	}
}
