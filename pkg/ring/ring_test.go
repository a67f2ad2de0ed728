package ring

import (
	"bytes"
	"testing"
)

const sampleRate = 16000

func frame(vals ...int16) []byte {
	buf := make([]byte, len(vals)*2)
	for i, v := range vals {
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)
	}
	return buf
}

func TestWriteAndCopyRangeNoWrap(t *testing.T) {
	b := New(1.0, sampleRate) // 1 second capacity, plenty of room
	f := frame(1, 2, 3, 4)    // 4 samples = 0.00025s @16kHz
	dur := float64(len(f)) / 2 / sampleRate
	b.Write(f, dur)

	start, end := b.RingRange()
	if start != 0 {
		t.Fatalf("expected ring_start_t=0, got %v", start)
	}
	if end != dur {
		t.Fatalf("expected ring_end_t=%v, got %v", dur, end)
	}

	got := b.CopyRange(0, dur)
	if !bytes.Equal(got, f) {
		t.Fatalf("expected %v, got %v", f, got)
	}
}

func TestCopyRangeOutOfRangeReturnsZero(t *testing.T) {
	b := New(1.0, sampleRate)
	f := frame(1, 2, 3, 4)
	dur := float64(len(f)) / 2 / sampleRate
	b.Write(f, dur)

	// tFrom before ring_start_t must copy zero, not shift into older data
	got := b.CopyRange(-1.0, dur)
	if len(got) != 0 {
		t.Fatalf("expected zero bytes for out-of-range tFrom, got %d", len(got))
	}
}

func TestLogicalOffsetRightBoundary(t *testing.T) {
	b := New(1.0, sampleRate)
	f := frame(1, 2, 3, 4)
	dur := float64(len(f)) / 2 / sampleRate
	b.Write(f, dur)

	off, ok := b.LogicalOffset(dur)
	if !ok {
		t.Fatal("expected right-boundary equality to be valid")
	}
	if off != b.FilledBytes() {
		t.Fatalf("expected offset == filledBytes (%d), got %d", b.FilledBytes(), off)
	}
}

func TestOverflowAdvancesRingStart(t *testing.T) {
	// tiny buffer: 10 samples capacity
	b := &Buffer{data: make([]byte, 20), bytesPerSecond: sampleRate * 2}

	first := frame(1, 2, 3, 4, 5, 6, 7, 8, 9, 10) // fills exactly
	b.Write(first, 10.0/sampleRate)
	if b.FilledBytes() != 20 {
		t.Fatalf("expected full buffer, got %d", b.FilledBytes())
	}

	second := frame(11, 12) // overflow by 4 bytes (2 samples)
	b.Write(second, 12.0/sampleRate)

	start, end := b.RingRange()
	if end != 12.0/sampleRate {
		t.Fatalf("expected ring_end_t advanced, got %v", end)
	}
	if start <= 0 {
		t.Fatalf("expected ring_start_t to advance past zero on overflow, got %v", start)
	}

	// the buffer still reports the invariant ring_end_t - ring_start_t == filled/bps
	gotDur := end - start
	wantDur := float64(b.FilledBytes()) / float64(b.bytesPerSecond)
	if diff := gotDur - wantDur; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("invariant violated: end-start=%v filled/bps=%v", gotDur, wantDur)
	}
}

func TestCopyRangeEvenByteLength(t *testing.T) {
	b := New(1.0, sampleRate)
	f := frame(1, 2, 3, 4, 5)
	dur := float64(len(f)) / 2 / sampleRate
	b.Write(f, dur)

	got := b.CopyRange(0, dur)
	if len(got)%2 != 0 {
		t.Fatalf("expected even byte length, got %d", len(got))
	}
}
