// Package ring implements the time-indexed circular byte buffer (C3).
// Grounded on tphakala-birdnet-go's CircularBuffer (time-range reads over
// a wraparound byte slice) and RoastedBrotato-audio-translator's Ring
// (wraparound copy logic), adapted to the exact offset/clamp semantics of
// §4.3: right-boundary equality returns an empty span, out-of-range
// copies return zero bytes instead of shifting into older data.
package ring

import "sync"

// BytesPerSample is fixed: 16-bit mono PCM, 2 bytes per sample.
const BytesPerSample = 2

// Buffer is a lossless time-indexed circular buffer. It never drops a
// byte that has not yet been overwritten by capacity pressure, and never
// reports a time range it cannot back with real samples.
type Buffer struct {
	mu             sync.RWMutex
	data           []byte
	writePos       int  // physical index the next byte will be written to
	filledBytes    int  // bytes currently valid (<= cap(data))
	bytesPerSecond int
	ringEndT       float64
	ringStartT     float64
}

// New creates a Buffer with the given capacity in seconds at the given
// sample rate (mono, 16-bit). capacitySeconds should cover 3*W + E per
// §4.3's sizing rule, where W is the nominal window size and E the max
// extension.
func New(capacitySeconds float64, sampleRate int) *Buffer {
	bytesPerSecond := sampleRate * BytesPerSample
	capBytes := int(capacitySeconds * float64(bytesPerSecond))
	// round down to an even byte count (whole samples)
	capBytes -= capBytes % BytesPerSample
	if capBytes < BytesPerSample {
		capBytes = BytesPerSample
	}
	return &Buffer{
		data:           make([]byte, capBytes),
		bytesPerSecond: bytesPerSecond,
	}
}

// Write appends bytes ending at stream-clock time tEnd. If the buffer is
// full, ringStartT advances by the overwritten duration. Every captured
// byte is written exactly once.
func (b *Buffer) Write(frame []byte, tEnd float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(frame)
	if n == 0 {
		b.ringEndT = tEnd
		return
	}

	cap := len(b.data)
	written := 0
	for written < n {
		space := cap - b.writePos
		chunk := n - written
		if chunk > space {
			chunk = space
		}
		copy(b.data[b.writePos:b.writePos+chunk], frame[written:written+chunk])
		b.writePos = (b.writePos + chunk) % cap
		written += chunk
	}

	overflow := 0
	if b.filledBytes+n > cap {
		overflow = b.filledBytes + n - cap
		b.filledBytes = cap
	} else {
		b.filledBytes += n
	}

	b.ringEndT = tEnd
	if overflow > 0 {
		overflowSeconds := float64(overflow) / float64(b.bytesPerSecond)
		b.ringStartT += overflowSeconds
	} else if b.ringStartT == 0 && b.ringEndT > 0 && b.filledBytes < cap {
		// first writes: ring_start_t stays at the stream's own origin (0)
		// until the buffer has actually filled once.
	}
	if b.ringStartT > b.ringEndT {
		b.ringStartT = b.ringEndT
	}
	// maintain invariant (c): ring_end_t - ring_start_t = filled_bytes/bytes_per_sec
	expectedStart := b.ringEndT - float64(b.filledBytes)/float64(b.bytesPerSecond)
	if expectedStart > b.ringStartT {
		b.ringStartT = expectedStart
	}
}

// RingRange returns the currently valid [ring_start_t, ring_end_t] span.
func (b *Buffer) RingRange() (start, end float64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ringStartT, b.ringEndT
}

// LogicalOffset returns the byte offset of time t within the buffered
// range, or ok=false if t is outside [ring_start_t, ring_end_t]. The
// right-boundary equality t == ring_end_t returns filledBytes (an empty
// but valid span)
func (b *Buffer) LogicalOffset(t float64) (offset int, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logicalOffsetLocked(t)
}

func (b *Buffer) logicalOffsetLocked(t float64) (int, bool) {
	if t < b.ringStartT {
		return 0, false
	}
	if t > b.ringEndT {
		return 0, false
	}
	if t == b.ringEndT {
		return b.filledBytes, true
	}
	elapsed := t - b.ringStartT
	off := int(elapsed * float64(b.bytesPerSecond))
	off -= off % BytesPerSample
	if off > b.filledBytes {
		off = b.filledBytes
	}
	return off, true
}

// CopyRange returns a new slice holding the audio for [tFrom, tTo]. tTo
// is clamped to ring_end_t. If tFrom is out of range, it returns nil
// (zero bytes copied) — the spec
// explicitly forbids silently shifting into older data, since that would
// produce audible duplication/garble. The returned length is always
// even.
func (b *Buffer) CopyRange(tFrom, tTo float64) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if tTo > b.ringEndT {
		tTo = b.ringEndT
	}
	fromOff, ok := b.logicalOffsetLocked(tFrom)
	if !ok {
		return nil
	}
	toOff, ok := b.logicalOffsetLocked(tTo)
	if !ok || toOff < fromOff {
		return nil
	}

	n := toOff - fromOff
	n -= n % BytesPerSample
	if n <= 0 {
		return []byte{}
	}

	out := make([]byte, n)
	cap := len(b.data)
	// physical start = (writePos - filledBytes + fromOff) mod cap, using
	// writePos as the position one past the most recently written byte
	// when the buffer has wrapped, else fromOff directly (§4.3 rule b).
	var physStart int
	if b.filledBytes < cap {
		physStart = fromOff
	} else {
		physStart = (b.writePos + fromOff) % cap
	}

	if physStart+n <= cap {
		copy(out, b.data[physStart:physStart+n])
	} else {
		first := cap - physStart
		copy(out, b.data[physStart:])
		copy(out[first:], b.data[:n-first])
	}
	return out
}

// FilledBytes returns how many bytes are currently valid.
func (b *Buffer) FilledBytes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filledBytes
}

// BytesPerSecond returns the configured byte rate.
func (b *Buffer) BytesPerSecond() int {
	return b.bytesPerSecond
}
