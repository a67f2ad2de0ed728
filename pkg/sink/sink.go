// Package sink implements the transcript sink: the final destination for
// reorder-buffer output. Applies the history-segment de-dup rule, which
// exists because adjacent windows' word-boundary cuts can leave a sliver
// of the same utterance counted twice.
package sink

import (
	"sync"

	"github.com/lokutor-ai/lokutor-transcribe/pkg/reorder"
)

// Entry is one accepted transcript line.
type Entry struct {
	Text      string
	StartAbs  float64
	EndAbs    float64
	SpeakerID int
}

// Memory is an in-memory transcript sink safe for concurrent Append
// calls from runner goroutines. It implements reorder.Sink.
type Memory struct {
	mu       sync.Mutex
	entries  []Entry
	lastEnd  float64
	hasFirst bool
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Append accepts the segments flushed by the reorder buffer, for one
// sequence number, in order. A segment is dropped as a duplicate only
// when its end_abs does not exceed the last accepted end_abs by more
// than 50ms — overlap-guard, not a broader fuzzy-match.
func (m *Memory) Append(segments []reorder.Segment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seg := range segments {
		if m.hasFirst && seg.EndAbs <= m.lastEnd+0.050 {
			continue
		}
		m.entries = append(m.entries, Entry{Text: seg.Text, StartAbs: seg.StartAbs, EndAbs: seg.EndAbs, SpeakerID: seg.SpeakerID})
		m.lastEnd = seg.EndAbs
		m.hasFirst = true
	}
}

// Entries returns a snapshot of everything accepted so far, in arrival
// order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Transcript concatenates every accepted entry's text, space-separated.
func (m *Memory) Transcript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := ""
	for i, e := range m.entries {
		if i > 0 {
			out += " "
		}
		out += e.Text
	}
	return out
}
