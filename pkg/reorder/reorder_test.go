package reorder

import (
	"reflect"
	"testing"
)

type fakeSink struct {
	flushed [][]Segment
}

func (f *fakeSink) Append(segments []Segment) {
	f.flushed = append(f.flushed, segments)
}

func TestInOrderInsertsFlushImmediately(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink)

	b.Insert(0, []Segment{{Text: "hello"}})
	b.Insert(1, []Segment{{Text: "world"}})

	if len(sink.flushed) != 2 {
		t.Fatalf("expected 2 flushes, got %d", len(sink.flushed))
	}
	if b.NextExpected() != 2 {
		t.Fatalf("expected next_expected=2, got %d", b.NextExpected())
	}
}

func TestOutOfOrderBuffersUntilContiguous(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink)

	b.Insert(2, []Segment{{Text: "c"}})
	b.Insert(1, []Segment{{Text: "b"}})
	if len(sink.flushed) != 0 {
		t.Fatalf("expected no flush yet, got %d", len(sink.flushed))
	}
	if b.Pending() != 2 {
		t.Fatalf("expected 2 pending entries, got %d", b.Pending())
	}

	b.Insert(0, []Segment{{Text: "a"}})

	want := [][]Segment{
		{{Text: "a"}},
		{{Text: "b"}},
		{{Text: "c"}},
	}
	if !reflect.DeepEqual(sink.flushed, want) {
		t.Fatalf("expected flush order %v, got %v", want, sink.flushed)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected no pending entries left, got %d", b.Pending())
	}
}

func TestEmptySegmentsAdvanceWithoutAppending(t *testing.T) {
	sink := &fakeSink{}
	b := New(sink)

	b.Insert(0, nil) // non-speech window
	b.Insert(1, []Segment{{Text: "hi"}})

	if len(sink.flushed) != 1 {
		t.Fatalf("expected only the non-empty segment list to reach the sink, got %d flushes", len(sink.flushed))
	}
	if b.NextExpected() != 2 {
		t.Fatalf("expected next_expected to advance past the empty entry, got %d", b.NextExpected())
	}
}
