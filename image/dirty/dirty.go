// Package dirty records which words of a mapped image were rewritten.
//
// Registration patches class records and reference slots in place. The
// tracker keeps those writes as ranges so callers can report them, diff an
// image before and after a load, or write the patched words back out.
//
// A Tracker is NOT thread-safe; it belongs to the image it tracks.
package dirty

import "sort"

const (
	// defaultRangeCapacity is the pre-allocated capacity for written ranges.
	defaultRangeCapacity = 64

	// wordSize is the coalescing granularity: one pointer-sized word.
	wordSize = 8
)

// Range is a written byte range, as offsets into the image buffer.
type Range struct {
	Off int64
	Len int64
}

// End returns the exclusive end offset of the range.
func (r Range) End() int64 { return r.Off + r.Len }

// Tracker accumulates written ranges.
type Tracker struct {
	ranges []Range
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ranges: make([]Range, 0, defaultRangeCapacity)}
}

// Add records a write of length bytes at off. Non-positive lengths are ignored.
func (t *Tracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: int64(off), Len: int64(length)})
}

// Len returns the number of writes recorded since the last Reset.
func (t *Tracker) Len() int { return len(t.ranges) }

// Reset clears all recorded writes.
func (t *Tracker) Reset() { t.ranges = t.ranges[:0] }

// Ranges returns the recorded writes word-aligned, sorted and merged.
// Overlapping and adjacent ranges collapse into one.
func (t *Tracker) Ranges() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := r.Off &^ (wordSize - 1)
		end := (r.End() + wordSize - 1) &^ (wordSize - 1)
		aligned[i] = Range{Off: start, Len: end - start}
	}
	sort.Slice(aligned, func(i, j int) bool { return aligned[i].Off < aligned[j].Off })

	out := aligned[:1]
	for _, r := range aligned[1:] {
		last := &out[len(out)-1]
		if r.Off <= last.End() {
			if r.End() > last.End() {
				last.Len = r.End() - last.Off
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
