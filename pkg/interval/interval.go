// Package interval implements half-open time interval algebra used by the
// availability engine. All functions are pure; callers reject malformed input
// (start >= end) before it reaches this package.
package interval

import (
	"sort"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func New(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

func (i Interval) Duration() time.Duration {
	if i.IsEmpty() {
		return 0
	}
	return i.End.Sub(i.Start)
}

func (i Interval) IsEmpty() bool {
	return !i.End.After(i.Start)
}

// Covers reports whether o lies entirely inside i.
func (i Interval) Covers(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Overlaps uses half-open semantics: touching intervals do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Union sorts the intervals and merges overlapping or touching ones.
// Empty intervals are dropped. The input slice is not modified.
func Union(in []Interval) []Interval {
	sorted := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.IsEmpty() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].Start.Before(sorted[b].Start)
	})

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract returns open minus every busy interval in a single sweep over
// both sorted lists.
func Subtract(open, busy []Interval) []Interval {
	open = Union(open)
	busy = Union(busy)
	if len(busy) == 0 {
		return open
	}

	var out []Interval
	j := 0
	for _, o := range open {
		cur := o.Start
		for j < len(busy) && !busy[j].End.After(cur) {
			j++
		}
		for k := j; k < len(busy) && busy[k].Start.Before(o.End); k++ {
			b := busy[k]
			if b.Start.After(cur) {
				out = append(out, Interval{Start: cur, End: b.Start})
			}
			if b.End.After(cur) {
				cur = b.End
			}
			if !cur.Before(o.End) {
				break
			}
		}
		if cur.Before(o.End) {
			out = append(out, Interval{Start: cur, End: o.End})
		}
	}
	return out
}

// Intersect returns the time covered by both a and b.
func Intersect(a, b []Interval) []Interval {
	a = Union(a)
	b = Union(b)

	var out []Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := later(a[i].Start, b[j].Start)
		end := earlier(a[i].End, b[j].End)
		if start.Before(end) {
			out = append(out, Interval{Start: start, End: end})
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// IntersectRange clips every interval to [rangeStart, rangeEnd) and drops
// the ones that end up empty.
func IntersectRange(in []Interval, rangeStart, rangeEnd time.Time) []Interval {
	var out []Interval
	for _, iv := range in {
		clipped := Interval{
			Start: later(iv.Start, rangeStart),
			End:   earlier(iv.End, rangeEnd),
		}
		if !clipped.IsEmpty() {
			out = append(out, clipped)
		}
	}
	return out
}

// Contains reports whether target lies entirely inside one interval of set.
func Contains(set []Interval, target Interval) bool {
	for _, iv := range Union(set) {
		if iv.Covers(target) {
			return true
		}
	}
	return false
}

// OverlappingAny returns the members of set that overlap target.
func OverlappingAny(set []Interval, target Interval) []Interval {
	var out []Interval
	for _, iv := range set {
		if Overlaps(iv, target) {
			out = append(out, iv)
		}
	}
	return out
}

func Total(in []Interval) time.Duration {
	var total time.Duration
	for _, iv := range in {
		total += iv.Duration()
	}
	return total
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
