// Package recurrence expands RRULE opening hours into concrete intervals.
// Expansion is always bounded by a single calendar day, and results are
// cached per (rule revision, day).
package recurrence

import (
	"fmt"
	"medisched/pkg/interval"
	"medisched/pkg/model"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/teambition/rrule-go"
)

// anchor is the DTSTART date used for rules that omit one. It is a Monday,
// so WEEKLY rules without BYDAY open on Mondays.
var anchor = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)

// Compile parses the rule of h in loc. Rules without DTSTART are anchored at
// h.StartTime on a fixed epoch date and may not use COUNT.
func Compile(h *model.LocationHours, loc *time.Location) (*rrule.RRule, error) {
	return compile(h, loc, time.Time{})
}

// compile is Compile with the epoch anchor moved forward to just before from,
// when from is set.
func compile(h *model.LocationHours, loc *time.Location, from time.Time) (*rrule.RRule, error) {
	text := strings.TrimSpace(h.RRule)
	text = strings.TrimPrefix(text, "RRULE:")

	opt, err := rrule.StrToROptionInLocation(text, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid rrule %q: %w", h.RRule, err)
	}

	if opt.Dtstart.IsZero() {
		if opt.Count > 0 {
			return nil, fmt.Errorf("rrule %q uses COUNT without DTSTART", h.RRule)
		}
		y, m, d := anchor.Date()
		start, ok := model.ClockOn(time.Date(y, m, d, 0, 0, 0, 0, loc), h.StartTime)
		if !ok {
			return nil, fmt.Errorf("rrule %q has no DTSTART and start time %q is not HH:MM", h.RRule, h.StartTime)
		}
		opt.Dtstart = start
		if !from.IsZero() {
			rebase(opt, from)
		}
	}

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid rrule %q: %w", h.RRule, err)
	}
	return rule, nil
}

// rebase moves DTSTART forward by whole recurrence periods so that
// expansion starts at least one period, and at most two, before from.
// Occurrences from then on are unchanged.
func rebase(opt *rrule.ROption, from time.Time) {
	n := opt.Interval
	if n <= 0 {
		n = 1
	}
	start := opt.Dtstart
	from = from.In(start.Location())

	switch opt.Freq {
	case rrule.YEARLY:
		if steps := (from.Year()-start.Year())/n - 1; steps > 0 {
			opt.Dtstart = start.AddDate(steps*n, 0, 0)
		}
	case rrule.MONTHLY:
		months := (from.Year()-start.Year())*12 + int(from.Month()) - int(start.Month())
		if steps := months/n - 1; steps > 0 {
			opt.Dtstart = start.AddDate(0, steps*n, 0)
		}
	default:
		period := periodDays(opt.Freq, n)
		if steps := daysBetween(start, from)/period - 1; steps > 0 {
			opt.Dtstart = start.AddDate(0, 0, steps*period)
		}
	}
}

// periodDays is the smallest whole number of days after which the rule's
// occurrences repeat at the same wall-clock times.
func periodDays(freq rrule.Frequency, n int) int {
	const daySeconds = 24 * 60 * 60
	var seconds int
	switch freq {
	case rrule.WEEKLY:
		return 7 * n
	case rrule.DAILY:
		return n
	case rrule.HOURLY:
		seconds = n * 60 * 60
	case rrule.MINUTELY:
		seconds = n * 60
	default:
		seconds = n
	}
	return seconds / gcd(seconds, daySeconds)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da) / (24 * time.Hour))
}

type cacheKey struct {
	hoursID  string
	revision int64
	zone     string
	day      string
}

type Expander struct {
	cache *lru.Cache[cacheKey, []interval.Interval]
}

func NewExpander(size int) (*Expander, error) {
	if size <= 0 {
		return &Expander{}, nil
	}
	cache, err := lru.New[cacheKey, []interval.Interval](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create rrule cache: %w", err)
	}
	return &Expander{cache: cache}, nil
}

// Range expands h over [start, end), evaluating the rule in loc.
func (e *Expander) Range(h *model.LocationHours, loc *time.Location, start, end time.Time) ([]interval.Interval, error) {
	var out []interval.Interval
	last := model.DateOf(end.In(loc))
	for day := model.DateOf(start.In(loc)); !day.After(last); day = day.AddDate(0, 0, 1) {
		ivs, err := e.Day(h, day)
		if err != nil {
			return nil, err
		}
		out = append(out, ivs...)
	}
	return interval.IntersectRange(interval.Union(out), start, end), nil
}

// Day returns the open time of h within the calendar day starting at day,
// which must be a local midnight.
func (e *Expander) Day(h *model.LocationHours, day time.Time) ([]interval.Interval, error) {
	key := cacheKey{
		hoursID:  h.ID,
		revision: h.UpdatedAt.UnixNano(),
		zone:     day.Location().String(),
		day:      day.Format(time.DateOnly),
	}
	cacheable := e.cache != nil && h.ID != ""
	if cacheable {
		if ivs, ok := e.cache.Get(key); ok {
			return ivs, nil
		}
	}

	length := time.Duration(h.DurationMin) * time.Minute
	dayEnd := day.AddDate(0, 0, 1)

	rule, err := compile(h, day.Location(), day.Add(-length))
	if err != nil {
		return nil, err
	}

	var ivs []interval.Interval
	for _, occ := range rule.Between(day.Add(-length), dayEnd, true) {
		ivs = append(ivs, interval.New(occ, occ.Add(length)))
	}
	ivs = interval.IntersectRange(interval.Union(ivs), day, dayEnd)

	if cacheable {
		e.cache.Add(key, ivs)
	}
	return ivs, nil
}

// Len reports the number of cached day expansions.
func (e *Expander) Len() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}
