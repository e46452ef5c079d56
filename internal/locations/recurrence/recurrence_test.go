package recurrence

import (
	"medisched/pkg/model"
	"testing"
	"time"

	"github.com/teambition/rrule-go"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func hm(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func TestExpanderRange(t *testing.T) {
	tests := []struct {
		name      string
		hours     model.LocationHours
		start     time.Time
		end       time.Time
		wantStart []time.Time
		wantLen   time.Duration
	}{
		{
			name:      "weekdays nine to five",
			hours:     model.LocationHours{ID: "h1", RRule: "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", StartTime: "09:00", DurationMin: 480},
			start:     monday,
			end:       monday.AddDate(0, 0, 7),
			wantStart: []time.Time{hm(monday, 9, 0), hm(monday.AddDate(0, 0, 1), 9, 0), hm(monday.AddDate(0, 0, 2), 9, 0), hm(monday.AddDate(0, 0, 3), 9, 0), hm(monday.AddDate(0, 0, 4), 9, 0)},
			wantLen:   8 * time.Hour,
		},
		{
			name:      "RRULE prefix is accepted",
			hours:     model.LocationHours{RRule: "RRULE:FREQ=WEEKLY;BYDAY=SA", StartTime: "10:00", DurationMin: 120},
			start:     monday,
			end:       monday.AddDate(0, 0, 7),
			wantStart: []time.Time{hm(monday.AddDate(0, 0, 5), 10, 0)},
			wantLen:   2 * time.Hour,
		},
		{
			name:      "range clips occurrences",
			hours:     model.LocationHours{RRule: "FREQ=DAILY", StartTime: "08:00", DurationMin: 600},
			start:     hm(monday, 12, 0),
			end:       hm(monday, 14, 0),
			wantStart: []time.Time{hm(monday, 12, 0)},
			wantLen:   2 * time.Hour,
		},
		{
			name:      "explicit DTSTART overrides start time",
			hours:     model.LocationHours{RRule: "DTSTART=20260101T070000Z;FREQ=DAILY", StartTime: "09:00", DurationMin: 60},
			start:     monday,
			end:       monday.AddDate(0, 0, 1),
			wantStart: []time.Time{hm(monday, 7, 0)},
			wantLen:   time.Hour,
		},
		{
			name:      "overnight occurrence spills into next day",
			hours:     model.LocationHours{RRule: "FREQ=WEEKLY;BYDAY=SU", StartTime: "22:00", DurationMin: 240},
			start:     monday,
			end:       monday.AddDate(0, 0, 1),
			wantStart: []time.Time{monday},
			wantLen:   2 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewExpander(64)
			if err != nil {
				t.Fatalf("NewExpander: %v", err)
			}
			got, err := e.Range(&tt.hours, time.UTC, tt.start, tt.end)
			if err != nil {
				t.Fatalf("Range: %v", err)
			}
			if len(got) != len(tt.wantStart) {
				t.Fatalf("got %d intervals %v, want %d", len(got), got, len(tt.wantStart))
			}
			for i, iv := range got {
				if !iv.Start.Equal(tt.wantStart[i]) {
					t.Errorf("interval %d starts %v, want %v", i, iv.Start, tt.wantStart[i])
				}
				if iv.Duration() != tt.wantLen {
					t.Errorf("interval %d lasts %v, want %v", i, iv.Duration(), tt.wantLen)
				}
			}
		})
	}
}

func TestExpanderTimeZone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	e, _ := NewExpander(0)
	h := &model.LocationHours{RRule: "FREQ=DAILY", StartTime: "09:00", DurationMin: 60}

	got, err := e.Range(h, loc, monday, monday.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d intervals, want 1", len(got))
	}
	if want := hm(monday, 14, 0); !got[0].Start.Equal(want) {
		t.Errorf("start = %v, want %v", got[0].Start.UTC(), want)
	}
}

func TestExpanderCache(t *testing.T) {
	e, err := NewExpander(16)
	if err != nil {
		t.Fatalf("NewExpander: %v", err)
	}
	h := &model.LocationHours{ID: "h1", RRule: "FREQ=DAILY", StartTime: "09:00", DurationMin: 60, UpdatedAt: monday}

	if _, err := e.Range(h, time.UTC, monday, monday.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("Range: %v", err)
	}
	cached := e.Len()
	if cached == 0 {
		t.Fatal("expected day expansions to be cached")
	}

	if _, err := e.Range(h, time.UTC, monday, monday.AddDate(0, 0, 3)); err != nil {
		t.Fatalf("Range: %v", err)
	}
	if e.Len() != cached {
		t.Errorf("repeat query grew cache from %d to %d", cached, e.Len())
	}

	h.UpdatedAt = monday.Add(time.Minute)
	h.StartTime = "10:00"
	got, err := e.Range(h, time.UTC, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 1 || got[0].Start.Hour() != 10 {
		t.Errorf("stale expansion after update: %v", got)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		hours model.LocationHours
	}{
		{"garbage rule", model.LocationHours{RRule: "NOT A RULE", StartTime: "09:00"}},
		{"no start time and no DTSTART", model.LocationHours{RRule: "FREQ=DAILY"}},
		{"COUNT without DTSTART", model.LocationHours{RRule: "FREQ=DAILY;COUNT=10", StartTime: "09:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(&tt.hours, time.UTC); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDayMatchesEpochAnchoredRule(t *testing.T) {
	rules := []string{
		"FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,TH",
		"FREQ=DAILY;INTERVAL=3",
		"FREQ=HOURLY;INTERVAL=7",
		"FREQ=MONTHLY;BYMONTHDAY=1,15",
		"FREQ=MINUTELY;INTERVAL=45",
	}
	days := []time.Time{
		monday,
		monday.AddDate(0, 0, 3),
		monday.AddDate(0, 0, 13),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
	}

	for _, text := range rules {
		h := &model.LocationHours{RRule: text, StartTime: "06:00", DurationMin: 20}
		full, err := Compile(h, time.UTC)
		if err != nil {
			t.Fatalf("Compile(%q): %v", text, err)
		}
		e, _ := NewExpander(0)

		for _, day := range days {
			got, err := e.Day(h, day)
			if err != nil {
				t.Fatalf("Day(%q, %s): %v", text, day, err)
			}
			want := full.Between(day.Add(-20*time.Minute), day.AddDate(0, 0, 1), true)
			var starts []time.Time
			for _, occ := range want {
				if !occ.Add(20 * time.Minute).After(day) {
					continue
				}
				if occ.Before(day) {
					occ = day
				}
				starts = append(starts, occ)
			}
			if len(got) != len(starts) {
				t.Fatalf("%q on %s: got %d intervals, want %d", text, day.Format(time.DateOnly), len(got), len(starts))
			}
			for i, iv := range got {
				if !iv.Start.Equal(starts[i]) {
					t.Errorf("%q on %s: interval %d starts %v, want %v", text, day.Format(time.DateOnly), i, iv.Start, starts[i])
				}
			}
		}
	}
}

func TestRebaseStaysNearQuery(t *testing.T) {
	from := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		freq    rrule.Frequency
		n       int
		maxBack time.Duration
	}{
		{"weekly", rrule.WEEKLY, 2, 2 * 14 * 24 * time.Hour},
		{"daily", rrule.DAILY, 1, 2 * 24 * time.Hour},
		{"hourly", rrule.HOURLY, 5, 2 * 5 * 24 * time.Hour},
		{"monthly", rrule.MONTHLY, 1, 62 * 24 * time.Hour},
		{"yearly", rrule.YEARLY, 1, 2 * 366 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := &rrule.ROption{Freq: tt.freq, Interval: tt.n, Dtstart: anchor.Add(6 * time.Hour)}
			rebase(opt, from)
			if opt.Dtstart.After(from) {
				t.Fatalf("DTSTART %v moved past %v", opt.Dtstart, from)
			}
			if back := from.Sub(opt.Dtstart); back > tt.maxBack {
				t.Errorf("DTSTART %v is %v before query, want at most %v", opt.Dtstart, back, tt.maxBack)
			}
			if opt.Dtstart.Hour() != 6 {
				t.Errorf("wall clock changed: %v", opt.Dtstart)
			}
		})
	}
}
