package schedule

import (
	"testing"
	"time"
)

func TestCronEvaluator_Due(t *testing.T) {
	// Tuesday 2026-08-18 14:37:23 UTC.
	at := time.Date(2026, time.August, 18, 14, 37, 23, 0, time.UTC)
	eval := CronEvaluator{}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "every minute", expr: "* * * * *", want: true},
		{name: "exact minute match", expr: "37 14 18 8 *", want: true},
		{name: "exact minute mismatch", expr: "38 14 * * *", want: false},
		{name: "hour mismatch", expr: "37 15 * * *", want: false},
		{name: "step match", expr: "*/1 * * * *", want: true},
		{name: "step mismatch", expr: "*/2 * * * *", want: false}, // 37 is odd
		{name: "step on hour", expr: "37 */7 * * *", want: true},  // 14 = 2*7
		{name: "comma list match", expr: "5,37,55 * * * *", want: true},
		{name: "comma list mismatch", expr: "5,36,55 * * * *", want: false},
		{name: "day of week match", expr: "37 14 * * 2", want: true}, // Tuesday
		{name: "day of week mismatch", expr: "37 14 * * 3", want: false},
		{name: "range match", expr: "30-40 * * * *", want: true},
		{name: "month mismatch", expr: "* * * 9 *", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval.Due(tt.expr, at); got != tt.want {
				t.Errorf("Due(%q, %v) = %v, want %v", tt.expr, at, got, tt.want)
			}
		})
	}
}

// When both day-of-month and day-of-week are restricted, all five fields
// must match. Vixie cron would OR the two day fields, firing "0 0 15 * 1"
// on every Monday and on every 15th; here it fires only on Mondays that
// are the 15th.
func TestCronEvaluator_DomDowBothRestricted(t *testing.T) {
	eval := CronEvaluator{}

	tests := []struct {
		name string
		expr string
		at   time.Time
		want bool
	}{
		{
			name: "monday but not the 15th",
			expr: "0 0 15 * 1",
			at:   time.Date(2026, time.August, 17, 0, 0, 0, 0, time.UTC), // Monday the 17th
			want: false,
		},
		{
			name: "the 15th but not monday",
			expr: "0 0 15 * 1",
			at:   time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC), // Wednesday the 15th
			want: false,
		},
		{
			name: "monday the 15th",
			expr: "0 0 15 * 1",
			at:   time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC), // Monday the 15th
			want: true,
		},
		{
			name: "only dom restricted",
			expr: "0 0 15 * *",
			at:   time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "only dow restricted",
			expr: "0 0 * * 1",
			at:   time.Date(2026, time.August, 17, 0, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "question mark counts as unrestricted",
			expr: "0 0 ? * 1",
			at:   time.Date(2026, time.August, 17, 0, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "step dom with restricted dow needs both",
			expr: "0 0 */2 * 1", // odd days of month, Mondays
			at:   time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC), // Monday, even day
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eval.Due(tt.expr, tt.at); got != tt.want {
				t.Errorf("Due(%q, %v) = %v, want %v", tt.expr, tt.at, got, tt.want)
			}
		})
	}
}

// Malformed expressions must evaluate as always due: a campaign that fires
// too often is visible, one that silently never fires is not.
func TestCronEvaluator_FailOpen(t *testing.T) {
	at := time.Date(2026, time.August, 18, 14, 37, 0, 0, time.UTC)
	eval := CronEvaluator{}

	for _, expr := range []string{
		"not a cron",
		"* * *",
		"99 * * * *",
		"*/x * * * *",
	} {
		if !eval.Due(expr, at) {
			t.Errorf("Due(%q) = false, want fail-open true", expr)
		}
	}
}

// Two evaluations within the same minute agree; the dedup window, not the
// evaluator, prevents double-firing across expander ticks.
func TestCronEvaluator_StableWithinMinute(t *testing.T) {
	eval := CronEvaluator{}
	base := time.Date(2026, time.August, 18, 14, 37, 3, 0, time.UTC)

	for _, offset := range []time.Duration{0, 10 * time.Second, 50 * time.Second} {
		if !eval.Due("37 * * * *", base.Add(offset)) {
			t.Errorf("Due() at +%v = false, want true for whole due minute", offset)
		}
	}
	if eval.Due("37 * * * *", base.Add(time.Minute)) {
		t.Error("Due() one minute later = true, want false")
	}
}

func TestSchedule_InWindow(t *testing.T) {
	now := time.Date(2026, time.August, 18, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		start time.Time
		end   *time.Time
		want  bool
	}{
		{name: "open-ended, started", start: past, end: nil, want: true},
		{name: "not started yet", start: future, end: nil, want: false},
		{name: "inside closed window", start: past, end: &future, want: true},
		{name: "window closed", start: past.Add(-time.Hour), end: &past, want: false},
		{name: "starts exactly now", start: now, end: nil, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Schedule{StartAt: tt.start, EndAt: tt.end}
			if got := s.InWindow(now); got != tt.want {
				t.Errorf("InWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}
