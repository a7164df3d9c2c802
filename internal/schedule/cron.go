package schedule

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DueEvaluator decides whether a recurrence expression is due at a given
// instant. It exists as an interface so the expander can be tested with
// injected timestamps and canned evaluators.
type DueEvaluator interface {
	// Due reports whether expr fires during the minute containing at.
	Due(expr string, at time.Time) bool
}

// cronParser accepts standard 5-field expressions:
// minute, hour, day-of-month, month, day-of-week.
// Exact values, `*`, `*/step`, comma lists, and ranges are all supported.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// CronEvaluator evaluates 5-field cron expressions at minute granularity.
//
// Malformed expressions are fail-open: they evaluate as always due rather
// than silently halting the schedule. A campaign that fires too often is
// visible to operators; one that never fires is not.
type CronEvaluator struct{}

// Field positions in a 5-field expression.
const (
	cronFieldCount = 5
	domField       = 2
	dowField       = 4
)

// Due reports whether expr fires during the minute containing at.
//
// All five fields must match. robfig follows Vixie cron in OR-ing
// day-of-month with day-of-week when both are restricted, which would make
// "0 0 15 * 1" fire on every Monday and on every 15th; here it means
// Mondays that are the 15th. When both fields are restricted, each is
// evaluated on its own and the results are combined with AND.
func (CronEvaluator) Due(expr string, at time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) == cronFieldCount && restricted(fields[domField]) && restricted(fields[dowField]) {
		return dueExpr(replaceField(fields, dowField, "*"), at) &&
			dueExpr(replaceField(fields, domField, "*"), at)
	}
	return dueExpr(expr, at)
}

// restricted reports whether a day field constrains matching. robfig treats
// "?" like "*", so both count as unrestricted.
func restricted(field string) bool {
	return field != "*" && field != "?"
}

func replaceField(fields []string, idx int, value string) string {
	out := make([]string, len(fields))
	copy(out, fields)
	out[idx] = value
	return strings.Join(out, " ")
}

func dueExpr(expr string, at time.Time) bool {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return true // fail-open
	}
	// The schedule is due on this minute exactly when the next activation
	// strictly after (minute - 1s) is the minute itself.
	minute := at.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute)
}
