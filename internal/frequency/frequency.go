// Package frequency implements the single schedulable Frequency variant
// named by the spec: Every(cron_expression). Hook and any future variant
// are accepted as values but never scheduled by the tick (spec.md §4.6).
package frequency

import (
	"fmt"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses 6-field, seconds-first cron expressions. A 7th
// (year) field, as the original source's expression grammar allows, is
// accepted on input but has no equivalent in robfig/cron/v3 and is
// dropped — see DESIGN.md.
var cronParser = cronlib.NewParser(
	cronlib.Second | cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Kind distinguishes the Frequency variants.
type Kind int

const (
	// KindEvery fires on a cron schedule.
	KindEvery Kind = iota
	// KindHook is triggered externally only; never scheduled.
	KindHook
	// KindAfterInterval is accepted but not schedulable (vestigial, carried
	// for round-trip compatibility with the original expression grammar).
	KindAfterInterval
)

// Frequency is the parsed form of a task's textual frequency expression.
type Frequency struct {
	Kind  Kind
	Cron  string // raw, as given (for KindEvery); normalized to 6 fields on Next()
	Regex string // underlying cron expression; exposed for callers building display text
}

// Parse parses a textual frequency expression of shape "Every(...)",
// "Hook", or "AfterInterval".
func Parse(s string) (Frequency, error) {
	switch {
	case strings.HasPrefix(s, "Every(") && strings.HasSuffix(s, ")"):
		expr := strings.TrimSuffix(strings.TrimPrefix(s, "Every("), ")")
		return Frequency{Kind: KindEvery, Cron: expr}, nil
	case s == "Hook":
		return Frequency{Kind: KindHook}, nil
	case s == "AfterInterval":
		return Frequency{Kind: KindAfterInterval}, nil
	default:
		return Frequency{}, fmt.Errorf("malformed frequency expression: %q", s)
	}
}

// String renders the canonical textual form, inverse of Parse.
func (f Frequency) String() string {
	switch f.Kind {
	case KindEvery:
		return fmt.Sprintf("Every(%s)", f.Cron)
	case KindAfterInterval:
		return "AfterInterval"
	default:
		return "Hook"
	}
}

// Schedulable reports whether the tick should ever compute a next
// execution for this frequency. Only KindEvery is schedulable.
func (f Frequency) Schedulable() bool {
	return f.Kind == KindEvery
}

// Next returns the first firing strictly after `after`, in UTC. It
// returns the zero time and false for non-schedulable frequencies or on
// a malformed cron expression.
func (f Frequency) Next(after time.Time) (time.Time, bool) {
	if f.Kind != KindEvery {
		return time.Time{}, false
	}
	normalized := normalize(f.Cron)
	sched, err := cronParser.Parse(normalized)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(after.UTC()).UTC(), true
}

// normalize prepends a "0" seconds field when the expression has fewer
// than 7 whitespace-separated fields (matching the original's "if s.len <
// 7, prepend a 0 seconds field" rule), and truncates a trailing 7th
// (year) field that robfig/cron/v3 cannot parse.
func normalize(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) < 7 {
		fields = append([]string{"0"}, fields...)
	}
	if len(fields) > 6 {
		fields = fields[:6]
	}
	return strings.Join(fields, " ")
}
