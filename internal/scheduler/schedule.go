// Package scheduler runs bulk generation jobs on their cron schedules and on demand.
package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard 5-field expressions and descriptors such as @daily.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleError describes an invalid cron expression or timezone.
type ScheduleError struct {
	Expression string
	Timezone   string
	Message    string
	Cause      error
}

func (e *ScheduleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid schedule %q (%s): %s: %v", e.Expression, e.Timezone, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid schedule %q (%s): %s", e.Expression, e.Timezone, e.Message)
}

func (e *ScheduleError) Unwrap() error {
	return e.Cause
}

// CronSpec returns the spec registered with cron for expr in tz.
func CronSpec(expr, tz string) string {
	if tz == "" {
		tz = "UTC"
	}
	return "CRON_TZ=" + tz + " " + strings.TrimSpace(expr)
}

// ValidateSchedule checks expr and tz and returns the next run after now.
func ValidateSchedule(expr, tz string) (time.Time, error) {
	return NextRun(expr, tz, time.Now())
}

// NextRun returns the first activation of expr in tz strictly after after, in UTC.
func NextRun(expr, tz string, after time.Time) (time.Time, error) {
	if tz == "" {
		tz = "UTC"
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, &ScheduleError{Expression: expr, Timezone: tz, Message: "expression is required"}
	}
	if strings.Contains(expr, "TZ=") {
		return time.Time{}, &ScheduleError{Expression: expr, Timezone: tz, Message: "set the timezone separately, not in the expression"}
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return time.Time{}, &ScheduleError{Expression: expr, Timezone: tz, Message: "unknown timezone", Cause: err}
	}
	sched, err := parser.Parse(CronSpec(expr, tz))
	if err != nil {
		return time.Time{}, &ScheduleError{Expression: expr, Timezone: tz, Message: "cannot parse expression", Cause: err}
	}
	next := sched.Next(after)
	if next.IsZero() {
		return time.Time{}, &ScheduleError{Expression: expr, Timezone: tz, Message: "expression never fires"}
	}
	return next.UTC(), nil
}
