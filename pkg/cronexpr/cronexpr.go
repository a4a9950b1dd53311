// Package cronexpr encodes and decodes the six-field cron grammar the
// external scheduler consumes: `cron(<minute> <hour> ? * <DOW> *)` with a
// three-letter uppercase weekday name. Minute and hour are storage-timezone
// values. The codec is the persisted wire format for a schedule's trigger,
// so decode(encode(x)) must always yield back x's weekday and time of day.
package cronexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// weekdayNames maps time.Weekday (Sunday=0) to the scheduler's token.
var weekdayNames = [7]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

var exprPattern = regexp.MustCompile(`^cron\((\d{1,2}) (\d{1,2}) \? \* ([A-Z]{3}) \*\)$`)

// fieldParser validates the minute/hour/day fields with the same grammar
// the scheduler itself applies.
var fieldParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// MalformedExpressionError is returned when a cron string cannot be decoded.
// Callers must treat it as a hard failure, never as "fire now".
type MalformedExpressionError struct {
	Expr   string
	Reason string
}

func (e *MalformedExpressionError) Error() string {
	return fmt.Sprintf("malformed cron expression %q: %s", e.Expr, e.Reason)
}

// Expression is a decoded trigger: a weekday plus a storage-timezone time
// of day. Seconds are always zero.
type Expression struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// Encode produces the scheduler cron string for a trigger.
func Encode(weekday time.Weekday, hour, minute int) (string, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return "", fmt.Errorf("weekday out of range: %d", weekday)
	}
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("hour out of range: %d", hour)
	}
	if minute < 0 || minute > 59 {
		return "", fmt.Errorf("minute out of range: %d", minute)
	}
	return fmt.Sprintf("cron(%d %d ? * %s *)", minute, hour, weekdayNames[weekday]), nil
}

// String renders the expression back to the wire format.
func (e Expression) String() string {
	s, _ := Encode(e.Weekday, e.Hour, e.Minute)
	return s
}

// Decode parses a scheduler cron string. It rejects anything outside the
// grammar with a MalformedExpressionError; an unrecognized weekday token
// gets its own message so the two causes are distinguishable in logs.
func Decode(expr string) (Expression, error) {
	m := exprPattern.FindStringSubmatch(expr)
	if m == nil {
		return Expression{}, &MalformedExpressionError{Expr: expr, Reason: "does not match cron(<min> <hour> ? * <DOW> *)"}
	}

	minute, _ := strconv.Atoi(m[1])
	hour, _ := strconv.Atoi(m[2])

	weekday := time.Weekday(-1)
	for i, name := range weekdayNames {
		if m[3] == name {
			weekday = time.Weekday(i)
			break
		}
	}
	if weekday < 0 {
		return Expression{}, &MalformedExpressionError{Expr: expr, Reason: fmt.Sprintf("unknown weekday token %q", m[3])}
	}

	// Range-check minute and hour through the scheduler's own grammar
	// rather than re-deriving the bounds here.
	inner := fmt.Sprintf("%d %d * * %d", minute, hour, int(weekday))
	if _, err := fieldParser.Parse(inner); err != nil {
		return Expression{}, &MalformedExpressionError{Expr: expr, Reason: err.Error()}
	}

	return Expression{Weekday: weekday, Hour: hour, Minute: minute}, nil
}

// Next returns the first instant on or after now that matches the
// expression's weekday and time of day. A candidate earlier today, strictly
// passed by hour/minute comparison, rolls over to next week.
func (e Expression) Next(now time.Time) time.Time {
	days := (int(e.Weekday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		if now.Hour() > e.Hour || (now.Hour() == e.Hour && now.Minute() > e.Minute) {
			days = 7
		}
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), e.Hour, e.Minute, 0, 0, now.Location())
	return candidate.AddDate(0, 0, days)
}
