package cronexpr

import (
	"errors"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		weekday time.Weekday
		hour    int
		minute  int
		want    string
		wantErr bool
	}{
		{
			name:    "thursday one past three",
			weekday: time.Thursday,
			hour:    3,
			minute:  1,
			want:    "cron(1 3 ? * THU *)",
		},
		{
			name:    "sunday midnight",
			weekday: time.Sunday,
			hour:    0,
			minute:  0,
			want:    "cron(0 0 ? * SUN *)",
		},
		{
			name:    "saturday last minute",
			weekday: time.Saturday,
			hour:    23,
			minute:  59,
			want:    "cron(59 23 ? * SAT *)",
		},
		{
			name:    "hour out of range",
			weekday: time.Monday,
			hour:    24,
			minute:  0,
			wantErr: true,
		},
		{
			name:    "minute out of range",
			weekday: time.Monday,
			hour:    0,
			minute:  60,
			wantErr: true,
		},
		{
			name:    "weekday out of range",
			weekday: time.Weekday(7),
			hour:    0,
			minute:  0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.weekday, tt.hour, tt.minute)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    Expression
		wantErr bool
	}{
		{
			name: "thursday one past three",
			expr: "cron(1 3 ? * THU *)",
			want: Expression{Weekday: time.Thursday, Hour: 3, Minute: 1},
		},
		{
			name: "friday evening",
			expr: "cron(30 21 ? * FRI *)",
			want: Expression{Weekday: time.Friday, Hour: 21, Minute: 30},
		},
		{
			name:    "missing wrapper",
			expr:    "1 3 ? * THU *",
			wantErr: true,
		},
		{
			name:    "unknown weekday token",
			expr:    "cron(1 3 ? * XYZ *)",
			wantErr: true,
		},
		{
			name:    "lowercase weekday",
			expr:    "cron(1 3 ? * thu *)",
			wantErr: true,
		},
		{
			name:    "hour out of range",
			expr:    "cron(0 24 ? * MON *)",
			wantErr: true,
		},
		{
			name:    "minute out of range",
			expr:    "cron(61 3 ? * MON *)",
			wantErr: true,
		},
		{
			name:    "empty string",
			expr:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.expr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Decode(%q) expected error, got %+v", tt.expr, got)
				}
				var malformed *MalformedExpressionError
				if !errors.As(err, &malformed) {
					t.Errorf("Decode(%q) error type = %T, want *MalformedExpressionError", tt.expr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q) unexpected error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Decode(%q) = %+v, want %+v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestDecodeDistinguishesUnknownWeekday(t *testing.T) {
	_, err := Decode("cron(1 3 ? * ABC *)")
	var malformed *MalformedExpressionError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedExpressionError, got %v", err)
	}
	if malformed.Reason != `unknown weekday token "ABC"` {
		t.Errorf("unexpected reason: %q", malformed.Reason)
	}
}

func TestRoundTrip(t *testing.T) {
	times := []struct{ hour, minute int }{
		{0, 0}, {0, 1}, {3, 1}, {12, 30}, {21, 0}, {23, 59},
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		for _, tm := range times {
			expr, err := Encode(wd, tm.hour, tm.minute)
			if err != nil {
				t.Fatalf("Encode(%v, %d, %d): %v", wd, tm.hour, tm.minute, err)
			}
			decoded, err := Decode(expr)
			if err != nil {
				t.Fatalf("Decode(%q): %v", expr, err)
			}
			if decoded.Weekday != wd || decoded.Hour != tm.hour || decoded.Minute != tm.minute {
				t.Errorf("round trip %q = %+v, want %v %02d:%02d", expr, decoded, wd, tm.hour, tm.minute)
			}
		}
	}
}

func TestNext(t *testing.T) {
	// Fixed reference: Monday, Jan 1, 2024, 08:00:00 UTC.
	baseTime := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr Expression
		from time.Time
		want time.Time
	}{
		{
			name: "later same day",
			expr: Expression{Weekday: time.Monday, Hour: 9, Minute: 0},
			from: baseTime,
			want: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "same weekday already passed rolls a week",
			expr: Expression{Weekday: time.Monday, Hour: 7, Minute: 30},
			from: baseTime,
			want: time.Date(2024, 1, 8, 7, 30, 0, 0, time.UTC),
		},
		{
			name: "exact hour and minute fires today",
			expr: Expression{Weekday: time.Monday, Hour: 8, Minute: 0},
			from: baseTime,
			want: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "later in the week",
			expr: Expression{Weekday: time.Thursday, Hour: 3, Minute: 1},
			from: baseTime,
			want: time.Date(2024, 1, 4, 3, 1, 0, 0, time.UTC),
		},
		{
			name: "earlier weekday wraps to next week",
			expr: Expression{Weekday: time.Sunday, Hour: 10, Minute: 0},
			from: baseTime,
			want: time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.expr.Next(tt.from)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.from, got, tt.want)
			}
			if got.Weekday() != tt.expr.Weekday {
				t.Errorf("Next() weekday = %v, want %v", got.Weekday(), tt.expr.Weekday)
			}
		})
	}
}
