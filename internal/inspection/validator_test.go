package inspection

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestValidateTransitionScheduledRequiresStrictFuture(t *testing.T) {
	today := date(2026, 2, 5)

	cases := []struct {
		name string
		d    time.Time
		ok   bool
	}{
		{"past", date(2026, 2, 4), false},
		{"today", date(2026, 2, 5), false}, // 当天不算未来
		{"tomorrow", date(2026, 2, 6), true},
		{"far future", date(2027, 1, 1), true},
	}
	for _, c := range cases {
		err := ValidateTransition(StatusScheduled, c.d, today)
		if c.ok && err != nil {
			t.Fatalf("%s: expected accept, got %v", c.name, err)
		}
		if !c.ok {
			var pd *PastDateError
			if !errors.As(err, &pd) {
				t.Fatalf("%s: expected PastDateError, got %v", c.name, err)
			}
		}
	}
}

func TestValidateTransitionHistoricalStatusesAllowAnyDate(t *testing.T) {
	today := date(2026, 2, 5)
	for _, st := range []Status{StatusPassed, StatusFailed} {
		for _, d := range []time.Time{date(2020, 1, 1), today, date(2030, 12, 31)} {
			if err := ValidateTransition(st, d, today); err != nil {
				t.Fatalf("status=%s date=%s: expected accept, got %v", st, d.Format(DateFormat), err)
			}
		}
	}
}

func TestValidateTransitionRejectsUnknownStatus(t *testing.T) {
	err := ValidateTransition(Status("cancelled"), date(2026, 3, 1), date(2026, 2, 5))
	var is *InvalidStatusError
	if !errors.As(err, &is) {
		t.Fatalf("expected InvalidStatusError, got %v", err)
	}
	if is.Received != "cancelled" {
		t.Fatalf("received mismatch: %s", is.Received)
	}
	msg := err.Error()
	for _, want := range []string{"scheduled", "passed", "failed"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected message to list %q, got %q", want, msg)
		}
	}
}

func TestPastDateErrorMentionsBothDatesAndRemedy(t *testing.T) {
	// 规约里的例子：today=2026-02-05，received=2026-02-04
	err := ValidateTransition(StatusScheduled, date(2026, 2, 4), date(2026, 2, 5))
	if err == nil {
		t.Fatalf("expected rejection")
	}
	msg := err.Error()
	if !strings.Contains(msg, "2026-02-05") {
		t.Fatalf("expected message to mention today, got %q", msg)
	}
	if !strings.Contains(msg, "2026-02-04") {
		t.Fatalf("expected message to mention received date, got %q", msg)
	}
	if !strings.Contains(msg, "passed") || !strings.Contains(msg, "failed") {
		t.Fatalf("expected message to suggest historical statuses, got %q", msg)
	}
}

func TestCanReschedule(t *testing.T) {
	if CanReschedule(StatusScheduled) {
		t.Fatalf("scheduled must not be a reschedule source")
	}
	if !CanReschedule(StatusPassed) || !CanReschedule(StatusFailed) {
		t.Fatalf("passed/failed must be reschedule sources")
	}
}
