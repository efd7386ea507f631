package schedule

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	for _, expr := range []string{"", "  ", "0 3 * * *", "@daily", "*/15 * * * 1-5"} {
		if err := Validate(expr); err != nil {
			t.Fatalf("Validate(%q): %v", expr, err)
		}
	}
	for _, expr := range []string{"61 * * * *", "not a schedule", "0 0 3 * * *"} {
		if err := Validate(expr); err == nil {
			t.Fatalf("Validate(%q) should fail", expr)
		}
	}
}

func TestSetAndNext(t *testing.T) {
	s := New(nil, nil)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	if !s.Next(now).IsZero() {
		t.Fatal("no schedule should have no next run")
	}
	if err := s.Set("0 3 * * *"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	want := time.Date(2024, 6, 2, 3, 0, 0, 0, time.Local)
	if got := s.Next(now); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
	if err := s.Set("bogus"); err == nil {
		t.Fatal("expected invalid expression error")
	}
	if s.Expression() != "0 3 * * *" {
		t.Fatalf("invalid Set should keep the previous schedule, got %q", s.Expression())
	}
	if err := s.Set(""); err != nil {
		t.Fatalf("Set empty: %v", err)
	}
	if s.Expression() != "" || len(s.cron.Entries()) != 0 {
		t.Fatal("empty expression should remove the entry")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s := New(func() {}, nil)
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
