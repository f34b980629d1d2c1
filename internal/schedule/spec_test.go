package schedule

import (
	"testing"
	"time"
)

func TestParseScheduleIntervals(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{" 45 m ", 45 * time.Minute},
	}
	for _, tt := range tests {
		got, err := ParseSchedule(tt.raw)
		if err != nil {
			t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
		}
		if got.Kind != KindInterval {
			t.Fatalf("ParseSchedule(%q) kind = %v, want interval", tt.raw, got.Kind)
		}
		if got.Every != tt.want {
			t.Fatalf("ParseSchedule(%q) every = %v, want %v", tt.raw, got.Every, tt.want)
		}
	}
}

func TestParseScheduleCron(t *testing.T) {
	t.Parallel()
	got, err := ParseSchedule("0 9 * * 1-5")
	if err != nil {
		t.Fatalf("ParseSchedule error: %v", err)
	}
	if got.Kind != KindCron {
		t.Fatalf("kind = %v, want cron", got.Kind)
	}
	want := [5]string{"0", "9", "*", "*", "1-5"}
	if got.Fields != want {
		t.Fatalf("fields = %v, want %v", got.Fields, want)
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"", "0m", "-5m", "10x", "10", "m",
		"* * * *", "* * * * * *", "soon",
	} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q): expected error", raw)
		}
	}
}

func TestParseWindow(t *testing.T) {
	t.Parallel()
	d, err := ParseWindow("2h")
	if err != nil {
		t.Fatalf("ParseWindow error: %v", err)
	}
	if d != 2*time.Hour {
		t.Fatalf("window = %v, want 2h", d)
	}

	for _, raw := range []string{"", "0h", "abc", "2 hours", "0 * * * *"} {
		if _, err := ParseWindow(raw); err == nil {
			t.Fatalf("ParseWindow(%q): expected error", raw)
		}
	}
}
