package utils

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestDateInLocation(t *testing.T) {
	// 20:30 UTC is already the next day in Asia/Kolkata (+05:30).
	instant := time.Date(2024, 3, 9, 20, 30, 0, 0, time.UTC)

	cases := []struct {
		name     string
		tz       string
		expected string
	}{
		{name: "utc", tz: "UTC", expected: "2024-03-09"},
		{name: "kolkata rolls over", tz: "Asia/Kolkata", expected: "2024-03-10"},
		{name: "unknown falls back to utc", tz: "Mars/Olympus", expected: "2024-03-09"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DateInLocation(instant, LoadLocation(tc.tz)); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestLoadLocationLocal(t *testing.T) {
	if LoadLocation("") != time.Local {
		t.Fatalf("expected empty timezone to resolve to time.Local")
	}
	if LoadLocation("Local") != time.Local {
		t.Fatalf("expected Local to resolve to time.Local")
	}
}
