package clock

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  float64
		valid bool
	}{
		{"seconds_only", "44.634", 44.634, true},
		{"minutes_and_seconds", "1:44.634", 104.634, true},
		{"two_minutes_exact", "2:00.000", 120, true},
		{"sub_second", "0.001", 0.001, true},
		{"whitespace_trimmed", " 24.37 ", 24.37, true},
		{"empty", "", 0, false},
		{"gap_text", "LAP 2", 0, false},
		{"plus_one_lap", "+1 LAP", 0, false},
		{"hours_form_rejected", "1:02:33.123", 0, false},
		{"negative_minutes", "-1:30.000", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDuration(tt.in)
			if ok != tt.valid {
				t.Fatalf("ParseDuration(%q) ok = %v, want %v", tt.in, ok, tt.valid)
			}
			if ok && got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	for _, s := range []string{"0.001", "1:44.634", "59.999", "2:00.000"} {
		v, ok := ParseDuration(s)
		if !ok {
			t.Fatalf("ParseDuration(%q) failed", s)
		}
		if got := FormatDuration(v); got != s {
			t.Errorf("FormatDuration(ParseDuration(%q)) = %q", s, got)
		}
	}
}

func TestFormatDurationCarry(t *testing.T) {
	// rounding at the minute boundary must not print 60 seconds
	if got := FormatDuration(59.9996); got != "1:00.000" {
		t.Errorf("FormatDuration(59.9996) = %q, want 1:00.000", got)
	}
}

func TestParseISO(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"zulu", "2023-05-28T14:03:21Z", time.Date(2023, 5, 28, 14, 3, 21, 0, time.UTC)},
		{"offset", "2023-05-28T14:03:21.5+00:00", time.Date(2023, 5, 28, 14, 3, 21, 500000000, time.UTC)},
		{"naive_taken_as_utc", "2023-05-28T14:03:21.123456", time.Date(2023, 5, 28, 14, 3, 21, 123456000, time.UTC)},
		{"dotnet_ticks", "2023-05-28T14:03:21.1234567Z", time.Date(2023, 5, 28, 14, 3, 21, 123456700, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseISO(tt.in)
			if err != nil {
				t.Fatalf("ParseISO(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseISO(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseISO("yesterday"); err == nil {
		t.Error("ParseISO(yesterday) did not fail")
	}
}

func TestISORoundTrip(t *testing.T) {
	in := time.Date(2023, 5, 28, 14, 3, 21, 123456000, time.UTC)
	out, err := ParseISO(FormatISO(in))
	if err != nil {
		t.Fatalf("ParseISO: %v", err)
	}
	if !out.Equal(in) {
		t.Errorf("round trip = %v, want %v", out, in)
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  float64
		valid bool
	}{
		{"number", 7.5, 7.5, true},
		{"int", 3, 3, true},
		{"numeric_string", "24.3", 24.3, true},
		{"signed_string", "+1.2", 1.2, true},
		{"lap_text", "LAP 2", 0, false},
		{"empty_string", "", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Float(tt.in)
			if ok != tt.valid {
				t.Fatalf("Float(%v) ok = %v, want %v", tt.in, ok, tt.valid)
			}
			if ok && got != tt.want {
				t.Errorf("Float(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
