package clock

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"midnight", "00:00", 0, false},
		{"morning", "09:30", 570, false},
		{"with seconds", "10:15:00", 615, false},
		{"seconds truncated", "10:15:59", 615, false},
		{"last minute", "23:59", 1439, false},
		{"hour out of range", "24:00", 0, true},
		{"minute out of range", "09:60", 0, true},
		{"seconds out of range", "09:00:60", 0, true},
		{"single digit hour", "9:00", 0, true},
		{"garbage suffix", "09:00932", 0, true},
		{"wrong separator", "09.00", 0, true},
		{"empty", "", 0, true},
		{"letters", "ab:cd", 0, true},
		{"seconds wrong separator", "09:00-00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("Parse(%q) error = %v, want ErrMalformed", tt.in, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	got, err := Add("09:30", 45)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got != "10:15" {
		t.Errorf("Add() = %q, want 10:15", got)
	}

	if _, err := Add("23:30", 30); !errors.Is(err, ErrPastMidnight) {
		t.Errorf("Add() past midnight error = %v, want ErrPastMidnight", err)
	}
	if _, err := Add("nope", 30); !errors.Is(err, ErrMalformed) {
		t.Errorf("Add() malformed error = %v, want ErrMalformed", err)
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("08:05:30")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got != "08:05" {
		t.Errorf("Normalize() = %q, want 08:05", got)
	}
}
