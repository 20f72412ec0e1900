// Package clock handles wall-clock times of day as stored on appointments.
package clock

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned for anything that is not HH:MM or HH:MM:SS.
var ErrMalformed = errors.New("time must be HH:MM or HH:MM:SS")

// ErrPastMidnight is returned when arithmetic leaves the calendar day.
var ErrPastMidnight = errors.New("time must stay within the same day")

// MinutesPerDay is the exclusive upper bound for a minute-of-day value.
const MinutesPerDay = 24 * 60

// Parse converts "HH:MM" or "HH:MM:SS" into minutes since midnight.
// Seconds are validated and then truncated.
// PRE: none
// POST: Returns 0 <= m < MinutesPerDay, or ErrMalformed
func Parse(s string) (int, error) {
	if len(s) != 5 && len(s) != 8 {
		return 0, fmt.Errorf("%q: %w", s, ErrMalformed)
	}
	h, ok := twoDigits(s[0:2])
	if !ok || h > 23 || s[2] != ':' {
		return 0, fmt.Errorf("%q: %w", s, ErrMalformed)
	}
	m, ok := twoDigits(s[3:5])
	if !ok || m > 59 {
		return 0, fmt.Errorf("%q: %w", s, ErrMalformed)
	}
	if len(s) == 8 {
		sec, ok := twoDigits(s[6:8])
		if !ok || sec > 59 || s[5] != ':' {
			return 0, fmt.Errorf("%q: %w", s, ErrMalformed)
		}
	}
	return h*60 + m, nil
}

// Format renders minutes since midnight as "HH:MM".
// PRE: 0 <= minutes < MinutesPerDay
func Format(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Add returns start plus the given minutes as "HH:MM".
// PRE: start is a valid clock time, minutes >= 0
// POST: Returns the end time, or ErrPastMidnight
func Add(start string, minutes int) (string, error) {
	m, err := Parse(start)
	if err != nil {
		return "", err
	}
	end := m + minutes
	if end >= MinutesPerDay {
		return "", ErrPastMidnight
	}
	return Format(end), nil
}

// Normalize returns s as "HH:MM", dropping seconds.
func Normalize(s string) (string, error) {
	m, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Format(m), nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}
