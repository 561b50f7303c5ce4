package timebase

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const maxTimeZoneMinutes = 99*60 + 59

// TimeZone is a signed offset in whole minutes applied to the host clock.
type TimeZone struct {
	minutes int
}

// UTC is the zero offset.
var UTC = TimeZone{}

var (
	ErrTimeZoneLength = errors.New("timezone must be 5 characters long")
	ErrTimeZoneSign   = errors.New("timezone must start with + or -")
	ErrTimeZoneDigits = errors.New("timezone hours and minutes must be numbers")
	ErrTimeZoneRange  = errors.New("timezone offset can't be rendered as ±HHMM")
)

// NewTimeZone returns an offset of minutes, it fails if the offset needs more
// than 2 digits of hours.
func NewTimeZone(minutes int) (TimeZone, error) {
	if minutes > maxTimeZoneMinutes || minutes < -maxTimeZoneMinutes {
		return UTC, ErrTimeZoneRange
	}
	return TimeZone{minutes: minutes}, nil
}

// ParseTimeZone parses a "+HHMM" or "-HHMM" string.
func ParseTimeZone(s string) (TimeZone, error) {
	if len(s) != 5 {
		return UTC, fmt.Errorf("%w: got %d", ErrTimeZoneLength, len(s))
	}

	var sign int
	switch s[0] {
	case '+':
		sign = 1
	case '-':
		sign = -1
	default:
		return UTC, fmt.Errorf("%w: found %q", ErrTimeZoneSign, s[0])
	}

	hours, err := parseDigits(s[1:3])
	if err != nil {
		return UTC, err
	}
	minutes, err := parseDigits(s[3:5])
	if err != nil {
		return UTC, err
	}
	if minutes > 59 {
		return UTC, fmt.Errorf("%w: minutes %d out of range", ErrTimeZoneDigits, minutes)
	}

	return TimeZone{minutes: sign * (hours*60 + minutes)}, nil
}

// strconv.Atoi accepts a leading sign, the fields are digits only.
func parseDigits(s string) (int, error) {
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrTimeZoneDigits, s)
		}
	}
	return strconv.Atoi(s)
}

func (tz TimeZone) Minutes() int {
	return tz.minutes
}

func (tz TimeZone) Duration() time.Duration {
	return time.Duration(tz.minutes) * time.Minute
}

// String renders the offset as ±HHMM.
func (tz TimeZone) String() string {
	s, err := tz.format()
	if err != nil {
		return "invalid(" + strconv.Itoa(tz.minutes) + "m)"
	}
	return s
}

func (tz TimeZone) format() (string, error) {
	m := tz.minutes
	sign := '+'
	if m < 0 {
		sign = '-'
		m = -m
	}
	if m > maxTimeZoneMinutes {
		return "", ErrTimeZoneRange
	}
	return fmt.Sprintf("%c%02d%02d", sign, m/60, m%60), nil
}

func (tz TimeZone) MarshalText() ([]byte, error) {
	s, err := tz.format()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (tz *TimeZone) UnmarshalText(b []byte) error {
	v, err := ParseTimeZone(string(b))
	if err != nil {
		return err
	}
	*tz = v
	return nil
}
