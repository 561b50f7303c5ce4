package timebase

import "fmt"

// ClockMode selects where absolute time comes from.
type ClockMode uint8

const (
	// ClockModeGPS uses the GPS time reference of the concentrator.
	ClockModeGPS ClockMode = iota
	// ClockModeSystemTime derives time from the host clock captured at start.
	ClockModeSystemTime
)

func (m ClockMode) String() string {
	switch m {
	case ClockModeSystemTime:
		return "systemtime"
	default:
		return "gps"
	}
}

func (m ClockMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseClockMode parses a timestamp method as found in the configuration.
func ParseClockMode(s string) (ClockMode, error) {
	switch s {
	case "gps":
		return ClockModeGPS, nil
	case "systemtime":
		return ClockModeSystemTime, nil
	default:
		return ClockModeGPS, fmt.Errorf("invalid timestamp method %q, expected \"gps\" or \"systemtime\"", s)
	}
}
