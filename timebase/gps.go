package timebase

import (
	"time"
)

// GPSEpoch is the origin of GPS time.
var GPSEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// GPSLeapSeconds is the offset between GPS time and UTC.
const GPSLeapSeconds = 18 * time.Second

type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// GPS is the time reference maintained from the GPS PPS and NMEA sentences.
type GPS interface {
	CounterToTime(count uint32) (time.Time, error)
	CounterToGPSEpoch(count uint32) (time.Duration, error)
	GPSEpochToCounter(d time.Duration) (uint32, error)
	// CurrentFix returns the gateway coordinates, false if there is no fix.
	CurrentFix() (Location, bool)
}
