package sim

import (
	"errors"
	"time"

	"github.com/akhenakh/concentratord/timebase"
)

var ErrNoTimeReference = errors.New("gps has no time reference")

// GPS is a receiver without time lock, it only reports a configured location.
type GPS struct {
	loc *timebase.Location
}

// NewGPS returns a GPS reporting loc as its fix, nil means no fix.
func NewGPS(loc *timebase.Location) *GPS {
	return &GPS{loc: loc}
}

func (g *GPS) CounterToTime(uint32) (time.Time, error) {
	return time.Time{}, ErrNoTimeReference
}

func (g *GPS) CounterToGPSEpoch(uint32) (time.Duration, error) {
	return 0, ErrNoTimeReference
}

func (g *GPS) GPSEpochToCounter(time.Duration) (uint32, error) {
	return 0, ErrNoTimeReference
}

func (g *GPS) CurrentFix() (timebase.Location, bool) {
	if g.loc == nil {
		return timebase.Location{}, false
	}
	return *g.loc, true
}
