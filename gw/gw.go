package gw

import (
	"time"

	log "github.com/go-kit/kit/log"

	"github.com/akhenakh/concentratord/concentrator"
	"github.com/akhenakh/concentratord/timebase"
)

// Clock converts counter values to time and back, usually a *timebase.TimeBase.
type Clock interface {
	CounterToTimestamp(count uint32) (time.Time, error)
	CounterToGPSEpochDuration(count uint32) (time.Duration, error)
	GPSEpochDurationToCounter(d time.Duration) (uint32, error)
}

// Locator reports the gateway location when the GPS has a fix.
type Locator interface {
	CurrentFix() (timebase.Location, bool)
}

// Translator converts concentrator packets to and from the gateway bridge
// protobuf messages.
type Translator struct {
	logger  log.Logger
	clock   Clock
	locator Locator
	toa     concentrator.TimeOnAirEstimator
}

func NewTranslator(logger log.Logger, clock Clock, locator Locator, toa concentrator.TimeOnAirEstimator) *Translator {
	return &Translator{
		logger:  log.With(logger, "component", "gw"),
		clock:   clock,
		locator: locator,
		toa:     toa,
	}
}
