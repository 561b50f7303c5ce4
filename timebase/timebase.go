package timebase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/akhenakh/concentratord/concentrator"
)

// ErrTimeUnavailable is returned in GPS mode when the GPS has no valid time reference.
var ErrTimeUnavailable = errors.New("time unavailable")

// Anchor ties the concentrator counter to the wall clock.
type Anchor struct {
	// Base is the wall clock instant matching counter 0 of the first counter period.
	Base time.Time
	// LastCounter is the last counter sample seen.
	LastCounter uint32
	// Wraps is the number of counter overflows since Base.
	Wraps uint64
}

// Offset is the time accumulated by the counter overflows.
func (a Anchor) Offset() time.Duration {
	return time.Duration(a.Wraps) * concentrator.WrapPeriod
}

func (a Anchor) at(count uint32) time.Time {
	return a.Base.Add(a.Offset() + time.Duration(count)*time.Microsecond)
}

// TimeBase converts concentrator counter values to absolute time.
// The anchor, last counter and wrap count are guarded as one group.
type TimeBase struct {
	gps    GPS
	now    func() time.Time
	logger log.Logger

	mu     sync.Mutex
	mode   ClockMode
	tz     TimeZone
	anchor Anchor
}

type Option func(*TimeBase)

// WithClock replaces the host clock, used in tests.
func WithClock(now func() time.Time) Option {
	return func(tb *TimeBase) {
		tb.now = now
	}
}

func WithLogger(logger log.Logger) Option {
	return func(tb *TimeBase) {
		tb.logger = logger
	}
}

func New(gps GPS, opts ...Option) *TimeBase {
	tb := &TimeBase{
		gps:    gps,
		now:    time.Now,
		logger: log.NewNopLogger(),
	}
	for _, o := range opts {
		o(tb)
	}
	tb.logger = log.With(tb.logger, "component", "timebase")
	return tb
}

// Start sets the clock mode and timezone, in system time mode the current
// host time becomes the anchor.
func (tb *TimeBase) Start(mode ClockMode, tz TimeZone) {
	tb.mu.Lock()
	tb.mode = mode
	tb.tz = tz
	if mode == ClockModeSystemTime {
		tb.anchor = Anchor{Base: tb.now()}
	}
	tb.mu.Unlock()

	level.Info(tb.logger).Log("msg", "timestamps source", "mode", mode, "timezone", tz)
}

func (tb *TimeBase) Mode() ClockMode {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.mode
}

func (tb *TimeBase) TimeZone() TimeZone {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tz
}

// Anchor returns a snapshot of the current anchor.
func (tb *TimeBase) Anchor() Anchor {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.anchor
}

// snapshot returns the state needed for a conversion, the GPS must be
// called without holding the lock.
func (tb *TimeBase) snapshot() (ClockMode, TimeZone, Anchor) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.mode, tb.tz, tb.anchor
}

// NotifyCounterSample records a counter sample, a sample lower than the
// previous one is one counter overflow. It reports whether an overflow was
// committed. In GPS mode the GPS reference handles overflows and this is a no-op.
func (tb *TimeBase) NotifyCounterSample(count uint32) bool {
	tb.mu.Lock()
	if tb.mode != ClockModeSystemTime {
		tb.mu.Unlock()
		return false
	}
	wrapped := count < tb.anchor.LastCounter
	if wrapped {
		tb.anchor.Wraps++
	}
	tb.anchor.LastCounter = count
	wraps := tb.anchor.Wraps
	tb.mu.Unlock()

	if wrapped {
		level.Debug(tb.logger).Log("msg", "timestamp counter wrap around", "count_us", count, "wraps", wraps)
	}
	return wrapped
}

// CounterToTimestamp returns the absolute time at which the counter had the given value.
func (tb *TimeBase) CounterToTimestamp(count uint32) (time.Time, error) {
	mode, tz, anchor := tb.snapshot()
	switch mode {
	case ClockModeSystemTime:
		return anchor.at(count).Add(tz.Duration()), nil
	default:
		t, err := tb.gps.CounterToTime(count)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrTimeUnavailable, err)
		}
		return t, nil
	}
}

// CounterToGPSEpochDuration returns the time since the GPS epoch at which
// the counter had the given value.
func (tb *TimeBase) CounterToGPSEpochDuration(count uint32) (time.Duration, error) {
	mode, tz, anchor := tb.snapshot()
	switch mode {
	case ClockModeSystemTime:
		t := anchor.at(count).Add(tz.Duration())
		return t.Sub(GPSEpoch) + GPSLeapSeconds, nil
	default:
		d, err := tb.gps.CounterToGPSEpoch(count)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTimeUnavailable, err)
		}
		return d, nil
	}
}

// GPSEpochDurationToCounter is the inverse of CounterToGPSEpochDuration, the
// result is the counter value modulo its 32 bits range.
func (tb *TimeBase) GPSEpochDurationToCounter(d time.Duration) (uint32, error) {
	mode, tz, anchor := tb.snapshot()
	switch mode {
	case ClockModeSystemTime:
		t := GPSEpoch.Add(d - GPSLeapSeconds)
		elapsed := t.Sub(anchor.Base) - anchor.Offset() - tz.Duration()
		return uint32(elapsed.Microseconds()), nil
	default:
		count, err := tb.gps.GPSEpochToCounter(d)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTimeUnavailable, err)
		}
		return count, nil
	}
}
