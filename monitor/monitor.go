package monitor

import (
	"context"
	"sync"
	"time"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/akhenakh/concentratord/concentrator"
	"github.com/akhenakh/concentratord/metrics"
)

// DefaultPeriod is the time between two counter samples, it must stay well
// under the counter overflow period.
const DefaultPeriod = 60 * time.Second

// CounterSink receives the counter samples, usually a *timebase.TimeBase.
type CounterSink interface {
	NotifyCounterSample(count uint32) bool
}

// Sample is the result of one synchronization.
type Sample struct {
	Count uint32
	Time  time.Time
	// Elapsed is the host clock time since the previous sample.
	Elapsed time.Duration
	// ElapsedCount is the number of counter microseconds since the previous sample.
	ElapsedCount int64
	// Drift is Elapsed minus ElapsedCount.
	Drift   time.Duration
	Wrapped bool
}

// Monitor periodically samples the concentrator counter against the host clock.
type Monitor struct {
	logger log.Logger
	hw     concentrator.Hardware
	sink   CounterSink
	period time.Duration
	now    func() time.Time

	mu        sync.Mutex
	prevCount uint32
	prevTime  time.Time
}

type Option func(*Monitor)

func WithPeriod(d time.Duration) Option {
	return func(m *Monitor) {
		m.period = d
	}
}

// WithClock replaces the host clock, used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New returns a Monitor, the first counter sample is taken immediately.
func New(logger log.Logger, hw concentrator.Hardware, sink CounterSink, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		logger: log.With(logger, "component", "timesync"),
		hw:     hw,
		sink:   sink,
		period: DefaultPeriod,
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}

	count, err := hw.ReadCounter()
	if err != nil {
		return nil, &concentrator.HardwareError{Op: "read counter", Err: err}
	}
	m.prevCount = count
	m.prevTime = m.now()

	return m, nil
}

// Run syncs every period until ctx is done.
// It returns a *concentrator.HardwareError if the concentrator failed,
// the GPS timestamp mode of the concentrator is then unknown and the process should stop.
func (m *Monitor) Run(ctx context.Context) error {
	level.Info(m.logger).Log("msg", "starting timesync loop", "period", m.period)

	for {
		if _, err := m.Sync(); err != nil {
			level.Error(m.logger).Log("msg", "timesync failed", "error", err)
			return err
		}

		t := time.NewTimer(m.period)
		select {
		case <-ctx.Done():
			t.Stop()
			level.Info(m.logger).Log("msg", "timesync loop ended")
			return nil
		case <-t.C:
		}
	}
}

// Sync samples the counter and the host clock and forwards the counter to the sink.
func (m *Monitor) Sync() (Sample, error) {
	level.Debug(m.logger).Log("msg", "disabling GPS mode for concentrator counter")
	if err := m.hw.SetGPSTimestampMode(false); err != nil {
		return Sample{}, &concentrator.HardwareError{Op: "disable gps timestamp mode", Err: err}
	}

	count, err := m.hw.ReadCounter()
	if err != nil {
		return Sample{}, &concentrator.HardwareError{Op: "read counter", Err: err}
	}
	now := m.now()

	m.mu.Lock()
	s := Sample{
		Count:        count,
		Time:         now,
		Elapsed:      now.Sub(m.prevTime),
		ElapsedCount: concentrator.ElapsedCounter(m.prevCount, count),
	}
	m.prevCount = count
	m.prevTime = now
	m.mu.Unlock()

	s.Drift = time.Duration(s.Elapsed.Microseconds()-s.ElapsedCount) * time.Microsecond
	s.Wrapped = m.sink.NotifyCounterSample(count)

	metrics.CounterSyncCounter.Inc()
	metrics.CounterDriftGauge.Set(float64(s.Drift.Microseconds()))
	if s.Wrapped {
		metrics.CounterWrapCounter.Inc()
	}

	level.Debug(m.logger).Log("msg", "concentrator drift", "count_us", count, "drift_us", s.Drift.Microseconds())

	level.Debug(m.logger).Log("msg", "enabling GPS mode for concentrator counter")
	if err := m.hw.SetGPSTimestampMode(true); err != nil {
		return s, &concentrator.HardwareError{Op: "enable gps timestamp mode", Err: err}
	}

	return s, nil
}

// EstimateCounter extrapolates the current counter value from the last
// sample and the host clock.
func (m *Monitor) EstimateCounter() uint32 {
	m.mu.Lock()
	count, t := m.prevCount, m.prevTime
	m.mu.Unlock()

	return concentrator.AddDuration(count, m.now().Sub(t))
}
