// Package sim is a software concentrator used when no SX1301 board is attached.
package sim

import (
	"errors"
	"sync"
	"time"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/akhenakh/concentratord/concentrator"
	"github.com/akhenakh/concentratord/gw"
)

// RxBufferSize is the number of received packets kept until the next Receive.
const RxBufferSize = 16

// Concentrator counts microseconds from the host clock and loops back
// injected packets.
type Concentrator struct {
	logger log.Logger
	now    func() time.Time
	start  time.Time
	offset uint32

	mu      sync.Mutex
	gpsMode bool
	rx      []concentrator.RxPacket
	tx      []*gw.TxPacket
	txSize  int
}

type Option func(*Concentrator)

// WithClock replaces the host clock, used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Concentrator) {
		c.now = now
	}
}

// WithCounterOffset sets the counter value at start.
func WithCounterOffset(offset uint32) Option {
	return func(c *Concentrator) {
		c.offset = offset
	}
}

// WithTxQueueSize limits the number of pending downlinks.
func WithTxQueueSize(n int) Option {
	return func(c *Concentrator) {
		c.txSize = n
	}
}

func New(logger log.Logger, opts ...Option) *Concentrator {
	c := &Concentrator{
		logger: log.With(logger, "component", "sim"),
		now:    time.Now,
		txSize: 32,
	}
	for _, o := range opts {
		o(c)
	}
	c.start = c.now()
	return c
}

func (c *Concentrator) ReadCounter() (uint32, error) {
	return concentrator.AddDuration(c.offset, c.now().Sub(c.start)), nil
}

func (c *Concentrator) SetGPSTimestampMode(enabled bool) error {
	c.mu.Lock()
	c.gpsMode = enabled
	c.mu.Unlock()
	return nil
}

func (c *Concentrator) GPSTimestampMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gpsMode
}

// TimeOnAir computes the transmission duration of a LoRa or FSK packet.
func (c *Concentrator) TimeOnAir(p concentrator.TxPacket) (time.Duration, error) {
	switch p.Modulation {
	case concentrator.ModulationLoRa:
		sf, ok := p.DataRate.(concentrator.SpreadingFactor)
		if !ok || !sf.Valid() {
			return 0, errors.New("unexpected spreading-factor")
		}
		if p.Bandwidth == 0 {
			return 0, errors.New("bandwidth must not be 0")
		}
		return loraTimeOnAir(p, sf), nil
	case concentrator.ModulationFSK:
		dr, ok := p.DataRate.(concentrator.FSKDataRate)
		if !ok || dr == 0 {
			return 0, errors.New("unexpected datarate")
		}
		return fskTimeOnAir(p, dr), nil
	default:
		return 0, errors.New("unsupported modulation")
	}
}

func loraTimeOnAir(p concentrator.TxPacket, sf concentrator.SpreadingFactor) time.Duration {
	crc := int64(1)
	if p.NoCRC {
		crc = 0
	}
	ih := int64(0)
	if p.NoHeader {
		ih = 1
	}
	// low data rate optimisation above 16ms symbols
	ldr := int64(0)
	if sf >= 11 && p.Bandwidth <= 125000 {
		ldr = 1
	}
	cr := int64(p.CodeRate)
	if cr == 0 {
		cr = int64(concentrator.CodeRate4_5)
	}
	spread := int64(sf)
	preamble := int64(p.Preamble)
	if preamble == 0 {
		preamble = 8
	}

	n := 8*int64(p.Size) - 4*spread + 28 + 16*crc - 20*ih
	div := 4 * (spread - 2*ldr)
	if n < 0 {
		n = 0
	} else {
		n = (n + div - 1) / div * (cr + 4)
	}
	n += 8 + preamble + 5

	chips := int64(1) << uint(spread)
	return time.Second * time.Duration(n*chips) / time.Duration(p.Bandwidth)
}

func fskTimeOnAir(p concentrator.TxPacket, dr concentrator.FSKDataRate) time.Duration {
	preamble := int64(p.Preamble)
	if preamble == 0 {
		preamble = 5
	}
	// preamble, 3 bytes syncword, length byte, payload and 2 bytes crc
	bits := 8 * (preamble + 3 + 1 + int64(p.Size) + 2)
	return time.Millisecond * time.Duration(bits) / time.Duration(dr)
}

// InjectRx queues a packet as if it had just been received, the counter
// value is stamped when not set. The oldest packet is dropped when full.
func (c *Concentrator) InjectRx(p concentrator.RxPacket) {
	if p.CountUS == 0 {
		p.CountUS, _ = c.ReadCounter()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rx) >= RxBufferSize {
		c.rx = c.rx[1:]
		level.Warn(c.logger).Log("msg", "rx buffer full, dropping oldest packet")
	}
	c.rx = append(c.rx, p)
}

// Receive returns and clears the pending packets.
func (c *Concentrator) Receive() ([]concentrator.RxPacket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.rx
	c.rx = nil
	return res, nil
}

// Enqueue accepts a downlink, timestamped packets must be in the future.
func (c *Concentrator) Enqueue(tx *gw.TxPacket) error {
	if tx.TxMode() == concentrator.TxModeTimestamped {
		now, err := c.ReadCounter()
		if err != nil {
			return err
		}
		if int32(tx.CountUS()-now) < 0 {
			return gw.ErrTooLate
		}
	}

	toa, err := tx.TimeOnAir()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tx) >= c.txSize {
		return gw.ErrQueueFull
	}
	c.tx = append(c.tx, tx)

	level.Info(c.logger).Log(
		"msg", "downlink queued",
		"downlink_id", tx.ID(),
		"tx_mode", tx.TxMode(),
		"count_us", tx.CountUS(),
		"time_on_air", toa,
	)
	return nil
}

// Transmitted returns and clears the queued downlinks.
func (c *Concentrator) Transmitted() []*gw.TxPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.tx
	c.tx = nil
	return res
}
