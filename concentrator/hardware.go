package concentrator

import (
	"fmt"
	"time"
)

// Hardware is the subset of the concentrator HAL used for timekeeping and TX.
type Hardware interface {
	// ReadCounter returns the current value of the free running microsecond counter.
	ReadCounter() (uint32, error)

	// SetGPSTimestampMode enables or disables the capture of the counter on GPS PPS.
	SetGPSTimestampMode(enabled bool) error

	TimeOnAirEstimator
}

type TimeOnAirEstimator interface {
	TimeOnAir(p TxPacket) (time.Duration, error)
}

// Receiver fetches the packets received by the concentrator since the last call.
type Receiver interface {
	Receive() ([]RxPacket, error)
}

// HardwareError is returned when a register read or write failed, the
// concentrator state is unknown after such an error.
type HardwareError struct {
	Op  string
	Err error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("concentrator %s: %v", e.Op, e.Err)
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}
