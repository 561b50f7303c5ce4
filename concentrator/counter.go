package concentrator

import (
	"encoding/binary"
	"math"
	"time"
)

// WrapPeriod is the time it takes the 32 bits microsecond counter to overflow.
const WrapPeriod = (math.MaxUint32 + 1) * time.Microsecond

// ElapsedCounter returns the number of microseconds elapsed between two counter
// samples, tolerating at most one overflow in between.
func ElapsedCounter(prev, cur uint32) int64 {
	if cur < prev {
		return int64(cur) + math.MaxUint32 - int64(prev)
	}
	return int64(cur) - int64(prev)
}

// AddDuration adds d to the counter value, wrapping around like the hardware does.
func AddDuration(count uint32, d time.Duration) uint32 {
	return count + uint32(d.Microseconds())
}

// CounterFromBytes decodes a big endian counter snapshot.
func CounterFromBytes(b [4]byte) uint32 {
	return binary.BigEndian.Uint32(b[:])
}

// CounterBytes encodes a counter snapshot as big endian.
func CounterBytes(count uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, count)
	return b
}
