package gw

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/akhenakh/concentratord/concentrator"
)

// Errors returned by a Scheduler refusing a packet.
var (
	ErrTooLate   = errors.New("too late to transmit")
	ErrTooEarly  = errors.New("too early to transmit")
	ErrQueueFull = errors.New("tx queue full")
)

// Scheduler queues packets for transmission.
type Scheduler interface {
	Enqueue(tx *TxPacket) error
}

// TxPacket is a translated downlink waiting to be scheduled.
type TxPacket struct {
	packet concentrator.TxPacket
	id     uuid.UUID
	toa    concentrator.TimeOnAirEstimator
}

func NewTxPacket(id uuid.UUID, p concentrator.TxPacket, toa concentrator.TimeOnAirEstimator) *TxPacket {
	return &TxPacket{
		packet: p,
		id:     id,
		toa:    toa,
	}
}

// TimeOnAir asks the concentrator how long the packet will be transmitted.
func (tx *TxPacket) TimeOnAir() (time.Duration, error) {
	return tx.toa.TimeOnAir(tx.packet)
}

func (tx *TxPacket) TxMode() concentrator.TxMode {
	return tx.packet.TxMode
}

func (tx *TxPacket) SetTxMode(m concentrator.TxMode) {
	tx.packet.TxMode = m
}

func (tx *TxPacket) CountUS() uint32 {
	return tx.packet.CountUS
}

func (tx *TxPacket) SetCountUS(count uint32) {
	tx.packet.CountUS = count
}

// ID returns the downlink id in its canonical string form.
func (tx *TxPacket) ID() string {
	return tx.id.String()
}

func (tx *TxPacket) UUID() uuid.UUID {
	return tx.id
}

// Packet returns a copy of the hardware packet.
func (tx *TxPacket) Packet() concentrator.TxPacket {
	return tx.packet
}
