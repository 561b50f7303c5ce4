package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/akhenakh/cayenne"
	"github.com/brocaar/lorawan"
	"github.com/go-kit/kit/log/level"

	"github.com/akhenakh/concentratord/concentrator"
	"github.com/akhenakh/concentratord/timebase"
)

// LocationPayload encodes loc as a Cayenne LPP GPS record on channel.
func LocationPayload(channel uint8, loc timebase.Location) []byte {
	e := cayenne.NewEncoder()
	e.AddGPS(channel, float32(loc.Latitude), float32(loc.Longitude), float32(loc.Altitude))
	return e.Bytes()
}

// Beacon is a fake end device emitting unconfirmed data up frames.
type Beacon struct {
	DevAddr   lorawan.DevAddr
	FPort     uint8
	Frequency uint32
	Payload   []byte

	fCnt uint32
}

// Packet builds the next frame as received by the concentrator.
func (b *Beacon) Packet() (concentrator.RxPacket, error) {
	fPort := b.FPort
	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.UnconfirmedDataUp,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: b.DevAddr,
				FCnt:    b.fCnt,
			},
			FPort:      &fPort,
			FRMPayload: []lorawan.Payload{&lorawan.DataPayload{Bytes: b.Payload}},
		},
	}

	raw, err := phy.MarshalBinary()
	if err != nil {
		return concentrator.RxPacket{}, err
	}
	if len(raw) > concentrator.PayloadSize {
		return concentrator.RxPacket{}, fmt.Errorf("beacon frame too large: %d bytes", len(raw))
	}
	b.fCnt++

	p := concentrator.RxPacket{
		Frequency:  b.Frequency,
		Status:     concentrator.CRCOk,
		Modulation: concentrator.ModulationLoRa,
		Bandwidth:  125000,
		DataRate:   concentrator.SpreadingFactor(7),
		CodeRate:   concentrator.CodeRate4_5,
		RSSI:       -60,
		SNR:        7.5,
		Size:       uint16(len(raw)),
	}
	copy(p.Payload[:], raw)
	return p, nil
}

// RunBeacon injects a beacon frame every interval until ctx is done.
func (c *Concentrator) RunBeacon(ctx context.Context, b *Beacon, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p, err := b.Packet()
			if err != nil {
				return err
			}
			c.InjectRx(p)
			level.Debug(c.logger).Log("msg", "beacon frame injected", "dev_addr", b.DevAddr, "size", p.Size)
		}
	}
}
