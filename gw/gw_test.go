package gw

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brocaar/chirpstack-api/go/v3/common"
	gwpb "github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/brocaar/lorawan"
	log "github.com/go-kit/kit/log"
	"github.com/golang/protobuf/ptypes"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/akhenakh/concentratord/concentrator"
	"github.com/akhenakh/concentratord/timebase"
)

var gatewayID = lorawan.EUI64{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

type fakeClock struct {
	err error
	ts  time.Time
	// epoch is the time since GPS epoch of counter 0
	epoch time.Duration
}

func (c *fakeClock) CounterToTimestamp(count uint32) (time.Time, error) {
	if c.err != nil {
		return time.Time{}, c.err
	}
	return c.ts.Add(time.Duration(count) * time.Microsecond), nil
}

func (c *fakeClock) CounterToGPSEpochDuration(count uint32) (time.Duration, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.epoch + time.Duration(count)*time.Microsecond, nil
}

func (c *fakeClock) GPSEpochDurationToCounter(d time.Duration) (uint32, error) {
	if c.err != nil {
		return 0, c.err
	}
	return uint32((d - c.epoch).Microseconds()), nil
}

type fakeLocator struct {
	loc *timebase.Location
}

func (l fakeLocator) CurrentFix() (timebase.Location, bool) {
	if l.loc == nil {
		return timebase.Location{}, false
	}
	return *l.loc, true
}

type fakeToA struct {
	d time.Duration
}

func (f fakeToA) TimeOnAir(p concentrator.TxPacket) (time.Duration, error) {
	if p.Modulation == concentrator.ModulationUndefined {
		return 0, errors.New("undefined modulation")
	}
	return f.d, nil
}

type fakeScheduler struct {
	rejectFirst bool
	queued      []*TxPacket
}

func (s *fakeScheduler) Enqueue(tx *TxPacket) error {
	if s.rejectFirst && len(s.queued) == 0 {
		s.rejectFirst = false
		return ErrTooLate
	}
	s.queued = append(s.queued, tx)
	return nil
}

var (
	ts    = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	epoch = ts.Sub(timebase.GPSEpoch) + timebase.GPSLeapSeconds
)

func newTestTranslator(clock Clock, loc *timebase.Location) *Translator {
	return NewTranslator(log.NewNopLogger(), clock, fakeLocator{loc: loc}, fakeToA{d: 41 * time.Millisecond})
}

func loraRxPacket() *concentrator.RxPacket {
	p := &concentrator.RxPacket{
		Frequency:  868100000,
		IFChain:    2,
		RFChain:    1,
		Status:     concentrator.CRCOk,
		CountUS:    0x01020304,
		Modulation: concentrator.ModulationLoRa,
		Bandwidth:  125000,
		DataRate:   concentrator.SpreadingFactor(7),
		CodeRate:   concentrator.CodeRate4_5,
		RSSI:       -57,
		SNR:        9.5,
		Size:       4,
	}
	copy(p.Payload[:], []byte{1, 2, 3, 4})
	return p
}

func TestUplinkLoRa(t *testing.T) {
	loc := &timebase.Location{Latitude: 45.5, Longitude: -73.6, Altitude: 40}
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, loc)

	p := loraRxPacket()
	frame, err := tr.UplinkToProto(gatewayID, p)
	require.NoError(t, err)

	require.Equal(t, []byte{1, 2, 3, 4}, frame.PhyPayload)
	require.Equal(t, uint32(868100000), frame.TxInfo.Frequency)
	require.Equal(t, common.Modulation_LORA, frame.TxInfo.Modulation)
	lora := frame.TxInfo.GetLoraModulationInfo()
	require.NotNil(t, lora)
	require.Equal(t, uint32(125), lora.Bandwidth)
	require.Equal(t, uint32(7), lora.SpreadingFactor)
	require.Equal(t, "4/5", lora.CodeRate)

	rx := frame.RxInfo
	require.Equal(t, gatewayID[:], rx.GatewayId)
	require.Len(t, rx.UplinkId, 16)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, rx.Context)
	require.Equal(t, int32(-57), rx.Rssi)
	require.InDelta(t, 9.5, rx.LoraSnr, 0.001)
	require.Equal(t, uint32(2), rx.Channel)
	require.Equal(t, uint32(1), rx.RfChain)
	require.Equal(t, gwpb.CRCStatus_CRC_OK, rx.CrcStatus)

	got, err := ptypes.Timestamp(rx.Time)
	require.NoError(t, err)
	require.True(t, ts.Add(time.Duration(p.CountUS)*time.Microsecond).Equal(got))

	d, err := ptypes.Duration(rx.TimeSinceGpsEpoch)
	require.NoError(t, err)
	require.Equal(t, epoch+time.Duration(p.CountUS)*time.Microsecond, d)

	require.NotNil(t, rx.Location)
	require.Equal(t, common.LocationSource_GPS, rx.Location.Source)
	require.InDelta(t, 45.5, rx.Location.Latitude, 0.0001)
}

func TestUplinkFreshID(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)

	a, err := tr.UplinkToProto(gatewayID, loraRxPacket())
	require.NoError(t, err)
	b, err := tr.UplinkToProto(gatewayID, loraRxPacket())
	require.NoError(t, err)
	require.NotEqual(t, a.RxInfo.UplinkId, b.RxInfo.UplinkId)
}

func TestUplinkNoTimeReference(t *testing.T) {
	tr := newTestTranslator(&fakeClock{err: timebase.ErrTimeUnavailable}, nil)

	frame, err := tr.UplinkToProto(gatewayID, loraRxPacket())
	require.NoError(t, err)
	require.Nil(t, frame.RxInfo.Time)
	require.Nil(t, frame.RxInfo.TimeSinceGpsEpoch)
	require.Nil(t, frame.RxInfo.Location)

	// everything else is still there
	require.Equal(t, []byte{1, 2, 3, 4}, frame.PhyPayload)
	require.Equal(t, gatewayID[:], frame.RxInfo.GatewayId)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, frame.RxInfo.Context)
	require.Equal(t, uint32(7), frame.TxInfo.GetLoraModulationInfo().SpreadingFactor)
}

func TestUplinkFSK(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)

	p := &concentrator.RxPacket{
		Frequency:  868800000,
		Modulation: concentrator.ModulationFSK,
		DataRate:   concentrator.FSKDataRate(50),
		Status:     concentrator.CRCBad,
	}
	frame, err := tr.UplinkToProto(gatewayID, p)
	require.NoError(t, err)
	require.Equal(t, common.Modulation_FSK, frame.TxInfo.Modulation)
	require.Equal(t, uint32(50000), frame.TxInfo.GetFskModulationInfo().Datarate)
	require.Equal(t, gwpb.CRCStatus_BAD_CRC, frame.RxInfo.CrcStatus)
	require.Empty(t, frame.PhyPayload)
}

func TestUplinkErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(p *concentrator.RxPacket)
		err  error
	}{
		{"undefined modulation", func(p *concentrator.RxPacket) { p.Modulation = concentrator.ModulationUndefined }, ErrUnsupportedModulation},
		{"sf6", func(p *concentrator.RxPacket) { p.DataRate = concentrator.SpreadingFactor(6) }, ErrInvalidSpreadingFactor},
		{"lora with fsk rate", func(p *concentrator.RxPacket) { p.DataRate = concentrator.FSKDataRate(50) }, ErrInvalidSpreadingFactor},
		{"fsk with sf", func(p *concentrator.RxPacket) { p.Modulation = concentrator.ModulationFSK }, ErrInvalidDataRate},
	}

	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := loraRxPacket()
			tt.edit(p)
			frame, err := tr.UplinkToProto(gatewayID, p)
			require.Nil(t, frame)
			require.ErrorIs(t, err, tt.err)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUplinkCodeRate(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)
	p := loraRxPacket()
	p.CodeRate = concentrator.CodeRateUndefined
	frame, err := tr.UplinkToProto(gatewayID, p)
	require.NoError(t, err)
	require.Equal(t, "", frame.TxInfo.GetLoraModulationInfo().CodeRate)
}

func loraTxInfo() *gwpb.DownlinkTXInfo {
	return &gwpb.DownlinkTXInfo{
		Frequency:  869525000,
		Power:      14,
		Modulation: common.Modulation_LORA,
		ModulationInfo: &gwpb.DownlinkTXInfo_LoraModulationInfo{
			LoraModulationInfo: &gwpb.LoRaModulationInfo{
				Bandwidth:             125,
				SpreadingFactor:       9,
				CodeRate:              "4/5",
				PolarizationInversion: true,
			},
		},
		Timing: gwpb.DownlinkTiming_DELAY,
		TimingInfo: &gwpb.DownlinkTXInfo_DelayTimingInfo{
			DelayTimingInfo: &gwpb.DelayTimingInfo{
				Delay: ptypes.DurationProto(time.Second),
			},
		},
		Context: []byte{0x00, 0x00, 0x10, 0x00},
	}
}

func TestDownlinkDelay(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)
	id := uuid.New()

	tx, err := tr.DownlinkFromProto(id, &gwpb.DownlinkFrameItem{
		PhyPayload: []byte{0xde, 0xad},
		TxInfo:     loraTxInfo(),
	})
	require.NoError(t, err)
	require.Equal(t, id.String(), tx.ID())
	require.Equal(t, concentrator.TxModeTimestamped, tx.TxMode())
	require.Equal(t, uint32(4096+1_000_000), tx.CountUS())

	p := tx.Packet()
	require.Equal(t, uint32(869525000), p.Frequency)
	require.Equal(t, int8(14), p.RFPower)
	require.Equal(t, concentrator.ModulationLoRa, p.Modulation)
	require.Equal(t, uint32(125000), p.Bandwidth)
	require.Equal(t, concentrator.SpreadingFactor(9), p.DataRate)
	require.Equal(t, concentrator.CodeRate4_5, p.CodeRate)
	require.True(t, p.InvertPolarization)
	require.Equal(t, uint16(2), p.Size)
	require.Equal(t, byte(0xad), p.Payload[1])

	toa, err := tx.TimeOnAir()
	require.NoError(t, err)
	require.Equal(t, 41*time.Millisecond, toa)
}

func TestDownlinkDelayWraps(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)
	txInfo := loraTxInfo()
	txInfo.Context = []byte{0xff, 0xff, 0xff, 0xf0}

	tx, err := tr.DownlinkFromProto(uuid.New(), &gwpb.DownlinkFrameItem{TxInfo: txInfo})
	require.NoError(t, err)
	require.Equal(t, uint32(1_000_000-16), tx.CountUS())
}

func TestDownlinkDelayProperty(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)
	properties := gopter.NewProperties(nil)

	properties.Property("target is context plus delay modulo 2^32", prop.ForAll(
		func(ctx uint32, delayUS uint32) bool {
			txInfo := loraTxInfo()
			txInfo.Context = concentrator.CounterBytes(ctx)
			txInfo.TimingInfo = &gwpb.DownlinkTXInfo_DelayTimingInfo{
				DelayTimingInfo: &gwpb.DelayTimingInfo{
					Delay: ptypes.DurationProto(time.Duration(delayUS) * time.Microsecond),
				},
			}
			tx, err := tr.DownlinkFromProto(uuid.New(), &gwpb.DownlinkFrameItem{TxInfo: txInfo})
			if err != nil {
				return false
			}
			return tx.CountUS() == ctx+delayUS
		},
		gen.UInt32(),
		gen.UInt32(),
	))

	properties.TestingRun(t)
}

func TestDownlinkGPSEpoch(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)
	txInfo := loraTxInfo()
	txInfo.Timing = gwpb.DownlinkTiming_GPS_EPOCH
	txInfo.Context = nil
	txInfo.TimingInfo = &gwpb.DownlinkTXInfo_GpsEpochTimingInfo{
		GpsEpochTimingInfo: &gwpb.GPSEpochTimingInfo{
			TimeSinceGpsEpoch: ptypes.DurationProto(epoch + 5*time.Second),
		},
	}

	tx, err := tr.DownlinkFromProto(uuid.New(), &gwpb.DownlinkFrameItem{TxInfo: txInfo})
	require.NoError(t, err)
	require.Equal(t, concentrator.TxModeTimestamped, tx.TxMode())
	require.Equal(t, uint32(5_000_000), tx.CountUS())

	tr = newTestTranslator(&fakeClock{err: timebase.ErrTimeUnavailable}, nil)
	_, err = tr.DownlinkFromProto(uuid.New(), &gwpb.DownlinkFrameItem{TxInfo: txInfo})
	require.ErrorIs(t, err, timebase.ErrTimeUnavailable)
}

func TestDownlinkSystemTimeRoundTrip(t *testing.T) {
	tb := timebase.New(nil, timebase.WithClock(func() time.Time { return ts }))
	tb.Start(timebase.ClockModeSystemTime, timebase.UTC)
	tr := newTestTranslator(tb, nil)

	frame, err := tr.UplinkToProto(gatewayID, loraRxPacket())
	require.NoError(t, err)

	d, err := ptypes.Duration(frame.RxInfo.TimeSinceGpsEpoch)
	require.NoError(t, err)

	txInfo := loraTxInfo()
	txInfo.TimingInfo = &gwpb.DownlinkTXInfo_GpsEpochTimingInfo{
		GpsEpochTimingInfo: &gwpb.GPSEpochTimingInfo{
			TimeSinceGpsEpoch: ptypes.DurationProto(d + time.Second),
		},
	}
	tx, err := tr.DownlinkFromProto(uuid.New(), &gwpb.DownlinkFrameItem{TxInfo: txInfo})
	require.NoError(t, err)
	require.Equal(t, loraRxPacket().CountUS+1_000_000, tx.CountUS())
}

func TestDownlinkImmediately(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)

	txInfo := loraTxInfo()
	txInfo.Timing = gwpb.DownlinkTiming_IMMEDIATELY
	txInfo.TimingInfo = &gwpb.DownlinkTXInfo_ImmediatelyTimingInfo{
		ImmediatelyTimingInfo: &gwpb.ImmediatelyTimingInfo{},
	}
	tx, err := tr.DownlinkFromProto(uuid.New(), &gwpb.DownlinkFrameItem{TxInfo: txInfo})
	require.NoError(t, err)
	require.Equal(t, concentrator.TxModeImmediate, tx.TxMode())

	// no timing info at all
	txInfo.TimingInfo = nil
	tx, err = tr.DownlinkFromProto(uuid.New(), &gwpb.DownlinkFrameItem{TxInfo: txInfo})
	require.NoError(t, err)
	require.Equal(t, concentrator.TxModeImmediate, tx.TxMode())
}

func TestDownlinkFSK(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)

	txInfo := loraTxInfo()
	txInfo.Modulation = common.Modulation_FSK
	txInfo.ModulationInfo = &gwpb.DownlinkTXInfo_FskModulationInfo{
		FskModulationInfo: &gwpb.FSKModulationInfo{
			Datarate:           50000,
			FrequencyDeviation: 25000,
		},
	}
	tx, err := tr.DownlinkFromProto(uuid.New(), &gwpb.DownlinkFrameItem{TxInfo: txInfo})
	require.NoError(t, err)
	p := tx.Packet()
	require.Equal(t, concentrator.ModulationFSK, p.Modulation)
	require.Equal(t, concentrator.FSKDataRate(50), p.DataRate)
	require.Equal(t, uint8(25), p.FrequencyDeviation)
}

func TestDownlinkLenientCodeRate(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)

	txInfo := loraTxInfo()
	txInfo.GetLoraModulationInfo().CodeRate = "4/9"
	tx, err := tr.DownlinkFromProto(uuid.New(), &gwpb.DownlinkFrameItem{TxInfo: txInfo})
	require.NoError(t, err)
	require.Equal(t, concentrator.CodeRateUndefined, tx.Packet().CodeRate)
}

func TestDownlinkErrors(t *testing.T) {
	tests := []struct {
		name string
		item func() *gwpb.DownlinkFrameItem
		err  error
	}{
		{"nil tx_info", func() *gwpb.DownlinkFrameItem {
			return &gwpb.DownlinkFrameItem{PhyPayload: []byte{1}}
		}, ErrMissingField},
		{"payload too large", func() *gwpb.DownlinkFrameItem {
			return &gwpb.DownlinkFrameItem{PhyPayload: make([]byte, 257), TxInfo: loraTxInfo()}
		}, ErrPayloadTooLarge},
		{"3 bytes context", func() *gwpb.DownlinkFrameItem {
			txInfo := loraTxInfo()
			txInfo.Context = []byte{1, 2, 3}
			return &gwpb.DownlinkFrameItem{TxInfo: txInfo}
		}, ErrInvalidContext},
		{"missing delay", func() *gwpb.DownlinkFrameItem {
			txInfo := loraTxInfo()
			txInfo.TimingInfo = &gwpb.DownlinkTXInfo_DelayTimingInfo{DelayTimingInfo: &gwpb.DelayTimingInfo{}}
			return &gwpb.DownlinkFrameItem{TxInfo: txInfo}
		}, ErrMissingField},
		{"negative delay", func() *gwpb.DownlinkFrameItem {
			txInfo := loraTxInfo()
			txInfo.TimingInfo = &gwpb.DownlinkTXInfo_DelayTimingInfo{DelayTimingInfo: &gwpb.DelayTimingInfo{
				Delay: ptypes.DurationProto(-time.Second),
			}}
			return &gwpb.DownlinkFrameItem{TxInfo: txInfo}
		}, ErrInvalidTiming},
		{"missing gps epoch", func() *gwpb.DownlinkFrameItem {
			txInfo := loraTxInfo()
			txInfo.TimingInfo = &gwpb.DownlinkTXInfo_GpsEpochTimingInfo{GpsEpochTimingInfo: &gwpb.GPSEpochTimingInfo{}}
			return &gwpb.DownlinkFrameItem{TxInfo: txInfo}
		}, ErrMissingField},
		{"delay timing without timing info", func() *gwpb.DownlinkFrameItem {
			txInfo := loraTxInfo()
			txInfo.TimingInfo = nil
			return &gwpb.DownlinkFrameItem{TxInfo: txInfo}
		}, ErrMissingField},
		{"missing modulation", func() *gwpb.DownlinkFrameItem {
			txInfo := loraTxInfo()
			txInfo.ModulationInfo = nil
			return &gwpb.DownlinkFrameItem{TxInfo: txInfo}
		}, ErrMissingField},
		{"sf13", func() *gwpb.DownlinkFrameItem {
			txInfo := loraTxInfo()
			txInfo.GetLoraModulationInfo().SpreadingFactor = 13
			return &gwpb.DownlinkFrameItem{TxInfo: txInfo}
		}, ErrInvalidSpreadingFactor},
		{"sf overflowing a byte", func() *gwpb.DownlinkFrameItem {
			txInfo := loraTxInfo()
			txInfo.GetLoraModulationInfo().SpreadingFactor = 263
			return &gwpb.DownlinkFrameItem{TxInfo: txInfo}
		}, ErrInvalidSpreadingFactor},
	}

	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := tr.DownlinkFromProto(uuid.New(), tt.item())
			require.Nil(t, tx)
			require.ErrorIs(t, err, tt.err)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestDownlinkID(t *testing.T) {
	id := uuid.New()
	require.Equal(t, id, DownlinkID(&gwpb.DownlinkFrame{DownlinkId: id[:]}))

	other := DownlinkID(&gwpb.DownlinkFrame{DownlinkId: []byte{1, 2}})
	require.NotEqual(t, uuid.Nil, other)
}

func TestDownlinkItemsLegacy(t *testing.T) {
	frame := &gwpb.DownlinkFrame{
		PhyPayload: []byte{1, 2, 3},
		TxInfo:     loraTxInfo(),
	}
	items := DownlinkItems(frame)
	require.Len(t, items, 1)
	require.Equal(t, []byte{1, 2, 3}, items[0].PhyPayload)

	require.Empty(t, DownlinkItems(&gwpb.DownlinkFrame{}))
}

func TestHandleDownlink(t *testing.T) {
	tr := newTestTranslator(&fakeClock{ts: ts, epoch: epoch}, nil)
	id := uuid.New()

	bad := loraTxInfo()
	bad.Context = nil
	frame := &gwpb.DownlinkFrame{
		DownlinkId: id[:],
		Token:      1234,
		GatewayId:  gatewayID[:],
		Items: []*gwpb.DownlinkFrameItem{
			{TxInfo: bad},
			{PhyPayload: []byte{1}, TxInfo: loraTxInfo()},
			{PhyPayload: []byte{2}, TxInfo: loraTxInfo()},
			{PhyPayload: []byte{3}, TxInfo: loraTxInfo()},
		},
	}

	s := &fakeScheduler{rejectFirst: true}
	tx, ack := tr.HandleDownlink(frame, s)
	require.NotNil(t, tx)
	require.Equal(t, id, tx.UUID())
	require.Equal(t, byte(2), tx.Packet().Payload[0])
	require.Len(t, s.queued, 1)

	require.Equal(t, id[:], ack.DownlinkId)
	require.Equal(t, uint32(1234), ack.Token)
	require.Equal(t, gatewayID[:], ack.GatewayId)
	require.Empty(t, ack.Error)
	require.Len(t, ack.Items, 4)
	require.Equal(t, gwpb.TxAckStatus_INTERNAL_ERROR, ack.Items[0].Status)
	require.Equal(t, gwpb.TxAckStatus_TOO_LATE, ack.Items[1].Status)
	require.Equal(t, gwpb.TxAckStatus_OK, ack.Items[2].Status)
	require.Equal(t, gwpb.TxAckStatus_IGNORED, ack.Items[3].Status)
}

func TestHandleDownlinkRejected(t *testing.T) {
	tr := newTestTranslator(&fakeClock{err: timebase.ErrTimeUnavailable}, nil)

	gps := loraTxInfo()
	gps.TimingInfo = &gwpb.DownlinkTXInfo_GpsEpochTimingInfo{
		GpsEpochTimingInfo: &gwpb.GPSEpochTimingInfo{
			TimeSinceGpsEpoch: ptypes.DurationProto(time.Hour),
		},
	}
	tx, ack := tr.HandleDownlink(&gwpb.DownlinkFrame{Items: []*gwpb.DownlinkFrameItem{{TxInfo: gps}}}, &fakeScheduler{})
	require.Nil(t, tx)
	require.NotEmpty(t, ack.Error)
	require.Equal(t, gwpb.TxAckStatus_GPS_UNLOCKED, ack.Items[0].Status)

	tx, ack = tr.HandleDownlink(&gwpb.DownlinkFrame{}, &fakeScheduler{})
	require.Nil(t, tx)
	require.Equal(t, ErrNoDownlinkItem.Error(), ack.Error)
	require.Empty(t, ack.Items)
}

func TestAckStatus(t *testing.T) {
	require.Equal(t, gwpb.TxAckStatus_OK, AckStatus(nil))
	require.Equal(t, gwpb.TxAckStatus_TOO_EARLY, AckStatus(ErrTooEarly))
	require.Equal(t, gwpb.TxAckStatus_QUEUE_FULL, AckStatus(fmt.Errorf("enqueue: %w", ErrQueueFull)))
	require.Equal(t, gwpb.TxAckStatus_INTERNAL_ERROR, AckStatus(ErrPayloadTooLarge))
}

func TestTxPacketSetters(t *testing.T) {
	tx := NewTxPacket(uuid.New(), concentrator.TxPacket{}, fakeToA{})
	tx.SetTxMode(concentrator.TxModeOnGPS)
	tx.SetCountUS(42)
	require.Equal(t, concentrator.TxModeOnGPS, tx.TxMode())
	require.Equal(t, uint32(42), tx.CountUS())
	require.Equal(t, uint32(42), tx.Packet().CountUS)

	_, err := tx.TimeOnAir()
	require.Error(t, err)
}
