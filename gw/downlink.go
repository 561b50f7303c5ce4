package gw

import (
	"errors"
	"fmt"

	gwpb "github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/go-kit/kit/log/level"
	"github.com/golang/protobuf/ptypes"
	"github.com/google/uuid"

	"github.com/akhenakh/concentratord/concentrator"
	"github.com/akhenakh/concentratord/metrics"
	"github.com/akhenakh/concentratord/timebase"
)

// ErrNoDownlinkItem is returned for a frame carrying nothing to transmit.
var ErrNoDownlinkItem = fmt.Errorf("%w: no downlink item", ErrMissingField)

// DownlinkFromProto converts a downlink frame item into a TxPacket ready to be scheduled.
func (t *Translator) DownlinkFromProto(id uuid.UUID, item *gwpb.DownlinkFrameItem) (*TxPacket, error) {
	p, err := t.downlinkFromProto(item)
	if err != nil {
		metrics.DownlinkErrorCounter.WithLabelValues(reason(err)).Inc()
		return nil, err
	}
	metrics.DownlinkCounter.Inc()
	return NewTxPacket(id, p, t.toa), nil
}

func (t *Translator) downlinkFromProto(item *gwpb.DownlinkFrameItem) (concentrator.TxPacket, error) {
	var p concentrator.TxPacket

	if item == nil || item.TxInfo == nil {
		return p, fmt.Errorf("%w: tx_info", ErrMissingField)
	}
	if len(item.PhyPayload) > concentrator.PayloadSize {
		return p, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(item.PhyPayload))
	}

	txInfo := item.TxInfo
	p.Frequency = txInfo.Frequency
	p.RFPower = int8(txInfo.Power)
	p.Size = uint16(len(item.PhyPayload))
	copy(p.Payload[:], item.PhyPayload)

	if err := t.setTiming(&p, txInfo); err != nil {
		return p, err
	}
	if err := setModulation(&p, txInfo); err != nil {
		return p, err
	}

	return p, nil
}

func (t *Translator) setTiming(p *concentrator.TxPacket, txInfo *gwpb.DownlinkTXInfo) error {
	switch ti := txInfo.TimingInfo.(type) {
	case *gwpb.DownlinkTXInfo_DelayTimingInfo:
		if len(txInfo.Context) != 4 {
			return fmt.Errorf("%w: got %d bytes", ErrInvalidContext, len(txInfo.Context))
		}
		if ti.DelayTimingInfo == nil || ti.DelayTimingInfo.Delay == nil {
			return fmt.Errorf("%w: delay", ErrMissingField)
		}
		delay, err := ptypes.Duration(ti.DelayTimingInfo.Delay)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTiming, err)
		}
		if delay < 0 {
			return fmt.Errorf("%w: negative delay %s", ErrInvalidTiming, delay)
		}
		var ctx [4]byte
		copy(ctx[:], txInfo.Context)
		p.TxMode = concentrator.TxModeTimestamped
		p.CountUS = concentrator.AddDuration(concentrator.CounterFromBytes(ctx), delay)

	case *gwpb.DownlinkTXInfo_GpsEpochTimingInfo:
		if ti.GpsEpochTimingInfo == nil || ti.GpsEpochTimingInfo.TimeSinceGpsEpoch == nil {
			return fmt.Errorf("%w: time_since_gps_epoch", ErrMissingField)
		}
		d, err := ptypes.Duration(ti.GpsEpochTimingInfo.TimeSinceGpsEpoch)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTiming, err)
		}
		count, err := t.clock.GPSEpochDurationToCounter(d)
		if err != nil {
			return err
		}
		p.TxMode = concentrator.TxModeTimestamped
		p.CountUS = count

	case *gwpb.DownlinkTXInfo_ImmediatelyTimingInfo:
		p.TxMode = concentrator.TxModeImmediate

	case nil:
		if txInfo.Timing != gwpb.DownlinkTiming_IMMEDIATELY {
			return fmt.Errorf("%w: timing_info for %s", ErrMissingField, txInfo.Timing)
		}
		p.TxMode = concentrator.TxModeImmediate

	default:
		return fmt.Errorf("%w: unknown timing %T", ErrInvalidTiming, ti)
	}
	return nil
}

func setModulation(p *concentrator.TxPacket, txInfo *gwpb.DownlinkTXInfo) error {
	switch mi := txInfo.ModulationInfo.(type) {
	case *gwpb.DownlinkTXInfo_LoraModulationInfo:
		if mi.LoraModulationInfo == nil {
			return fmt.Errorf("%w: lora_modulation_info", ErrMissingField)
		}
		info := mi.LoraModulationInfo
		if info.SpreadingFactor < 7 || info.SpreadingFactor > 12 {
			return fmt.Errorf("%w: %d", ErrInvalidSpreadingFactor, info.SpreadingFactor)
		}
		p.Modulation = concentrator.ModulationLoRa
		p.Bandwidth = info.Bandwidth * 1000
		p.DataRate = concentrator.SpreadingFactor(info.SpreadingFactor)
		p.CodeRate = concentrator.ParseCodeRate(info.CodeRate)
		p.InvertPolarization = info.PolarizationInversion

	case *gwpb.DownlinkTXInfo_FskModulationInfo:
		if mi.FskModulationInfo == nil {
			return fmt.Errorf("%w: fsk_modulation_info", ErrMissingField)
		}
		info := mi.FskModulationInfo
		p.Modulation = concentrator.ModulationFSK
		p.DataRate = concentrator.FSKDataRate(info.Datarate / 1000)
		p.FrequencyDeviation = uint8(info.FrequencyDeviation / 1000)

	case nil:
		return fmt.Errorf("%w: modulation_info", ErrMissingField)

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedModulation, mi)
	}
	return nil
}

// DownlinkID returns the frame downlink id, or a new one when the frame
// does not carry a valid UUID.
func DownlinkID(frame *gwpb.DownlinkFrame) uuid.UUID {
	if id, err := uuid.FromBytes(frame.GetDownlinkId()); err == nil {
		return id
	}
	return uuid.New()
}

// DownlinkItems returns the items of a frame, frames from older bridges
// carry a single payload and tx_info instead of items.
func DownlinkItems(frame *gwpb.DownlinkFrame) []*gwpb.DownlinkFrameItem {
	if len(frame.GetItems()) > 0 {
		return frame.Items
	}
	if frame.GetTxInfo() == nil {
		return nil
	}
	return []*gwpb.DownlinkFrameItem{{
		PhyPayload: frame.PhyPayload,
		TxInfo:     frame.TxInfo,
	}}
}

// HandleDownlink tries the frame items in order and enqueues the first one
// that translates and is accepted by the scheduler. The ack reports the
// status of every item, items after the accepted one are ignored.
func (t *Translator) HandleDownlink(frame *gwpb.DownlinkFrame, s Scheduler) (*TxPacket, *gwpb.DownlinkTXAck) {
	id := DownlinkID(frame)
	items := DownlinkItems(frame)

	ack := &gwpb.DownlinkTXAck{
		GatewayId:  frame.GetGatewayId(),
		Token:      frame.GetToken(),
		DownlinkId: id[:],
		Items:      make([]*gwpb.DownlinkTXAckItem, len(items)),
	}
	if len(items) == 0 {
		ack.Error = ErrNoDownlinkItem.Error()
		return nil, ack
	}

	var accepted *TxPacket
	for i, item := range items {
		if accepted != nil {
			ack.Items[i] = &gwpb.DownlinkTXAckItem{Status: gwpb.TxAckStatus_IGNORED}
			continue
		}

		tx, err := t.DownlinkFromProto(id, item)
		if err == nil {
			err = s.Enqueue(tx)
		}
		if err != nil {
			level.Debug(t.logger).Log("msg", "downlink item rejected", "downlink_id", id, "item", i, "error", err)
			ack.Items[i] = &gwpb.DownlinkTXAckItem{Status: AckStatus(err)}
			ack.Error = err.Error()
			continue
		}

		level.Info(t.logger).Log(
			"msg", "downlink enqueued",
			"downlink_id", id,
			"item", i,
			"tx_mode", tx.TxMode(),
			"count_us", tx.CountUS(),
		)
		ack.Items[i] = &gwpb.DownlinkTXAckItem{Status: gwpb.TxAckStatus_OK}
		ack.Error = ""
		accepted = tx
	}
	return accepted, ack
}

// AckStatus maps a translation or scheduling error to an ack status.
func AckStatus(err error) gwpb.TxAckStatus {
	switch {
	case err == nil:
		return gwpb.TxAckStatus_OK
	case errors.Is(err, ErrTooLate):
		return gwpb.TxAckStatus_TOO_LATE
	case errors.Is(err, ErrTooEarly):
		return gwpb.TxAckStatus_TOO_EARLY
	case errors.Is(err, ErrQueueFull):
		return gwpb.TxAckStatus_QUEUE_FULL
	case errors.Is(err, timebase.ErrTimeUnavailable):
		return gwpb.TxAckStatus_GPS_UNLOCKED
	default:
		return gwpb.TxAckStatus_INTERNAL_ERROR
	}
}
