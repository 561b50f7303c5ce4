package gw

import (
	"fmt"

	"github.com/brocaar/chirpstack-api/go/v3/common"
	gwpb "github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/brocaar/lorawan"
	"github.com/go-kit/kit/log/level"
	"github.com/golang/protobuf/ptypes"
	"github.com/google/uuid"

	"github.com/akhenakh/concentratord/concentrator"
	"github.com/akhenakh/concentratord/metrics"
)

// UplinkToProto converts a received packet into an UplinkFrame.
// When no time reference is available the time fields are left empty.
func (t *Translator) UplinkToProto(gatewayID lorawan.EUI64, p *concentrator.RxPacket) (*gwpb.UplinkFrame, error) {
	txInfo, err := uplinkTxInfo(p)
	if err != nil {
		metrics.UplinkErrorCounter.WithLabelValues(reason(err)).Inc()
		return nil, err
	}

	uplinkID := uuid.New()

	rxInfo := &gwpb.UplinkRXInfo{
		GatewayId: gatewayID[:],
		UplinkId:  uplinkID[:],
		Context:   concentrator.CounterBytes(p.CountUS),
		Rssi:      int32(p.RSSI),
		LoraSnr:   float64(p.SNR),
		Channel:   uint32(p.IFChain),
		RfChain:   uint32(p.RFChain),
		Board:     0,
		Antenna:   0,
		CrcStatus: crcStatus(p.Status),
	}

	if ts, err := t.clock.CounterToTimestamp(p.CountUS); err != nil {
		metrics.TimeUnavailableCounter.WithLabelValues(metrics.FieldTime).Inc()
		level.Debug(t.logger).Log("msg", "timestamp calculation failed", "uplink_id", uplinkID, "error", err)
	} else if rxInfo.Time, err = ptypes.TimestampProto(ts); err != nil {
		level.Warn(t.logger).Log("msg", "invalid timestamp", "uplink_id", uplinkID, "error", err)
	}

	if d, err := t.clock.CounterToGPSEpochDuration(p.CountUS); err != nil {
		metrics.TimeUnavailableCounter.WithLabelValues(metrics.FieldGPSEpoch).Inc()
		level.Debug(t.logger).Log("msg", "time since gps epoch calculation failed", "uplink_id", uplinkID, "error", err)
	} else {
		rxInfo.TimeSinceGpsEpoch = ptypes.DurationProto(d)
	}

	if loc, ok := t.locator.CurrentFix(); ok {
		rxInfo.Location = &common.Location{
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Altitude:  loc.Altitude,
			Source:    common.LocationSource_GPS,
		}
	}

	metrics.UplinkCounter.Inc()

	return &gwpb.UplinkFrame{
		PhyPayload: p.Bytes(),
		TxInfo:     txInfo,
		RxInfo:     rxInfo,
	}, nil
}

func uplinkTxInfo(p *concentrator.RxPacket) (*gwpb.UplinkTXInfo, error) {
	txInfo := &gwpb.UplinkTXInfo{
		Frequency: p.Frequency,
	}

	switch p.Modulation {
	case concentrator.ModulationLoRa:
		sf, ok := p.DataRate.(concentrator.SpreadingFactor)
		if !ok || !sf.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSpreadingFactor, p.DataRate)
		}
		txInfo.Modulation = common.Modulation_LORA
		txInfo.ModulationInfo = &gwpb.UplinkTXInfo_LoraModulationInfo{
			LoraModulationInfo: &gwpb.LoRaModulationInfo{
				Bandwidth:       p.Bandwidth / 1000,
				SpreadingFactor: uint32(sf),
				CodeRate:        p.CodeRate.String(),
			},
		}
	case concentrator.ModulationFSK:
		dr, ok := p.DataRate.(concentrator.FSKDataRate)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataRate, p.DataRate)
		}
		txInfo.Modulation = common.Modulation_FSK
		txInfo.ModulationInfo = &gwpb.UplinkTXInfo_FskModulationInfo{
			FskModulationInfo: &gwpb.FSKModulationInfo{
				Datarate: uint32(dr) * 1000,
			},
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedModulation, p.Modulation)
	}

	return txInfo, nil
}

func crcStatus(s concentrator.CRCStatus) gwpb.CRCStatus {
	switch s {
	case concentrator.CRCOk:
		return gwpb.CRCStatus_CRC_OK
	case concentrator.CRCBad:
		return gwpb.CRCStatus_BAD_CRC
	default:
		return gwpb.CRCStatus_NO_CRC
	}
}
