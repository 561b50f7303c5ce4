package concentrator

// PayloadSize is the size of the concentrator TX/RX payload buffer.
const PayloadSize = 256

type Modulation uint8

const (
	ModulationUndefined Modulation = iota
	ModulationLoRa
	ModulationFSK
)

func (m Modulation) String() string {
	switch m {
	case ModulationLoRa:
		return "LORA"
	case ModulationFSK:
		return "FSK"
	default:
		return "UNDEFINED"
	}
}

// DataRate is either a SpreadingFactor (LoRa) or an FSKDataRate.
type DataRate interface {
	isDataRate()
}

// SpreadingFactor is the LoRa spreading factor, only 7 to 12 are valid.
type SpreadingFactor uint8

func (SpreadingFactor) isDataRate() {}

func (sf SpreadingFactor) Valid() bool {
	return sf >= 7 && sf <= 12
}

// FSKDataRate is the FSK data rate in kbit/s as handled by the concentrator.
type FSKDataRate uint32

func (FSKDataRate) isDataRate() {}

type CodeRate uint8

const (
	CodeRateUndefined CodeRate = iota
	CodeRate4_5
	CodeRate4_6
	CodeRate4_7
	CodeRate4_8
)

// String returns the LoRa ECC identifier, empty when undefined.
func (cr CodeRate) String() string {
	switch cr {
	case CodeRate4_5:
		return "4/5"
	case CodeRate4_6:
		return "4/6"
	case CodeRate4_7:
		return "4/7"
	case CodeRate4_8:
		return "4/8"
	default:
		return ""
	}
}

// ParseCodeRate maps a LoRa ECC identifier, unknown values are CodeRateUndefined.
func ParseCodeRate(s string) CodeRate {
	switch s {
	case "4/5":
		return CodeRate4_5
	case "4/6":
		return CodeRate4_6
	case "4/7":
		return CodeRate4_7
	case "4/8":
		return CodeRate4_8
	default:
		return CodeRateUndefined
	}
}

type CRCStatus uint8

const (
	CRCUndefined CRCStatus = iota
	CRCNone
	CRCBad
	CRCOk
)

type TxMode uint8

const (
	TxModeImmediate TxMode = iota
	TxModeTimestamped
	TxModeOnGPS
)

func (m TxMode) String() string {
	switch m {
	case TxModeTimestamped:
		return "TIMESTAMPED"
	case TxModeOnGPS:
		return "ON_GPS"
	default:
		return "IMMEDIATE"
	}
}

// RxPacket is a packet as received by the concentrator.
type RxPacket struct {
	Frequency  uint32     // central frequency of the IF chain (in Hz)
	IFChain    uint8      // by which IF chain was packet received
	RFChain    uint8      // by which RF chain was packet received
	Status     CRCStatus  // CRC status of the received packet
	CountUS    uint32     // internal concentrator counter for timestamping, 1 microsecond resolution
	Modulation Modulation // modulation used by the packet
	Bandwidth  uint32     // modulation bandwidth in Hz (LoRa only)
	DataRate   DataRate   // RX datarate of the packet
	CodeRate   CodeRate   // error-correcting code of the packet (LoRa only)
	RSSI       float32    // average packet RSSI in dB
	SNR        float32    // average packet SNR, in dB (LoRa only)
	SNRMin     float32    // minimum packet SNR, in dB (LoRa only)
	SNRMax     float32    // maximum packet SNR, in dB (LoRa only)
	CRC        uint16     // CRC that was received in the payload
	Size       uint16     // payload size in bytes
	Payload    [PayloadSize]byte
}

// Bytes returns the received payload.
func (p *RxPacket) Bytes() []byte {
	n := int(p.Size)
	if n > PayloadSize {
		n = PayloadSize
	}
	b := make([]byte, n)
	copy(b, p.Payload[:n])
	return b
}

// TxPacket is a packet handed to the concentrator for transmission.
type TxPacket struct {
	Frequency          uint32 // center frequency of TX in Hz
	TxMode             TxMode
	CountUS            uint32 // counter value at which to emit when TxMode is TxModeTimestamped
	RFChain            uint8
	RFPower            int8 // TX power in dBm
	Modulation         Modulation
	Bandwidth          uint32 // in Hz (LoRa only)
	DataRate           DataRate
	CodeRate           CodeRate
	InvertPolarization bool
	FrequencyDeviation uint8 // in kHz (FSK only)
	Preamble           uint16
	NoCRC              bool
	NoHeader           bool
	Size               uint16
	Payload            [PayloadSize]byte
}
