package echonet

import "errors"

// Header markers
const (
	EHD1 byte = 0x10
	EHD2 byte = 0x81 // format 1 (specified message format)
)

// Service codes
const (
	ESVSetI   byte = 0x60
	ESVSetC   byte = 0x61
	ESVGet    byte = 0x62
	ESVInfReq byte = 0x63
	ESVSetGet byte = 0x6E
	ESVGetRes byte = 0x72
	ESVInf    byte = 0x73
)

// Property codes of the low-voltage smart electric energy meter class
const (
	EPCTotalPower   byte = 0xE0
	EPCCurrentPower byte = 0xE7
)

// HeaderLength covers EHD1..OPC. Anything shorter cannot be a frame.
const HeaderLength = 12

// DefaultTID is the transaction id used for every request we send.
const DefaultTID uint16 = 0x0001

// ObjectID is a class group / class / instance triplet (EOJ).
type ObjectID [3]byte

var (
	// Home controller, the object we speak as.
	ControllerObject = ObjectID{0x05, 0xFF, 0x01}
	// Low-voltage smart electric energy meter, instance 1.
	SmartMeterObject = ObjectID{0x02, 0x88, 0x01}
)

type Property struct {
	EPC byte
	EDT []byte
}

// Frame is one ECHONET Lite message.
type Frame struct {
	TID        uint16
	SEOJ       ObjectID
	DEOJ       ObjectID
	ESV        byte
	Properties []Property

	// Raw payload as received, empty for frames built locally.
	Raw []byte
}

// UDP receipt event emitted by the radio module.
const InboundDatagramEvent = "ERXUDP"

var (
	ErrNotADataEvent = errors.New("line is not an inbound datagram event")
	ErrTruncated     = errors.New("echonet frame truncated")
	ErrMalformed     = errors.New("echonet frame malformed")
)
