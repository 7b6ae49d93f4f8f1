package echonet

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// BuildCurrentPowerRequest returns the Get request for the instantaneous power property.
func BuildCurrentPowerRequest() []byte {
	req := Frame{
		TID:        DefaultTID,
		SEOJ:       ControllerObject,
		DEOJ:       SmartMeterObject,
		ESV:        ESVGet,
		Properties: []Property{{EPC: EPCCurrentPower}},
	}
	return req.Encode()
}

func (f Frame) Encode() []byte {
	b := []byte{EHD1, EHD2}
	b = binary.BigEndian.AppendUint16(b, f.TID)
	b = append(b, f.SEOJ[:]...)
	b = append(b, f.DEOJ[:]...)
	b = append(b, f.ESV, byte(len(f.Properties)))
	for _, p := range f.Properties {
		b = append(b, p.EPC, byte(len(p.EDT)))
		b = append(b, p.EDT...)
	}
	return b
}

// ParseResponse extracts the frame carried by an ERXUDP event line.
// The hex payload is the last whitespace separated field of the line.
func ParseResponse(line string) (Frame, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != InboundDatagramEvent {
		return Frame{}, ErrNotADataEvent
	}

	payload, err := hex.DecodeString(fields[len(fields)-1])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ParseFrame(payload)
}

// ParseFrame decodes raw ECHONET Lite bytes.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < HeaderLength {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	if data[0] != EHD1 || data[1] != EHD2 {
		return Frame{}, fmt.Errorf("%w: header %02x%02x", ErrMalformed, data[0], data[1])
	}

	frame := Frame{
		TID:  binary.BigEndian.Uint16(data[2:4]),
		SEOJ: ObjectID(data[4:7]),
		DEOJ: ObjectID(data[7:10]),
		ESV:  data[10],
		Raw:  data,
	}

	opc := int(data[11])
	props := data[HeaderLength:]
	for i := 0; i < opc; i++ {
		if len(props) < 2 {
			return Frame{}, fmt.Errorf("%w: property %d header missing", ErrTruncated, i)
		}
		pdc := int(props[1])
		if len(props) < 2+pdc {
			return Frame{}, fmt.Errorf("%w: property %d wants %d bytes", ErrTruncated, i, pdc)
		}
		frame.Properties = append(frame.Properties, Property{
			EPC: props[0],
			EDT: props[2 : 2+pdc],
		})
		props = props[2+pdc:]
	}

	return frame, nil
}

// IsValidCurrentPowerResponse reports whether the frame answers our current power request.
// A mismatch is not an error, the caller may keep looking at later lines.
func IsValidCurrentPowerResponse(f Frame) bool {
	if f.SEOJ != SmartMeterObject || f.ESV != ESVGetRes {
		return false
	}
	if len(f.Properties) != 1 {
		return false
	}
	p := f.Properties[0]
	return p.EPC == EPCCurrentPower && len(p.EDT) == 4
}

// CurrentPower decodes the watt value from the last 4 payload bytes.
// Negative values mean power is being exported.
func (f Frame) CurrentPower() int32 {
	data := f.Raw
	if len(data) == 0 {
		data = f.Encode()
	}
	if len(data) < 4 {
		return 0
	}
	return int32(binary.BigEndian.Uint32(data[len(data)-4:]))
}
