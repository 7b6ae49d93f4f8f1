package echonet

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func currentPowerResponse(watt int32) Frame {
	edt := binary.BigEndian.AppendUint32(nil, uint32(watt))
	return Frame{
		TID:        DefaultTID,
		SEOJ:       SmartMeterObject,
		DEOJ:       ControllerObject,
		ESV:        ESVGetRes,
		Properties: []Property{{EPC: EPCCurrentPower, EDT: edt}},
	}
}

func eventLine(payload []byte) string {
	return "ERXUDP FE80:0000:0000:0000:021D:1290:1234:5678 FE80:0000:0000:0000:021D:1290:0003:C890 0E1A 0E1A 001D129012345678 1 0012 " +
		strings.ToUpper(hex.EncodeToString(payload))
}

func TestBuildCurrentPowerRequest(t *testing.T) {
	want := []byte{
		0x10, 0x81,
		0x00, 0x01,
		0x05, 0xFF, 0x01,
		0x02, 0x88, 0x01,
		0x62,
		0x01,
		0xE7,
		0x00,
	}
	assert.Equal(t, want, BuildCurrentPowerRequest())
	assert.Equal(t, BuildCurrentPowerRequest(), BuildCurrentPowerRequest())
}

func TestParseResponseCurrentPower(t *testing.T) {
	for _, watt := range []int32{0, 1, 735, 4000, -1, -250, math.MaxInt32, math.MinInt32} {
		frame, err := ParseResponse(eventLine(currentPowerResponse(watt).Encode()))
		require.NoError(t, err)
		assert.True(t, IsValidCurrentPowerResponse(frame))
		assert.Equal(t, watt, frame.CurrentPower(), "watt %d", watt)
	}
}

func TestParseResponseErrors(t *testing.T) {
	valid := currentPowerResponse(100).Encode()

	tests := []struct {
		name string
		line string
		want error
	}{
		{"ok terminator", "OK", ErrNotADataEvent},
		{"other event", "EVENT 21 FE80:0000:0000:0000:021D:1290:1234:5678 00", ErrNotADataEvent},
		{"bare event", "ERXUDP", ErrNotADataEvent},
		{"bad hex", "ERXUDP FE80::1 0E1A 10818ZZ", ErrMalformed},
		{"odd hex", "ERXUDP FE80::1 0E1A 108", ErrMalformed},
		{"short header", eventLine(valid[:HeaderLength-1]), ErrTruncated},
		{"property cut", eventLine(valid[:len(valid)-1]), ErrTruncated},
		{"wrong marker", eventLine(append([]byte{0x10, 0x82}, valid[2:]...)), ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.line)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIsValidCurrentPowerResponseRejectsMismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *Frame)
	}{
		{"source class group", func(f *Frame) { f.SEOJ[0] = 0x05 }},
		{"source class", func(f *Frame) { f.SEOJ[1] = 0x87 }},
		{"source instance", func(f *Frame) { f.SEOJ[2] = 0x02 }},
		{"service get", func(f *Frame) { f.ESV = ESVGet }},
		{"service notification", func(f *Frame) { f.ESV = ESVInf }},
		{"property total power", func(f *Frame) { f.Properties[0].EPC = EPCTotalPower }},
		{"value width", func(f *Frame) { f.Properties[0].EDT = []byte{0x00, 0x10} }},
		{"two properties", func(f *Frame) {
			f.Properties = append(f.Properties, Property{EPC: 0xE8, EDT: []byte{0, 1, 0, 1}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := currentPowerResponse(735)
			tt.mutate(&f)

			parsed, err := ParseResponse(eventLine(f.Encode()))
			require.NoError(t, err)
			assert.False(t, IsValidCurrentPowerResponse(parsed))
		})
	}
}

func TestParseFrameFields(t *testing.T) {
	raw, err := hex.DecodeString("1081000102880105FF017201E704000002DF")
	require.NoError(t, err)

	frame, err := ParseFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), frame.TID)
	assert.Equal(t, SmartMeterObject, frame.SEOJ)
	assert.Equal(t, ControllerObject, frame.DEOJ)
	assert.Equal(t, ESVGetRes, frame.ESV)
	require.Len(t, frame.Properties, 1)
	assert.Equal(t, EPCCurrentPower, frame.Properties[0].EPC)
	assert.Equal(t, int32(735), frame.CurrentPower())
}
