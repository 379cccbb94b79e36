package usbraw

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// usbFrame builds a raw USBPcap record: a 27-byte header followed by
// payload, with HeaderLen set to headerLen.
func usbFrame(transfer TransferType, fromHost bool, headerLen uint16, payload []byte) []byte {
	frame := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint16(frame[0:2], headerLen)
	binary.LittleEndian.PutUint64(frame[2:10], 0xffff8800deadbeef)
	if !fromHost {
		frame[16] = infoPDOToFDO
	}
	binary.LittleEndian.PutUint16(frame[17:19], 1) // bus
	binary.LittleEndian.PutUint16(frame[19:21], 3) // device
	frame[21] = 0x01
	frame[22] = byte(transfer)
	binary.LittleEndian.PutUint32(frame[23:27], uint32(len(payload)))
	copy(frame[headerSize:], payload)
	return frame
}

func TestDecodeHeaderFields(t *testing.T) {
	frame := usbFrame(TransferIsochronous, true, headerSize, []byte{0xca, 0xfe})

	h, ok := DecodeHeader(frame)
	require.True(t, ok)

	assert.Equal(t, uint16(headerSize), h.HeaderLen)
	assert.Equal(t, uint64(0xffff8800deadbeef), h.IRPID)
	assert.Equal(t, uint16(1), h.Bus)
	assert.Equal(t, uint16(3), h.Device)
	assert.Equal(t, uint8(0x01), h.Endpoint)
	assert.Equal(t, TransferIsochronous, h.Transfer)
	assert.Equal(t, uint32(2), h.DataLength)
	assert.True(t, h.FromHost())
}

func TestDecodeHeaderShortFrame(t *testing.T) {
	_, ok := DecodeHeader(make([]byte, headerSize-1))
	assert.False(t, ok)

	_, ok = DecodeHeader(nil)
	assert.False(t, ok)
}

func TestHeaderDirection(t *testing.T) {
	h, ok := DecodeHeader(usbFrame(TransferIsochronous, false, headerSize, nil))
	require.True(t, ok)
	assert.False(t, h.FromHost())

	h, ok = DecodeHeader(usbFrame(TransferIsochronous, true, headerSize, nil))
	require.True(t, ok)
	assert.True(t, h.FromHost())
}

func TestEndpointNumber(t *testing.T) {
	h := Header{Endpoint: 0x81}
	assert.Equal(t, uint8(1), h.EndpointNumber())

	h = Header{Endpoint: 0x01}
	assert.Equal(t, uint8(1), h.EndpointNumber())
}

func TestPayloadSlicing(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	frame := usbFrame(TransferIsochronous, true, headerSize, payload)

	h, ok := DecodeHeader(frame)
	require.True(t, ok)
	assert.Equal(t, payload, Payload(h, frame))

	// HeaderLen 0 exposes the whole frame, header bytes included.
	h.HeaderLen = 0
	assert.Equal(t, frame, Payload(h, frame))

	// HeaderLen at or past the end yields an empty payload, not an error.
	h.HeaderLen = uint16(len(frame))
	assert.Empty(t, Payload(h, frame))
	h.HeaderLen = uint16(len(frame) + 100)
	assert.Empty(t, Payload(h, frame))
}

func TestTransferTypeString(t *testing.T) {
	assert.Equal(t, "isochronous", TransferIsochronous.String())
	assert.Equal(t, "interrupt", TransferInterrupt.String())
	assert.Equal(t, "control", TransferControl.String())
	assert.Equal(t, "bulk", TransferBulk.String())
	assert.Equal(t, "unknown(0xfe)", TransferType(0xfe).String())
}

func TestParseTransferType(t *testing.T) {
	for _, s := range []string{"iso", "isochronous", "0x00", "ISO"} {
		tt, err := ParseTransferType(s)
		require.NoError(t, err, s)
		assert.Equal(t, TransferIsochronous, tt, s)
	}

	tt, err := ParseTransferType("bulk")
	require.NoError(t, err)
	assert.Equal(t, TransferBulk, tt)

	_, err = ParseTransferType("dma")
	assert.Error(t, err)
}
