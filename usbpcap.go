package usbraw

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/gopacket/layers"
)

// LinkTypeUSBPcap is the link type of captures produced by USBPcap
// (LINKTYPE_USBPCAP, 249). gopacket has no named constant for it.
const LinkTypeUSBPcap = layers.LinkType(249)

// headerSize is the size of the fixed USBPCAP_BUFFER_PACKET_HEADER. The
// HeaderLen field may be larger when a transfer-specific header follows.
const headerSize = 27

// TransferType is the USB transfer category byte from the USBPcap header.
// Values match what Wireshark shows as usb.transfer_type.
type TransferType uint8

const (
	TransferIsochronous TransferType = 0x00
	TransferInterrupt   TransferType = 0x01
	TransferControl     TransferType = 0x02
	TransferBulk        TransferType = 0x03
)

func (t TransferType) String() string {
	switch t {
	case TransferIsochronous:
		return "isochronous"
	case TransferInterrupt:
		return "interrupt"
	case TransferControl:
		return "control"
	case TransferBulk:
		return "bulk"
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(t))
}

// ParseTransferType maps a CLI token to a TransferType. It accepts the
// symbolic names, short forms, and the raw "0x00" style tokens.
func ParseTransferType(s string) (TransferType, error) {
	switch strings.ToLower(s) {
	case "iso", "isochronous", "0x00":
		return TransferIsochronous, nil
	case "int", "interrupt", "0x01":
		return TransferInterrupt, nil
	case "ctrl", "control", "0x02":
		return TransferControl, nil
	case "bulk", "0x03":
		return TransferBulk, nil
	}
	return 0, fmt.Errorf("unknown transfer type %q", s)
}

// infoPDOToFDO is set in the Info field when the transfer travels from the
// device towards the host.
const infoPDOToFDO = 0x01

// Header is the decoded USBPCAP_BUFFER_PACKET_HEADER. All multi-byte
// fields are little-endian on the wire.
type Header struct {
	HeaderLen  uint16
	IRPID      uint64
	Status     uint32
	Function   uint16
	Info       uint8
	Bus        uint16
	Device     uint16
	Endpoint   uint8
	Transfer   TransferType
	DataLength uint32
}

// FromHost reports whether the host originated the transfer. This is what
// Wireshark renders as usb.src == "host".
func (h Header) FromHost() bool {
	return h.Info&infoPDOToFDO == 0
}

// EndpointNumber returns the endpoint without its direction bit.
func (h Header) EndpointNumber() uint8 {
	return h.Endpoint & 0x7f
}

// DecodeHeader decodes the USBPcap header at the start of a raw frame. It
// returns false when the frame is too short to carry one; callers treat
// such records as non-USB and skip them.
func DecodeHeader(data []byte) (Header, bool) {
	if len(data) < headerSize {
		return Header{}, false
	}
	h := Header{
		HeaderLen:  binary.LittleEndian.Uint16(data[0:2]),
		IRPID:      binary.LittleEndian.Uint64(data[2:10]),
		Status:     binary.LittleEndian.Uint32(data[10:14]),
		Function:   binary.LittleEndian.Uint16(data[14:16]),
		Info:       data[16],
		Bus:        binary.LittleEndian.Uint16(data[17:19]),
		Device:     binary.LittleEndian.Uint16(data[19:21]),
		Endpoint:   data[21],
		Transfer:   TransferType(data[22]),
		DataLength: binary.LittleEndian.Uint32(data[23:27]),
	}
	return h, true
}

// Payload returns the frame bytes past the capture header, frame[HeaderLen:].
// A HeaderLen at or beyond the end of the frame yields an empty payload.
func Payload(h Header, frame []byte) []byte {
	if int(h.HeaderLen) >= len(frame) {
		return nil
	}
	return frame[h.HeaderLen:]
}
