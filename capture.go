package usbraw

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Capture file magics, read as little-endian from the first four bytes.
// Classic pcap appears in both byte orders, with or without nanosecond
// timestamps; the pcapng block type is a palindrome.
const (
	magicPcap         = 0xa1b2c3d4
	magicPcapSwapped  = 0xd4c3b2a1
	magicPcapNano     = 0xa1b23c4d
	magicPcapNanoSwap = 0x4d3cb2a1
	magicPcapNg       = 0x0a0d0d0a
)

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Capture is a forward-only, single-pass view over a pcap or pcapng file.
// It owns the underlying file handle until Close.
type Capture struct {
	f *os.File
	r packetReader
}

// OpenCapture opens a capture file, picking the pcap or pcapng reader from
// the file magic.
func OpenCapture(path string) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}

	var r packetReader
	switch binary.LittleEndian.Uint32(magic[:]) {
	case magicPcapNg:
		r, err = pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	case magicPcap, magicPcapSwapped, magicPcapNano, magicPcapNanoSwap:
		r, err = pcapgo.NewReader(f)
	default:
		f.Close()
		return nil, fmt.Errorf("failed to open capture %s: not a pcap or pcapng file", path)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}

	return &Capture{f: f, r: r}, nil
}

// LinkType returns the capture's link type. For pcapng this is the link
// type of the first interface.
func (c *Capture) LinkType() layers.LinkType {
	return c.r.LinkType()
}

// ReadPacketData returns the next record's raw frame bytes. It returns
// io.EOF when the capture is exhausted.
func (c *Capture) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return c.r.ReadPacketData()
}

func (c *Capture) Close() error {
	return c.f.Close()
}
