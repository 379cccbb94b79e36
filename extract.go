package usbraw

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"
)

// Matcher selects the records whose payload ends up in the output. The
// zero values of Device and Endpoint match any address; FromDevice false
// keeps host-originated transfers.
type Matcher struct {
	Transfer   TransferType
	FromDevice bool
	Device     uint16
	Endpoint   uint8
}

func (m Matcher) Match(h Header) bool {
	if h.Transfer != m.Transfer {
		return false
	}
	if h.FromHost() == m.FromDevice {
		return false
	}
	if m.Device != 0 && h.Device != m.Device {
		return false
	}
	if m.Endpoint != 0 && h.EndpointNumber() != m.Endpoint&0x7f {
		return false
	}
	return true
}

// Stats counts what a single extraction pass saw and wrote.
type Stats struct {
	Packets int64
	Matched int64
	Bytes   int64
}

// Extract runs one pass over src, appending the payload of every matching
// record to w in the order records arrive. Records that do not carry a
// USBPcap header, including every record when linkType is not USBPcap,
// are skipped without error. Any read or write error aborts the pass.
// The loop stops cleanly between records when ctx is canceled.
func Extract(ctx context.Context, src gopacket.PacketDataSource, linkType layers.LinkType, w io.Writer, m Matcher) (Stats, error) {
	usb := linkType == LinkTypeUSBPcap

	var stats Stats
	for {
		select {
		case <-ctx.Done():
			log.Warn("extraction canceled")
			return stats, nil
		default:
		}

		data, _, err := src.ReadPacketData()
		if err == io.EOF {
			return stats, nil
		} else if err != nil {
			return stats, fmt.Errorf("failed to read packet: %w", err)
		}
		stats.Packets++

		if !usb {
			continue
		}
		hdr, ok := DecodeHeader(data)
		if !ok {
			continue
		}
		if !m.Match(hdr) {
			continue
		}

		payload := Payload(hdr, data)
		if _, err := w.Write(payload); err != nil {
			return stats, fmt.Errorf("failed to write payload: %w", err)
		}
		stats.Matched++
		stats.Bytes += int64(len(payload))
		log.Debugf("packet %d: wrote %d bytes", stats.Packets, len(payload))
	}
}

// Run extracts from the capture at inputPath into a new file at outputPath.
// The output is created only after the capture opens, so a bad input path
// leaves no output behind. On a mid-run error the partial output stays on
// disk as written so far.
func Run(ctx context.Context, inputPath, outputPath string, m Matcher) (Stats, error) {
	capture, err := OpenCapture(inputPath)
	if err != nil {
		return Stats{}, err
	}
	defer capture.Close()

	if lt := capture.LinkType(); lt != LinkTypeUSBPcap {
		log.Warnf("capture link type is %v, not USBPcap; no records will match", lt)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to create output %s: %w", outputPath, err)
	}

	bw := bufio.NewWriter(out)
	stats, err := Extract(ctx, capture, capture.LinkType(), bw, m)
	if ferr := bw.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("failed to write output %s: %w", outputPath, ferr)
	}
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output %s: %w", outputPath, cerr)
	}
	return stats, err
}
