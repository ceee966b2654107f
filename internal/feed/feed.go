// Package feed adapts a raw byte stream (as read off an SRT, TCP, or file
// source) into calls against a tswrite.Writer: it resyncs on the transport
// stream sync byte, extracts each packet's PID and PCR, and forwards
// complete 188-byte packets one at a time.
package feed

import (
	"fmt"

	"github.com/karimdavoodi/tstools/internal/mpegts"
)

// packetSink is the subset of *tswrite.Writer the feeder needs, so tests
// can substitute a recording fake.
type packetSink interface {
	WritePacket(packet []byte, pid uint16, hasPCR bool, pcr uint64) error
}

// Feeder buffers partial reads from an io.Writer-shaped source and
// dispatches whole, sync-aligned TS packets to a Writer.
type Feeder struct {
	dst packetSink
	buf []byte
}

// New creates a Feeder that forwards parsed packets to dst.
func New(dst packetSink) *Feeder {
	return &Feeder{dst: dst}
}

// Write implements io.Writer, so a Feeder can sit directly at the end of
// an ingest pipeline (e.g. as the target of an io.Copy from an SRT or TCP
// connection).
func (f *Feeder) Write(p []byte) (int, error) {
	n := len(p)
	f.buf = append(f.buf, p...)

	for {
		if len(f.buf) == 0 {
			break
		}
		if f.buf[0] != mpegts.SyncByte {
			skip := f.resync()
			if skip < 0 {
				// No sync byte found in the buffered tail; keep enough of
				// it to detect a sync byte spanning the next Write.
				break
			}
			f.buf = f.buf[skip:]
			continue
		}
		if len(f.buf) < mpegts.PacketSize {
			break
		}
		pkt, err := mpegts.ParsePacket(f.buf[:mpegts.PacketSize])
		if err != nil {
			// Malformed packet at an otherwise sync-aligned offset: drop
			// just the sync byte and keep resyncing rather than losing the
			// whole buffered tail.
			f.buf = f.buf[1:]
			continue
		}
		if err := f.dst.WritePacket(f.buf[:mpegts.PacketSize], pkt.Header.PID, pkt.Header.HasPCR, pkt.Header.PCR); err != nil {
			return n, fmt.Errorf("feed: write packet: %w", err)
		}
		f.buf = f.buf[mpegts.PacketSize:]
	}
	return n, nil
}

// resync scans for the next sync byte in the buffered tail, returning its
// offset, or -1 if none is found.
func (f *Feeder) resync() int {
	for i := 1; i < len(f.buf); i++ {
		if f.buf[i] == mpegts.SyncByte {
			return i
		}
	}
	return -1
}
