package mpegts

import (
	"errors"
	"io"
)

// Scanner reads MPEG-TS packets one at a time from a byte stream, exposing
// PID/PCR classification for every packet plus incidental PAT/PMT discovery
// for diagnostic tooling. Unlike a full demultiplexer it does not reassemble
// PES data: the pacing engine only needs per-packet metadata.
type Scanner struct {
	reader     io.Reader
	readBuf    []byte
	pool       *packetPool
	programMap *programMap
	psiBuffer  []*DemuxerData
	pkt        *Packet
	err        error
}

// NewScanner creates a Scanner reading 188-byte packets from r.
func NewScanner(r io.Reader) *Scanner {
	pm := newProgramMap()
	return &Scanner{
		reader:     r,
		readBuf:    make([]byte, PacketSize),
		pool:       newPacketPool(pm),
		programMap: pm,
	}
}

// Scan reads the next packet, returning false at EOF or on a fatal read
// error. Corrupt packets (bad sync byte) are skipped transparently.
func (s *Scanner) Scan() bool {
	for {
		_, err := io.ReadFull(s.reader, s.readBuf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return false
		}

		pkt, err := parsePacket(s.readBuf)
		if err != nil {
			continue // skip corrupt packets, keep scanning
		}

		s.pkt = pkt
		s.observePSI(pkt)
		return true
	}
}

// Packet returns the packet decoded by the most recent successful Scan call.
func (s *Scanner) Packet() *Packet {
	return s.pkt
}

// Err returns the first non-EOF error encountered by Scan, if any.
func (s *Scanner) Err() error {
	return s.err
}

// PSI drains any PAT/PMT sections completed by packets observed so far,
// updating the internal PMT-PID map as PATs are seen.
func (s *Scanner) PSI() []*DemuxerData {
	drained := s.psiBuffer
	s.psiBuffer = nil
	return drained
}

func (s *Scanner) observePSI(pkt *Packet) {
	if !pkt.Header.HasPayload {
		return
	}
	if !isPSIPayload(pkt.Header.PID, s.programMap) {
		return
	}

	flushed := s.pool.add(pkt)
	if flushed == nil {
		return
	}

	var payload []byte
	for _, p := range flushed {
		payload = append(payload, p.Payload...)
	}
	results, err := parsePSI(payload, pkt.Header.PID, flushed[0], s.programMap)
	if err != nil {
		return
	}
	for _, r := range results {
		if r.PAT != nil {
			for _, prog := range r.PAT.Programs {
				s.programMap.addPMTPID(prog.ProgramMapID)
			}
		}
	}
	s.psiBuffer = append(s.psiBuffer, results...)
}
