// Package mpegts implements the transport-stream parsing needed to drive a
// paced TS writer: packet-header decoding with PCR extraction, and PAT/PMT
// discovery for diagnostic tooling. It does not reassemble elementary
// streams -- the pacing engine forwards raw 188-byte packets and only needs
// per-packet PID/PCR classification.
package mpegts

// Packet is a parsed 188-byte MPEG-TS transport stream packet.
type Packet struct {
	Header  PacketHeader
	Payload []byte
}

// PacketHeader contains the parsed header fields of a transport stream packet.
type PacketHeader struct {
	PID                       uint16
	ContinuityCounter         uint8
	HasAdaptationField        bool
	HasPayload                bool
	PayloadUnitStartIndicator bool
	TransportErrorIndicator   bool
	DiscontinuityIndicator    bool
	HasPCR                    bool
	PCR                       uint64 // 27 MHz ticks
}

// DemuxerData is the output of the PSI scanner for each logical unit
// (PAT or PMT). Exactly one of PAT or PMT will be non-nil.
type DemuxerData struct {
	FirstPacket *Packet
	PAT         *PATData
	PMT         *PMTData
}

// PATData contains the parsed Program Association Table.
type PATData struct {
	Programs []*PATProgram
}

// PATProgram maps a program number to its PMT PID.
type PATProgram struct {
	ProgramMapID  uint16
	ProgramNumber uint16
}

// PMTData contains the parsed Program Map Table.
type PMTData struct {
	PCRPID            uint16
	ElementaryStreams []*PMTElementaryStream
}

// PMTElementaryStream describes a single elementary stream in a PMT.
type PMTElementaryStream struct {
	ElementaryPID uint16
	StreamType    uint8
}

// PacketsParser is the signature of a callback over the accumulated
// packets of one PID, returning parsed data and whether standard PSI
// parsing should be skipped. Scanner does not accept or invoke one.
type PacketsParser func(ps []*Packet) (ds []*DemuxerData, skip bool, err error)
