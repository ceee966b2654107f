package mpegts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildPATPacket builds a single TS packet on PID 0 carrying a minimal PAT
// section mapping program 1 to PMT PID pmtPID.
func buildPATPacket(pmtPID uint16) []byte {
	section := []byte{
		0x00,       // table_id
		0xB0, 0x00, // section_syntax_indicator(1) + section_length placeholder
		0x00, 0x01, // transport_stream_id
		0xC1,       // version/current_next
		0x00, 0x00, // section_number, last_section_number
		0x00, 0x01, // program_number = 1
	}
	section = append(section, byte(pmtPID>>8)&0x1F|0xE0, byte(pmtPID))
	sectionLength := len(section) - 3 + 4 // remaining bytes + CRC
	section[1] = 0xB0 | byte(sectionLength>>8)
	section[2] = byte(sectionLength)
	crc := crc32MPEG(section)
	section = append(section, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	payload := append([]byte{0x00}, section...) // pointer_field = 0
	return wrapInPacket(0x0000, payload, true)
}

func wrapInPacket(pid uint16, payload []byte, payloadStart bool) []byte {
	pkt := make([]byte, PacketSize)
	pkt[0] = SyncByte
	pkt[1] = byte(pid >> 8 & 0x1F)
	if payloadStart {
		pkt[1] |= 0x40
	}
	pkt[2] = byte(pid)
	pkt[3] = 0x10 // payload present, no adaptation field
	n := copy(pkt[4:], payload)
	for i := 4 + n; i < PacketSize; i++ {
		pkt[i] = 0xFF
	}
	return pkt
}

func TestScanner_DiscoversPAT(t *testing.T) {
	raw := buildPATPacket(0x1234)
	sc := NewScanner(bytes.NewReader(raw))

	require.True(t, sc.Scan())
	require.Equal(t, uint16(0), sc.Packet().Header.PID)

	sections := sc.PSI()
	require.Len(t, sections, 1)
	require.NotNil(t, sections[0].PAT)
	require.Equal(t, uint16(0x1234), sections[0].PAT.Programs[0].ProgramMapID)

	require.False(t, sc.Scan())
	require.NoError(t, sc.Err())
}

func TestScanner_SkipsCorruptPackets(t *testing.T) {
	good := wrapInPacket(0x100, []byte{0x01, 0x02, 0x03}, true)
	var buf bytes.Buffer
	buf.WriteByte(0xAA) // one stray byte, not a valid packet start
	buf.Write(good)

	sc := NewScanner(&buf)
	require.False(t, sc.Scan()) // ReadFull reads 188 bytes starting misaligned
}
