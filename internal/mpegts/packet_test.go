package mpegts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildPacketWithPCR(t *testing.T, pcr uint64) []byte {
	t.Helper()
	pkt := make([]byte, PacketSize)
	pkt[0] = SyncByte
	pkt[1] = 0x00
	pkt[2] = 0x20 // PID 32
	pkt[3] = 0x30 // adaptation field + payload present

	pkt[4] = 7    // adaptation field length
	pkt[5] = 0x10 // PCR_flag

	base := pcr / 300
	ext := pcr % 300
	pkt[6] = byte(base >> 25)
	pkt[7] = byte(base >> 17)
	pkt[8] = byte(base >> 9)
	pkt[9] = byte(base >> 1)
	pkt[10] = byte(base<<7) | 0x7E | byte(ext>>8)
	pkt[11] = byte(ext)
	return pkt
}

func TestParsePacket_DecodesPCR(t *testing.T) {
	const want = uint64(27_000_000) * 5 // 5 seconds of ticks
	raw := buildPacketWithPCR(t, want)

	pkt, err := ParsePacket(raw)
	require.NoError(t, err)
	require.True(t, pkt.Header.HasPCR)
	require.Equal(t, uint16(32), pkt.Header.PID)
	require.Equal(t, want, pkt.Header.PCR)
}

func TestParsePacket_RejectsBadSyncByte(t *testing.T) {
	raw := buildPacketWithPCR(t, 0)
	raw[0] = 0x00

	_, err := ParsePacket(raw)
	require.Error(t, err)
}

func TestParsePacket_RejectsWrongSize(t *testing.T) {
	_, err := ParsePacket(make([]byte, 10))
	require.Error(t, err)
}

func TestParsePacket_NoAdaptationFieldMeansNoPCR(t *testing.T) {
	pkt := make([]byte, PacketSize)
	pkt[0] = SyncByte
	pkt[3] = 0x10 // payload only, no adaptation field

	p, err := ParsePacket(pkt)
	require.NoError(t, err)
	require.False(t, p.Header.HasPCR)
}
