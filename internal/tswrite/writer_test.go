package tswrite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makePacket(cc byte) []byte {
	pkt := make([]byte, tsPacketSize)
	pkt[0] = 0x47
	pkt[3] = 0x10 | (cc & 0x0F)
	return pkt
}

func TestWriter_EndToEnd_PlainRateToFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ts")

	sink, err := NewFileSink(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.CircBufSize = 4
	cfg.PacketsPerItem = 1
	cfg.UsePCRs = false
	cfg.ByteRate = 100_000_000 // fast, so the test doesn't actually wait long
	cfg.ParentWaitMs = 1
	cfg.ChildWaitMs = 1

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w, err := NewWriter(ctx, cfg, sink)
	require.NoError(t, err)

	const numPackets = 20
	for i := 0; i < numPackets; i++ {
		require.NoError(t, w.WritePacket(makePacket(byte(i)), 0x100, false, 0))
	}
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, numPackets*tsPacketSize, len(data))
	for i := 0; i < numPackets; i++ {
		require.Equal(t, byte(0x47), data[i*tsPacketSize])
	}
}

func TestWriter_RejectsWriteAfterClose(t *testing.T) {
	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.CircBufSize = 4
	cfg.PacketsPerItem = 1
	cfg.UsePCRs = false
	cfg.ByteRate = 100_000_000
	cfg.ParentWaitMs = 1
	cfg.ChildWaitMs = 1

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w, err := NewWriter(ctx, cfg, sink)
	require.NoError(t, err)
	require.NoError(t, w.WritePacket(makePacket(0), 0x100, false, 0))
	require.NoError(t, w.Close())

	err = w.WritePacket(makePacket(1), 0x100, false, 0)
	require.Error(t, err)
}
