package tswrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProducer_ClosesItemAfterPacketsPerItem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircBufSize = 4
	cfg.PacketsPerItem = 2
	cfg.UsePCRs = false
	ring := NewRing(cfg)
	prod := NewProducer(ring, cfg)
	ctx := context.Background()

	require.True(t, ring.Empty())
	require.NoError(t, prod.Write(ctx, makePacket(0), 0x100, false, 0))
	require.True(t, ring.Empty(), "item should stay open until PacketsPerItem is reached")

	require.NoError(t, prod.Write(ctx, makePacket(1), 0x100, false, 0))
	require.False(t, ring.Empty())

	item, err := ring.AwaitRead(ctx)
	require.NoError(t, err)
	require.Equal(t, 2*tsPacketSize, item.length)
}

func TestProducer_RejectsBadPackets(t *testing.T) {
	cfg := DefaultConfig()
	ring := NewRing(cfg)
	prod := NewProducer(ring, cfg)
	ctx := context.Background()

	require.Error(t, prod.Write(ctx, make([]byte, 10), 0, false, 0))

	bad := makePacket(0)
	bad[0] = 0x00
	require.Error(t, prod.Write(ctx, bad, 0, false, 0))
}

func TestProducer_WriteEOF_FlushesPartialItemThenSentinel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircBufSize = 4
	cfg.PacketsPerItem = 3
	cfg.UsePCRs = false
	ring := NewRing(cfg)
	prod := NewProducer(ring, cfg)
	ctx := context.Background()

	require.NoError(t, prod.Write(ctx, makePacket(0), 0x100, false, 0))
	require.NoError(t, prod.WriteEOF(ctx))

	partial, err := ring.AwaitRead(ctx)
	require.NoError(t, err)
	require.Equal(t, tsPacketSize, partial.length)
	ring.ReleaseRead()

	eofItem, err := ring.AwaitRead(ctx)
	require.NoError(t, err)
	require.True(t, eofItem.isEOF())

	require.Error(t, prod.Write(ctx, makePacket(1), 0x100, false, 0))
}

func TestProducer_WriteEOFIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	ring := NewRing(cfg)
	prod := NewProducer(ring, cfg)
	ctx := context.Background()

	require.NoError(t, prod.WriteEOF(ctx))
	require.NoError(t, prod.WriteEOF(ctx))
}
