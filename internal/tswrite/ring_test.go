package tswrite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() PacingConfig {
	cfg := DefaultConfig()
	cfg.CircBufSize = 4
	cfg.ParentWaitMs = 1
	cfg.ChildWaitMs = 1
	return cfg
}

func TestRing_FIFOOrdering(t *testing.T) {
	ring := NewRing(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		it, err := ring.ReserveWrite(ctx)
		require.NoError(t, err)
		it.payload[0] = byte(i)
		it.length = 1
		ring.CommitWrite()
	}

	for i := 0; i < 3; i++ {
		it, err := ring.AwaitRead(ctx)
		require.NoError(t, err)
		require.Equal(t, byte(i), it.payload[0])
		ring.ReleaseRead()
	}
	require.True(t, ring.Empty())
}

func TestRing_CapacityBoundedAndReusable(t *testing.T) {
	cfg := testConfig()
	ring := NewRing(cfg)
	ctx := context.Background()

	for i := 0; i < cfg.CircBufSize; i++ {
		_, err := ring.ReserveWrite(ctx)
		require.NoError(t, err)
		ring.CommitWrite()
	}
	require.True(t, ring.Full())

	// One more reserve should block until a slot frees up.
	done := make(chan error, 1)
	go func() {
		_, err := ring.ReserveWrite(ctx)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("ReserveWrite returned while ring was still full")
	case <-time.After(20 * time.Millisecond):
	}

	it, err := ring.AwaitRead(ctx)
	require.NoError(t, err)
	_ = it
	ring.ReleaseRead()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("ReserveWrite did not unblock after a slot freed")
	}
}

func TestRing_ReserveWriteGivesUpOnDeadConsumer(t *testing.T) {
	cfg := testConfig()
	cfg.CircBufSize = 1
	cfg.ParentWaitMs = 1
	ring := NewRing(cfg)
	ctx := context.Background()

	_, err := ring.ReserveWrite(ctx)
	require.NoError(t, err)
	ring.CommitWrite()

	_, err = ring.ReserveWrite(ctx)
	require.ErrorIs(t, err, ErrProducerBlocked)
}

func TestRing_AwaitFullBlocksUntilCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.CircBufSize = 2
	ring := NewRing(cfg)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- ring.AwaitFull(ctx) }()

	select {
	case <-done:
		t.Fatal("AwaitFull returned before the ring filled")
	case <-time.After(10 * time.Millisecond):
	}

	for i := 0; i < 2; i++ {
		_, err := ring.ReserveWrite(ctx)
		require.NoError(t, err)
		ring.CommitWrite()
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("AwaitFull did not unblock once full")
	}
}
