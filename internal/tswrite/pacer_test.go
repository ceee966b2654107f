package tswrite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	sent [][]byte
}

func (s *recordingSink) Send(p []byte) error {
	cp := append([]byte(nil), p...)
	s.sent = append(s.sent, cp)
	return nil
}
func (s *recordingSink) Close() error { return nil }

func newTestPacer(cfg PacingConfig, sink Sink) *Pacer {
	ring := NewRing(cfg)
	return NewPacer(ring, cfg, sink, nil, nil)
}

func syncItem() *Item {
	it := newItem(188)
	it.payload[0] = SyncByte
	it.length = 188
	return it
}

func TestPacer_DropsItemWithBadSyncByte(t *testing.T) {
	cfg := DefaultConfig()
	sink := &recordingSink{}
	p := newTestPacer(cfg, sink)

	it := newItem(188)
	it.payload[0] = 0x00
	it.length = 188

	require.NoError(t, p.deliver(context.Background(), it))
	require.Empty(t, sink.sent)
}

func TestPacer_BurstCapForcesWaitAfterNConsecutiveSends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxNoWait = 2
	cfg.WaitFor = 1000 // 1ms
	sink := &recordingSink{}
	p := newTestPacer(cfg, sink)

	now := time.Now()
	p.clock = func() time.Time { return now }

	ctx := context.Background()

	// First item anchors the timeline; it goes out with zero delay and
	// counts toward the burst cap.
	it := syncItem()
	it.timeUs = 0
	require.NoError(t, p.deliver(ctx, it))
	require.Equal(t, 1, p.state.SentWithoutDelay)

	// Two more items with timestamps already in the past relative to
	// elapsed wall time: neither needs a scheduling wait. The second
	// zero-delay send still fits under the cap.
	it2 := syncItem()
	it2.timeUs = -1
	require.NoError(t, p.deliver(ctx, it2))
	require.Equal(t, 2, p.state.SentWithoutDelay)

	it3 := syncItem()
	it3.timeUs = -1
	require.NoError(t, p.deliver(ctx, it3))
	// MaxNoWait reached: forced wait fires and the counter resets.
	require.Equal(t, 0, p.state.SentWithoutDelay)

	require.Len(t, sink.sent, 3)
}

func TestPacer_LargeLatenessResetsTimeline(t *testing.T) {
	cfg := DefaultConfig()
	sink := &recordingSink{}
	p := newTestPacer(cfg, sink)

	now := time.Now()
	p.clock = func() time.Time { return now }

	ctx := context.Background()
	it := syncItem()
	it.timeUs = 0
	require.NoError(t, p.deliver(ctx, it))
	baseline := p.state.StartWall

	// Advance the clock far ahead of the item's schedule: huge negative
	// waitFor should trigger a reset of the timeline anchor.
	later := now.Add(1 * time.Second)
	p.clock = func() time.Time { return later }

	it2 := syncItem()
	it2.timeUs = 1000 // only 1ms after the previous item in item-time
	require.NoError(t, p.deliver(ctx, it2))

	require.True(t, p.state.StartWall.After(baseline))
	require.Equal(t, int64(1000), p.state.DeltaStartUs)
}

func TestPacer_DiscontinuityReanchorsTimeline(t *testing.T) {
	cfg := DefaultConfig()
	sink := &recordingSink{}
	p := newTestPacer(cfg, sink)
	p.state.Starting = false
	p.state.StartWall = time.Now()
	p.state.DeltaStartUs = 500

	it := syncItem()
	it.timeUs = 999999
	it.discontinuity = true

	require.NoError(t, p.deliver(context.Background(), it))
	require.Equal(t, int64(999999), p.state.DeltaStartUs)
}
