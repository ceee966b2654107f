package tswrite

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrProducerBlocked is returned by ReserveWrite when the ring has stayed
// full for longer than parentGiveUpAfter polls -- the reference design's
// conservative assumption that the consumer has crashed
// (ProducerBlockedTooLong in spec terms).
var ErrProducerBlocked = errors.New("tswrite: ring full too long, consumer presumed dead")

// Ring is a fixed-capacity, single-producer/single-consumer circular queue
// of Items. It uses the classic one-slot-empty convention: capacity N holds
// at most N items in N+1 slots, so "full" and "empty" never coincide.
//
// Only the producer advances end; only the consumer advances start. Both
// indices are atomics so that writes to an item's contents (by the
// producer) happen-before the index bump that publishes it, and the
// consumer's read of the item happens-after it observes that bump --
// exactly the publishing/acquiring fence pair spec §5 requires.
//
// The buffer intentionally polls rather than blocking on a condition
// variable: this lets the consumer compose ring waits with the readiness
// multiplexing it also has to do against the command channel (§4.3).
type Ring struct {
	slots          []*Item
	size           int // N+1
	itemSize       int
	packetsPerItem int

	start atomic.Int64
	end   atomic.Int64

	parentWait time.Duration
	childWait  time.Duration
}

// NewRing allocates a ring able to hold cfg.CircBufSize items.
func NewRing(cfg PacingConfig) *Ring {
	size := cfg.CircBufSize + 1
	slots := make([]*Item, size)
	itemSize := cfg.itemSize()
	for i := range slots {
		slots[i] = newItem(itemSize)
	}
	r := &Ring{
		slots:          slots,
		size:           size,
		itemSize:       itemSize,
		packetsPerItem: cfg.PacketsPerItem,
		parentWait:     cfg.parentWait(),
		childWait:      cfg.childWait(),
	}
	r.start.Store(0)
	r.end.Store(int64(size - 1)) // empty: start == (end+1) mod size
	return r
}

func (r *Ring) mod(i int64) int64 {
	m := i % int64(r.size)
	if m < 0 {
		m += int64(r.size)
	}
	return m
}

// Empty reports whether the ring currently holds no committed items.
func (r *Ring) Empty() bool {
	return r.start.Load() == r.mod(r.end.Load()+1)
}

// Full reports whether the ring has no free slot for another item.
func (r *Ring) Full() bool {
	return r.mod(r.end.Load()+2) == r.start.Load()
}

// Len returns the number of committed items currently in the ring.
func (r *Ring) Len() int {
	start, end := r.start.Load(), r.end.Load()
	d := r.mod(end - start + 1)
	return int(d)
}

// ReserveWrite blocks (polling every parentWaitMs) until a free slot is
// available, then returns it for the producer to fill in place. It gives
// up after parentGiveUpAfter polls, returning ErrProducerBlocked.
func (r *Ring) ReserveWrite(ctx context.Context) (*Item, error) {
	for polls := 0; ; polls++ {
		if !r.Full() {
			slot := r.mod(r.end.Load() + 1)
			it := r.slots[slot]
			it.reset()
			return it, nil
		}
		if polls >= parentGiveUpAfter {
			return nil, ErrProducerBlocked
		}
		if err := sleepOrDone(ctx, r.parentWait); err != nil {
			return nil, err
		}
	}
}

// CommitWrite makes the item most recently returned by ReserveWrite visible
// to the consumer by advancing end.
func (r *Ring) CommitWrite() {
	r.end.Store(r.mod(r.end.Load() + 1))
}

// AwaitRead blocks (polling every childWaitMs, with no give-up: the
// upstream producer may legitimately pause indefinitely) until an item is
// available, then returns it without releasing the slot.
func (r *Ring) AwaitRead(ctx context.Context) (*Item, error) {
	for {
		if !r.Empty() {
			slot := r.start.Load()
			return r.slots[slot], nil
		}
		if err := sleepOrDone(ctx, r.childWait); err != nil {
			return nil, err
		}
	}
}

// AwaitFull blocks until the ring has filled to capacity at least once, or
// until the most recently committed item is the EOF sentinel (a stream
// shorter than the ring), used by the consumer at startup to let the
// pipeline warm up before the first send (§4.3).
func (r *Ring) AwaitFull(ctx context.Context) error {
	for !r.Full() {
		if !r.Empty() && r.slots[r.end.Load()].isEOF() {
			return nil
		}
		if err := sleepOrDone(ctx, r.childWait); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseRead advances start, freeing the slot last returned by AwaitRead.
func (r *Ring) ReleaseRead() {
	r.start.Store(r.mod(r.start.Load() + 1))
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		time.Sleep(d)
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ItemSize returns the configured payload capacity of one item.
func (r *Ring) ItemSize() int { return r.itemSize }

// PacketsPerItem returns K.
func (r *Ring) PacketsPerItem() int { return r.packetsPerItem }

func (r *Ring) String() string {
	return fmt.Sprintf("Ring{len=%d/%d}", r.Len(), r.size-1)
}
