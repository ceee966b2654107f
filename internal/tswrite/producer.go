package tswrite

import (
	"context"
	"fmt"
)

// Producer accepts TS packets one at a time, accumulates them into the
// ring's current item, and stamps each closed item with a target send
// time using the PCR-locked (or plain, constant-rate) rate controller.
type Producer struct {
	ring *Ring
	cfg  PacingConfig
	rate *rateState

	cur           *Item
	metas         []packetMeta
	packetsInItem int
	nextIndex     int64

	eofWritten bool
}

// NewProducer creates a Producer feeding the given ring.
func NewProducer(ring *Ring, cfg PacingConfig) *Producer {
	return &Producer{
		ring:  ring,
		cfg:   cfg,
		rate:  newRateState(cfg),
		metas: make([]packetMeta, 0, cfg.PacketsPerItem),
	}
}

// Write accumulates one 188-byte TS packet into the current item, closing
// and committing the item once it holds PacketsPerItem packets. pcr is in
// 27 MHz ticks and is scaled by cfg.PCRScale before storage.
func (p *Producer) Write(ctx context.Context, packet []byte, pid uint16, hasPCR bool, pcr uint64) error {
	if p.eofWritten {
		return fmt.Errorf("tswrite: write after EOF")
	}
	if len(packet) != tsPacketSize {
		return fmt.Errorf("tswrite: packet size %d, expected %d", len(packet), tsPacketSize)
	}
	if packet[0] != 0x47 {
		return fmt.Errorf("tswrite: invalid sync byte 0x%02X", packet[0])
	}

	if p.cur == nil {
		item, err := p.ring.ReserveWrite(ctx)
		if err != nil {
			return err
		}
		p.cur = item
		p.packetsInItem = 0
		// Required invariant (spec §9): a freshly opened item's packet slots
		// must never appear to carry a PCR before real data is written into
		// them. Go zero-initializes p.metas' backing entries, but we
		// truncate-and-reuse the slice below, so make the guarantee explicit
		// rather than relying on that as an accident of allocation.
		p.metas = p.metas[:0]
	}

	off := p.packetsInItem * tsPacketSize
	copy(p.cur.payload[off:off+tsPacketSize], packet)
	p.packetsInItem++
	p.cur.length = off + tsPacketSize

	if hasPCR {
		pcr = uint64(float64(pcr) * p.cfg.PCRScale)
	}
	p.metas = append(p.metas, packetMeta{
		index:  p.nextIndex,
		pid:    pid,
		hasPCR: hasPCR,
		pcr:    pcr,
	})
	p.nextIndex++

	if p.packetsInItem == p.cfg.PacketsPerItem {
		return p.closeItem()
	}
	return nil
}

func (p *Producer) closeItem() error {
	numBytes := p.cur.length

	var timeUs int64
	var discontinuity bool
	if p.cfg.UsePCRs {
		timeUs, discontinuity = p.rate.assignTimestamp(p.cfg, p.ring.ItemSize(), numBytes, p.metas)
	} else {
		timeUs = p.rate.assignTimestampPlain(p.cfg, numBytes)
	}

	p.cur.timeUs = timeUs
	p.cur.discontinuity = discontinuity
	p.ring.CommitWrite()
	p.cur = nil
	return nil
}

// WriteEOF flushes any partially accumulated item, then inserts the
// in-band end-of-stream sentinel item and waits for it to be committed.
// After WriteEOF returns, Write must not be called again.
func (p *Producer) WriteEOF(ctx context.Context) error {
	if p.eofWritten {
		return nil
	}
	if p.cur != nil && p.packetsInItem > 0 {
		if err := p.closeItem(); err != nil {
			return err
		}
	}

	item, err := p.ring.ReserveWrite(ctx)
	if err != nil {
		return err
	}
	item.payload[0] = eofByte
	item.length = 1
	if p.cfg.UsePCRs {
		timeUs, _ := p.rate.assignTimestamp(p.cfg, p.ring.ItemSize(), 1, nil)
		item.timeUs = timeUs
	} else {
		item.timeUs = p.rate.assignTimestampPlain(p.cfg, 1)
	}
	p.ring.CommitWrite()
	p.eofWritten = true
	return nil
}
