package tswrite

import (
	"fmt"
	"time"
)

const tsPacketSize = 188

// maxPacketsPerItem bounds an item to one Ethernet MTU: 7*188 = 1316 bytes,
// the same ceiling the reference implementation and SRT payloads share.
const maxPacketsPerItem = 7

// parentGiveUpAfter is the number of ring-full polls the producer tolerates
// before concluding the consumer has died.
const parentGiveUpAfter = 1000

// PacingConfig collects every tunable of the ring/producer/consumer engine.
// A zero-value PacingConfig is invalid; use DefaultConfig and override only
// the fields the caller cares about.
type PacingConfig struct {
	// CircBufSize is the number of item slots in the ring (N).
	CircBufSize int
	// PacketsPerItem is K, the number of 188-byte packets accumulated per
	// item before it is closed and handed to the consumer. Max 7.
	PacketsPerItem int
	// MaxNoWait is the burst cap: the maximum number of consecutive sends
	// allowed with zero pacing delay. -1 disables the cap.
	MaxNoWait int
	// WaitFor is the forced gap, in microseconds, imposed once MaxNoWait
	// consecutive zero-delay sends have happened.
	WaitFor int64
	// ByteRate is the initial/fallback byte rate in bytes/sec, used before
	// any PCR has been observed (or always, when UsePCRs is false).
	ByteRate float64
	// UsePCRs enables PCR-locked pacing (§4.2). When false, items are
	// timestamped at a constant ByteRate.
	UsePCRs bool
	// PrimeSize is the number of items used to prime the rate controller's
	// credit pool after start or after a discontinuity.
	PrimeSize int
	// PrimeSpeedup is the percentage of "normal speed" used while priming.
	PrimeSpeedup int
	// PCRScale multiplies every observed PCR before use, for inflating or
	// deflating an input stream's apparent rate.
	PCRScale float64
	// ParentWaitMs is the producer's poll interval while the ring is full.
	ParentWaitMs int
	// ChildWaitMs is the consumer's poll interval while the ring is empty.
	ChildWaitMs int
	// PerturbSeed, PerturbRangeMs and PerturbVerbose implement the test
	// jitter knob from §6: when PerturbRangeMs is nonzero, the consumer
	// perturbs its notion of "now" by a uniform random delta in
	// [-PerturbRangeMs, +PerturbRangeMs] and suppresses late-drift resets.
	PerturbSeed    int64
	PerturbRangeMs int
	PerturbVerbose bool
}

// DefaultConfig returns the option defaults from spec §6.
func DefaultConfig() PacingConfig {
	return PacingConfig{
		CircBufSize:    100,
		PacketsPerItem: maxPacketsPerItem,
		MaxNoWait:      30,
		WaitFor:        1000,
		ByteRate:       250_000,
		UsePCRs:        true,
		PrimeSize:      10,
		PrimeSpeedup:   100,
		PCRScale:       1.0,
		ParentWaitMs:   50,
		ChildWaitMs:    10,
	}
}

// Validate rejects nonsensical configuration up front (ConfigError, §7).
func (c PacingConfig) Validate() error {
	if c.CircBufSize <= 0 {
		return fmt.Errorf("tswrite: circ_buf_size must be positive, got %d", c.CircBufSize)
	}
	if c.PacketsPerItem <= 0 || c.PacketsPerItem > maxPacketsPerItem {
		return fmt.Errorf("tswrite: packets_per_item must be in [1,%d], got %d", maxPacketsPerItem, c.PacketsPerItem)
	}
	if c.ByteRate <= 0 {
		return fmt.Errorf("tswrite: byterate must be positive, got %g", c.ByteRate)
	}
	if c.PrimeSize <= 0 {
		return fmt.Errorf("tswrite: prime_size must be positive, got %d", c.PrimeSize)
	}
	if c.PrimeSpeedup <= 0 {
		return fmt.Errorf("tswrite: prime_speedup must be positive, got %d", c.PrimeSpeedup)
	}
	if c.PCRScale <= 0 {
		return fmt.Errorf("tswrite: pcr_scale must be positive, got %g", c.PCRScale)
	}
	if c.MaxNoWait < -1 {
		return fmt.Errorf("tswrite: maxnowait must be -1 or non-negative, got %d", c.MaxNoWait)
	}
	if c.ParentWaitMs <= 0 || c.ChildWaitMs <= 0 {
		return fmt.Errorf("tswrite: parent_wait_ms and child_wait_ms must be positive")
	}
	return nil
}

func (c PacingConfig) itemSize() int {
	return c.PacketsPerItem * tsPacketSize
}

func (c PacingConfig) parentWait() time.Duration {
	return time.Duration(c.ParentWaitMs) * time.Millisecond
}

func (c PacingConfig) childWait() time.Duration {
	return time.Duration(c.ChildWaitMs) * time.Millisecond
}
