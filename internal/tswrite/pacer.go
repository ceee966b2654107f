package tswrite

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// resetGapUs is the lateness threshold beyond which the pacer gives up on
// its current timeline and re-anchors to the next item instead of trying
// to catch up (§4.3).
const resetGapUs = -200_000

// SyncByte is the fixed first byte of every valid transport stream packet.
const SyncByte = 0x47

// PacerState is the consumer's timeline bookkeeping, exported so tests can
// assert on it directly after driving a few iterations by hand.
type PacerState struct {
	Starting         bool
	StartWall        time.Time
	DeltaStartUs     int64
	LastPacketTimeUs int64
	SentWithoutDelay int
}

// Pacer is the consumer half of the engine (§4.3): it pulls items off the
// ring on the schedule the producer assigned them, validates and forwards
// their payload to a Sink, and multiplexes an optional command channel in
// with that wait.
type Pacer struct {
	ring *Ring
	cfg  PacingConfig
	sink Sink
	cmd  *CommandChannel
	rdy  *readiness

	clock func() time.Time
	rng   *rand.Rand

	state PacerState
	log   *slog.Logger
}

// NewPacer builds a Pacer over ring, delivering to sink. cmd may be nil if
// no command channel is attached.
func NewPacer(ring *Ring, cfg PacingConfig, sink Sink, cmd *CommandChannel, log *slog.Logger) *Pacer {
	if log == nil {
		log = slog.Default()
	}
	var rdy *readiness
	if fs, ok := sink.(fdSink); ok {
		if fd, have := fs.Fd(); have {
			rdy = newReadiness(fd, true)
		}
	}
	if rdy == nil {
		rdy = newReadiness(0, false)
	}
	seed := cfg.PerturbSeed
	if seed == 0 {
		seed = 1
	}
	return &Pacer{
		ring:  ring,
		cfg:   cfg,
		sink:  sink,
		cmd:   cmd,
		rdy:   rdy,
		clock: time.Now,
		rng:   rand.New(rand.NewSource(seed)),
		state: PacerState{Starting: true},
		log:   log,
	}
}

// Run drives the pacing loop until an EOF item is consumed, the command
// channel signals Quit, or ctx is cancelled.
func (p *Pacer) Run(ctx context.Context) error {
	if err := p.ring.AwaitFull(ctx); err != nil {
		return err
	}

	for {
		if p.cmd != nil && p.cmd.Changed() && p.cmd.Current() == CommandQuit {
			p.cmd.Acknowledge()
			return nil
		}

		item, err := p.ring.AwaitRead(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if item.isEOF() {
			p.ring.ReleaseRead()
			p.log.Debug("pacer: eof item consumed")
			return nil
		}

		if err := p.deliver(ctx, item); err != nil {
			return err
		}
		p.ring.ReleaseRead()

		if err := p.pollCommands(ctx); err != nil {
			return err
		}
	}
}

// deliver waits out item's schedule (subject to the drift/reset/burst-cap
// policy) and sends its payload.
func (p *Pacer) deliver(ctx context.Context, item *Item) error {
	now := p.perturbedNow()

	if p.state.Starting || item.discontinuity {
		p.state.Starting = false
		p.state.StartWall = now
		p.state.DeltaStartUs = item.timeUs
		p.state.SentWithoutDelay = 0
	}

	elapsedUs := now.Sub(p.state.StartWall).Microseconds()
	targetUs := item.timeUs - p.state.DeltaStartUs
	waitFor := targetUs - elapsedUs

	switch {
	case waitFor > 0:
		p.state.SentWithoutDelay = 0
	case waitFor > resetGapUs:
		// Small lateness: proceed immediately without resetting the
		// timeline (§4.3).
		waitFor = 0
	default:
		// Large lateness: re-anchor unless perturbation is deliberately
		// injecting jitter this run, in which case a "late" reading is
		// expected noise, not real drift.
		if p.cfg.PerturbRangeMs == 0 {
			p.state.StartWall = now
			p.state.DeltaStartUs = item.timeUs
		}
		waitFor = 0
	}

	if p.cfg.MaxNoWait >= 0 && waitFor <= 0 {
		if p.state.SentWithoutDelay < p.cfg.MaxNoWait {
			p.state.SentWithoutDelay++
		} else {
			waitFor = p.cfg.WaitFor
			p.state.SentWithoutDelay = 0
		}
	}

	if waitFor > 0 {
		if err := p.waitOrCommand(ctx, time.Duration(waitFor)*time.Microsecond); err != nil {
			return err
		}
	}

	p.state.LastPacketTimeUs = item.timeUs

	payload := item.bytes()
	if len(payload) > 0 && payload[0] != SyncByte {
		p.log.Warn("pacer: dropping item with bad sync byte", "byte", payload[0])
		return nil
	}
	if err := p.sink.Send(payload); err != nil {
		if _, isUDP := p.sink.(*UDPSink); isUDP {
			p.log.Warn("pacer: udp send failed, dropping payload", "error", err)
			return nil
		}
		return err
	}
	return nil
}

// waitOrCommand waits for up to d in slices of at most 5ms, calling the
// readiness primitive (built from the sink's descriptor when the sink has
// one) for each slice; when it reports the descriptor readable, pending
// commands are applied before the wait continues.
func (p *Pacer) waitOrCommand(ctx context.Context, d time.Duration) error {
	const slice = 5 * time.Millisecond
	for d > 0 {
		step := d
		if step > slice {
			step = slice
		}
		ready, err := p.rdy.wait(step)
		if err != nil {
			return err
		}
		if ready {
			if err := p.pollCommands(ctx); err != nil {
				return err
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		d -= step
	}
	return nil
}

// pollCommands applies whatever command is currently pending (command
// bytes are listed in §4.5).
func (p *Pacer) pollCommands(ctx context.Context) error {
	if p.cmd == nil || !p.cmd.Changed() {
		return nil
	}
	cmd := p.cmd.Current()
	switch cmd {
	case CommandPause:
		p.log.Info("pacer: paused")
	case CommandNormal:
		p.state.Starting = true
	case CommandSkipForwardLots, CommandSkipBackwardLots:
		// Atomic commands stay "changed" until Release, so the caller
		// driving actual file seeking releases once the seek completes.
		return nil
	}
	p.cmd.Acknowledge()
	return nil
}

// perturbedNow returns the pacer's notion of "now", optionally jittered by
// PerturbRangeMs for drift-policy testing (§6).
func (p *Pacer) perturbedNow() time.Time {
	now := p.clock()
	if p.cfg.PerturbRangeMs <= 0 {
		return now
	}
	deltaMs := p.rng.Intn(2*p.cfg.PerturbRangeMs+1) - p.cfg.PerturbRangeMs
	jittered := now.Add(time.Duration(deltaMs) * time.Millisecond)
	if p.cfg.PerturbVerbose {
		p.log.Debug("pacer: perturbing clock", "delta_ms", deltaMs)
	}
	return jittered
}
