// Package tswrite implements a paced MPEG transport-stream writer: a
// bounded ring buffer decouples an ingest producer from a PCR-paced
// consumer that forwards items to a Sink at their assigned wall-clock
// time, with an optional single-byte command channel for playback control.
package tswrite

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Writer wires a Ring, Producer and Pacer together and runs the consumer
// loop for the lifetime of a paced session. Feed data in with WritePacket,
// then call Close to flush and wait for the consumer to drain.
type Writer struct {
	cfg  PacingConfig
	ring *Ring
	prod *Producer
	pace *Pacer
	sink Sink
	cmd  *CommandChannel

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	log *slog.Logger
}

// Option configures a Writer at construction time.
type Option func(*Writer)

// WithCommandChannel attaches a command source; r is read one byte at a
// time on its own goroutine and fed into the Writer's CommandChannel.
func WithCommandChannel(r io.Reader) Option {
	return func(w *Writer) {
		cc := NewCommandChannel()
		w.cmd = cc
		w.group.Go(func() error {
			for {
				if err := readCommandByte(r, cc); err != nil {
					return nil
				}
				select {
				case <-w.ctx.Done():
					return nil
				default:
				}
			}
		})
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(w *Writer) { w.log = log }
}

// NewWriter validates cfg, builds the ring/producer/pacer trio around sink,
// and starts the consumer loop in the background.
func NewWriter(ctx context.Context, cfg PacingConfig, sink Sink, opts ...Option) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(wctx)

	w := &Writer{
		cfg:    cfg,
		ring:   NewRing(cfg),
		sink:   sink,
		group:  group,
		ctx:    gctx,
		cancel: cancel,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.prod = NewProducer(w.ring, cfg)
	w.pace = NewPacer(w.ring, cfg, sink, w.cmd, w.log)

	w.group.Go(func() error {
		if err := w.pace.Run(w.ctx); err != nil {
			return fmt.Errorf("tswrite: pacer: %w", err)
		}
		return nil
	})

	return w, nil
}

// WritePacket accumulates one 188-byte TS packet, PID and optional PCR
// into the current item.
func (w *Writer) WritePacket(packet []byte, pid uint16, hasPCR bool, pcr uint64) error {
	return w.prod.Write(w.ctx, packet, pid, hasPCR, pcr)
}

// Close flushes any partial item, writes the EOF sentinel, waits for the
// consumer to drain the ring and terminate, then tears down the sink.
func (w *Writer) Close() error {
	if err := w.prod.WriteEOF(w.ctx); err != nil {
		w.cancel()
		_ = w.group.Wait()
		return err
	}

	err := w.group.Wait()
	w.cancel()
	if closeErr := w.sink.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Abort cancels the writer immediately without attempting an orderly EOF
// flush, for use when the ingest side has failed and draining the ring
// would just waste time.
func (w *Writer) Abort() error {
	w.cancel()
	err := w.group.Wait()
	if closeErr := w.sink.Close(); err == nil {
		err = closeErr
	}
	return err
}
