// Package srt implements SRT ingest for the paced TS writer: a listening
// server for publish-mode sources and a caller for pulling from remote SRT
// listeners. Both write received bytes straight into a feed.Feeder, which
// resyncs and dispatches packets to a tswrite.Writer.
package srt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	srtgo "github.com/zsiec/srtgo"

	"github.com/karimdavoodi/tstools/internal/feed"
	"github.com/karimdavoodi/tstools/internal/tswrite"
)

// srtReadBufferSize is the read buffer for SRT socket reads: ten standard
// SRT payloads of 1316 bytes = 7 MPEG-TS packets (188 * 7) each.
const srtReadBufferSize = 1316 * 10

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

// Server accepts incoming SRT publish connections and feeds each stream's
// bytes into a paced writer.
type Server struct {
	log    *slog.Logger
	addr   string
	newDst func(streamKey string) (*tswrite.Writer, error)
}

// NewServer creates an SRT server that listens on addr. newDst is called
// once per accepted connection to construct the tswrite.Writer that
// connection's packets will be paced through. If log is nil, slog.Default()
// is used.
func NewServer(addr string, newDst func(streamKey string) (*tswrite.Writer, error), log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:    log.With("component", "srt-server"),
		addr:   addr,
		newDst: newDst,
	}
}

// Start begins accepting SRT publish connections. It blocks until the
// context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs

	l, err := srtgo.Listen(s.addr, cfg)
	if err != nil {
		return fmt.Errorf("SRT listen on %s: %w", s.addr, err)
	}
	s.log.Info("listening", "addr", s.addr)

	l.SetAcceptRejectFunc(func(req srtgo.ConnRequest) srtgo.RejectReason {
		if req.StreamID == "" {
			return srtgo.RejPeer
		}
		return 0
	})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept error", "error", err)
			continue
		}

		streamKey := extractStreamKey(conn.StreamID())
		s.log.Info("publish", "stream_key", streamKey, "remote", conn.RemoteAddr())

		go s.handleConnection(ctx, conn, streamKey)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn *srtgo.Conn, streamKey string) {
	defer conn.Close()

	dst, err := s.newDst(streamKey)
	if err != nil {
		s.log.Warn("writer setup failed", "stream_key", streamKey, "error", err)
		return
	}
	feeder := feed.New(dst)

	buf := make([]byte, srtReadBufferSize)
	var bytesReceived, reads int64
	for {
		if ctx.Err() != nil {
			break
		}
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("read error", "stream_key", streamKey, "error", err)
			}
			break
		}
		bytesReceived += int64(n)
		reads++
		if _, err := feeder.Write(buf[:n]); err != nil {
			s.log.Debug("feed error", "stream_key", streamKey, "error", err)
			break
		}
	}

	if err := dst.Close(); err != nil {
		s.log.Warn("writer close error", "stream_key", streamKey, "error", err)
	}
	s.log.Info("connection closed", "stream_key", streamKey,
		"bytes", bytesReceived, "reads", reads)
}

func extractStreamKey(streamID string) string {
	streamID = strings.TrimPrefix(streamID, "/")
	streamID = strings.TrimPrefix(streamID, "live/")
	if streamID == "" {
		return "default"
	}
	return streamID
}
