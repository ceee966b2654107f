// Command tswrite runs a standalone paced MPEG-TS writer: it reads a
// transport stream from a file, stdin, or an SRT source, and forwards it
// to a sink at the rate the stream's own PCRs (or a fixed byte rate)
// dictate.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/karimdavoodi/tstools/internal/feed"
	"github.com/karimdavoodi/tstools/internal/tswrite"
	"github.com/karimdavoodi/tstools/ingest/srt"
)

func main() {
	var (
		inputPath   = flag.String("input", "-", "input TS file path, or - for stdin")
		srtListen   = flag.String("srt-listen", "", "listen for SRT publishers on host:port instead of reading -input")
		sinkKind    = flag.String("sink", "stdout", "sink type: stdout, file, tcp, udp")
		sinkTarget  = flag.String("sink-target", "", "sink target: file path, tcp listen addr, or udp host:port")
		udpIface    = flag.String("udp-iface", "", "outbound interface name for multicast UDP sinks")
		cmdListen   = flag.String("cmd-listen", "", "listen for single-byte playback commands on host:port")
		circBufSize = flag.Int("circ_buf_size", tswrite.DefaultConfig().CircBufSize, "ring buffer item capacity")
		packetsItem = flag.Int("packets_per_item", tswrite.DefaultConfig().PacketsPerItem, "TS packets accumulated per item")
		maxNoWait   = flag.Int("maxnowait", tswrite.DefaultConfig().MaxNoWait, "burst cap: max consecutive zero-delay sends, -1 disables")
		waitFor     = flag.Int64("waitfor", tswrite.DefaultConfig().WaitFor, "forced gap in microseconds once maxnowait is hit")
		byteRate    = flag.Float64("byterate", tswrite.DefaultConfig().ByteRate, "fallback/initial byte rate")
		bitRate     = flag.Float64("bitrate", 0, "fallback/initial bit rate; overrides -byterate if nonzero")
		usePCRs     = flag.Bool("use_pcrs", tswrite.DefaultConfig().UsePCRs, "pace using PCR-locked rate control")
		primeSize   = flag.Int("prime_size", tswrite.DefaultConfig().PrimeSize, "items used to prime the rate controller")
		primeSpeed  = flag.Int("prime_speedup", tswrite.DefaultConfig().PrimeSpeedup, "percent-of-normal-speed while priming")
		pcrScale    = flag.Float64("pcr_scale", tswrite.DefaultConfig().PCRScale, "scale factor applied to every observed PCR")
		parentWait  = flag.Int("parent_wait_ms", tswrite.DefaultConfig().ParentWaitMs, "producer poll interval while the ring is full")
		childWait   = flag.Int("child_wait_ms", tswrite.DefaultConfig().ChildWaitMs, "consumer poll interval while the ring is empty")
		perturbSeed = flag.Int64("perturb_seed", 0, "seed for consumer clock jitter (jitter is enabled by -perturb_range_ms; 0 uses a fixed seed)")
		perturbMs   = flag.Int("perturb_range_ms", 0, "consumer clock jitter range in ms")
		perturbVerb = flag.Bool("perturb_verbose", false, "log every jitter sample")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg := tswrite.DefaultConfig()
	cfg.CircBufSize = *circBufSize
	cfg.PacketsPerItem = *packetsItem
	cfg.MaxNoWait = *maxNoWait
	cfg.WaitFor = *waitFor
	cfg.ByteRate = *byteRate
	if *bitRate > 0 {
		cfg.ByteRate = *bitRate / 8
	}
	cfg.UsePCRs = *usePCRs
	cfg.PrimeSize = *primeSize
	cfg.PrimeSpeedup = *primeSpeed
	cfg.PCRScale = *pcrScale
	cfg.ParentWaitMs = *parentWait
	cfg.ChildWaitMs = *childWait
	cfg.PerturbSeed = *perturbSeed
	cfg.PerturbRangeMs = *perturbMs
	cfg.PerturbVerbose = *perturbVerb

	if err := run(cfg, *inputPath, *srtListen, *sinkKind, *sinkTarget, *udpIface, *cmdListen, log); err != nil {
		log.Error("tswrite exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg tswrite.PacingConfig, inputPath, srtListen, sinkKind, sinkTarget, udpIface, cmdListen string, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	newWriter := func(streamKey string) (*tswrite.Writer, error) {
		sink, err := buildSink(sinkKind, sinkTarget, udpIface)
		if err != nil {
			return nil, err
		}
		var opts []tswrite.Option
		opts = append(opts, tswrite.WithLogger(log.With("stream_key", streamKey)))
		if cmdListen != "" {
			conn, err := dialCommandSource(cmdListen)
			if err != nil {
				return nil, err
			}
			opts = append(opts, tswrite.WithCommandChannel(conn))
		}
		return tswrite.NewWriter(ctx, cfg, sink, opts...)
	}

	if srtListen != "" {
		server := srt.NewServer(srtListen, newWriter, log)
		return server.Start(ctx)
	}

	w, err := newWriter("stdin")
	if err != nil {
		return err
	}

	var src *os.File
	if inputPath == "-" {
		src = os.Stdin
	} else {
		src, err = os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer src.Close()
	}

	feeder := feed.New(w)
	buf := make([]byte, 64*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := feeder.Write(buf[:n]); werr != nil {
				w.Abort()
				return werr
			}
		}
		if rerr != nil {
			break
		}
	}

	return w.Close()
}

func buildSink(kind, target, udpIface string) (tswrite.Sink, error) {
	switch kind {
	case "stdout":
		return tswrite.NewStdoutSink(), nil
	case "file":
		return tswrite.NewFileSink(target)
	case "tcp":
		return tswrite.ListenTCPSink(target)
	case "udp":
		return tswrite.NewUDPSink(target, udpIface)
	default:
		return nil, fmt.Errorf("unknown sink type %q", kind)
	}
}

func dialCommandSource(addr string) (net.Conn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen command channel: %w", err)
	}
	conn, err := ln.Accept()
	ln.Close()
	if err != nil {
		return nil, fmt.Errorf("accept command channel: %w", err)
	}
	return conn, nil
}
