package tswrite

import (
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"golang.org/x/net/ipv4"
)

// Sink is the destination for paced item payloads (§4.4). Send must not
// partially write: a short write is always reported as an error rather than
// silently dropping the remainder.
type Sink interface {
	Send(payload []byte) error
	Close() error
}

// fdSink is implemented by sinks backed by a real file descriptor, so the
// pacer's readiness wait (readiness.go) can poll that descriptor for
// readability between the slices of a pacing sleep.
type fdSink interface {
	Fd() (uintptr, bool)
}

// StdoutSink writes to the process's standard output.
type StdoutSink struct{ w io.Writer }

// NewStdoutSink wraps os.Stdout as a Sink.
func NewStdoutSink() *StdoutSink { return &StdoutSink{w: os.Stdout} }

func (s *StdoutSink) Send(payload []byte) error {
	return fullWrite(s.w, payload)
}

func (s *StdoutSink) Close() error { return nil }

// FileSink writes sequentially to a regular file.
type FileSink struct{ f *os.File }

// NewFileSink creates (or truncates) path and returns a Sink writing to it.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("tswrite: open sink file: %w", err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Send(payload []byte) error {
	return fullWrite(s.f, payload)
}

func (s *FileSink) Close() error { return s.f.Close() }

// TCPSink streams items to a single connected TCP peer. Exactly one client
// is accepted; the listener stays open until Close, but no later
// connection is ever accepted.
type TCPSink struct {
	ln   net.Listener
	conn net.Conn
}

// ListenTCPSink opens a listening socket on addr and blocks until the first
// client connects, mirroring the reference "block for the initial client,
// then run non-blocking" sequencing (§4.4).
func ListenTCPSink(addr string) (*TCPSink, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tswrite: listen tcp sink: %w", err)
	}
	conn, err := ln.Accept()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("tswrite: accept tcp sink: %w", err)
	}
	return &TCPSink{ln: ln, conn: conn}, nil
}

func (s *TCPSink) Send(payload []byte) error {
	return fullWrite(s.conn, payload)
}

func (s *TCPSink) Close() error {
	err := s.conn.Close()
	if lnErr := s.ln.Close(); err == nil {
		err = lnErr
	}
	return err
}

// Fd exposes the client connection's file descriptor for the readiness
// multiplexer.
func (s *TCPSink) Fd() (uintptr, bool) {
	return connFd(s.conn)
}

// UDPSink writes each item as a single UDP datagram, with multicast TTL
// and optional interface selection for class-D destinations (§4.4).
type UDPSink struct {
	conn *net.UDPConn
}

// NewUDPSink dials addr (host:port). If addr's host is a multicast group,
// the socket's outbound TTL is set to 5 (matching set-top-box hop counts in
// the reference deployment) and, when ifaceName is non-empty, IP_MULTICAST_IF
// pins the outbound interface.
func NewUDPSink(addr, ifaceName string) (*UDPSink, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("tswrite: resolve udp sink addr: %w", err)
	}

	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("tswrite: dial udp sink: %w", err)
	}

	if raddr.IP.IsMulticast() {
		pc := ipv4.NewPacketConn(conn)
		if err := pc.SetMulticastTTL(5); err != nil {
			conn.Close()
			return nil, fmt.Errorf("tswrite: set multicast ttl: %w", err)
		}
		if ifaceName != "" {
			iface, err := net.InterfaceByName(ifaceName)
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("tswrite: lookup multicast interface %q: %w", ifaceName, err)
			}
			if err := pc.SetMulticastInterface(iface); err != nil {
				conn.Close()
				return nil, fmt.Errorf("tswrite: set multicast interface: %w", err)
			}
		}
	}

	return &UDPSink{conn: conn}, nil
}

func (s *UDPSink) Send(payload []byte) error {
	return fullWrite(s.conn, payload)
}

func (s *UDPSink) Close() error { return s.conn.Close() }

func (s *UDPSink) Fd() (uintptr, bool) {
	return connFd(s.conn)
}

// fullWrite issues w.Write and reports a short write as an error rather
// than silently accepting partial delivery (§4.4, §7 SinkWriteFailure).
func fullWrite(w io.Writer, payload []byte) error {
	n, err := w.Write(payload)
	if err != nil {
		return fmt.Errorf("tswrite: sink write: %w", err)
	}
	if n != len(payload) {
		return fmt.Errorf("tswrite: short write: wrote %d of %d bytes", n, len(payload))
	}
	return nil
}

// connFd extracts the raw file descriptor backing a net.Conn, when the
// underlying implementation supports it (TCP and UDP conns on unix-like
// platforms).
func connFd(conn net.Conn) (uintptr, bool) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var fd uintptr
	err = raw.Control(func(f uintptr) { fd = f })
	if err != nil {
		return 0, false
	}
	return fd, true
}
