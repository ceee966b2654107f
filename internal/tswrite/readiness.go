//go:build unix

package tswrite

import (
	"time"

	"golang.org/x/sys/unix"
)

// readiness waits, using poll(2), for at most a timeout for one file
// descriptor to become readable. NewPacer builds it from the sink's
// descriptor when the sink exposes one; the command channel itself is read
// on its own goroutine (WithCommandChannel). Write-readiness of the sink is
// not polled.
type readiness struct {
	cmdFd  uintptr
	haveFd bool
}

// newReadiness builds a waiter for an optional file descriptor. When cmdFd
// is not present, wait sleeps for the full timeout and reports "not ready".
func newReadiness(cmdFd uintptr, haveFd bool) *readiness {
	return &readiness{cmdFd: cmdFd, haveFd: haveFd}
}

// wait polls for up to timeout for the fd to become readable. It never
// waits for write-readiness: sink writes in this package are made against
// buffered kernel sockets sized well above one item, so write-readiness
// waits would almost never fire and only cost latency in the pacing loop.
func (r *readiness) wait(timeout time.Duration) (cmdReady bool, err error) {
	if !r.haveFd {
		time.Sleep(timeout)
		return false, nil
	}
	fds := []unix.PollFd{{Fd: int32(r.cmdFd), Events: unix.POLLIN}}
	ms := int(timeout / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}
	if n <= 0 {
		return false, nil
	}
	return fds[0].Revents&unix.POLLIN != 0, nil
}
