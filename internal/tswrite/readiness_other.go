//go:build !unix

package tswrite

import "time"

// readiness is a portable fallback for platforms without poll(2). It never
// reports a command as ready; on those platforms the command channel must
// be read from its own goroutine instead of being multiplexed into the
// pacing loop. Windows socket support is out of scope (spec Non-goals).
type readiness struct{}

func newReadiness(uintptr, bool) *readiness { return &readiness{} }

func (r *readiness) wait(timeout time.Duration) (bool, error) {
	time.Sleep(timeout)
	return false, nil
}
