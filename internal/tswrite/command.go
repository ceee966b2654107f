package tswrite

import (
	"errors"
	"io"
	"sync"
)

// Command is the playback-steering command set recognized on the optional
// command channel (§4.5).
type Command int

// Recognized commands. Command bytes are case-sensitive; anything not
// listed here (including '\n') is ignored by the reader.
const (
	CommandNone Command = iota
	CommandQuit
	CommandNormal
	CommandPause
	CommandFast
	CommandFastFast
	CommandReverse
	CommandFastReverse
	CommandSkipForward
	CommandSkipBackward
	CommandSkipForwardLots
	CommandSkipBackwardLots
	CommandSelectFile0
	CommandSelectFile1
	CommandSelectFile2
	CommandSelectFile3
	CommandSelectFile4
	CommandSelectFile5
	CommandSelectFile6
	CommandSelectFile7
	CommandSelectFile8
	CommandSelectFile9
)

// commandFromByte maps a single input byte to a Command, per §4.5. The
// second return value is false for bytes that carry no command (including
// '\n', which is explicitly ignored rather than erroring).
func commandFromByte(b byte) (Command, bool) {
	switch b {
	case 'q':
		return CommandQuit, true
	case 'n':
		return CommandNormal, true
	case 'p':
		return CommandPause, true
	case 'f':
		return CommandFast, true
	case 'F':
		return CommandFastFast, true
	case 'r':
		return CommandReverse, true
	case 'R':
		return CommandFastReverse, true
	case '>':
		return CommandSkipForward, true
	case '<':
		return CommandSkipBackward, true
	case ']':
		return CommandSkipForwardLots, true
	case '[':
		return CommandSkipBackwardLots, true
	case '0':
		return CommandSelectFile0, true
	case '1':
		return CommandSelectFile1, true
	case '2':
		return CommandSelectFile2, true
	case '3':
		return CommandSelectFile3, true
	case '4':
		return CommandSelectFile4, true
	case '5':
		return CommandSelectFile5, true
	case '6':
		return CommandSelectFile6, true
	case '7':
		return CommandSelectFile7, true
	case '8':
		return CommandSelectFile8, true
	case '9':
		return CommandSelectFile9, true
	default:
		return CommandNone, false
	}
}

// isAtomic reports whether cmd declares itself atomic (§4.3): while an
// atomic command is in flight, CommandChannel hides further "changed"
// notifications so the operation cannot be preempted mid-flight.
func (c Command) isAtomic() bool {
	return c == CommandSkipForwardLots || c == CommandSkipBackwardLots
}

// CommandChannel reads single-byte commands from an input stream and
// exposes the latest command plus a "changed" flag to the pacer. EOF or a
// read error is coerced into a synthetic Quit (CommandChannelError, §7).
type CommandChannel struct {
	mu      sync.Mutex
	current Command
	changed bool
	atomic  bool
}

// NewCommandChannel creates an empty CommandChannel; callers feed it bytes
// via Feed as they are read (WithCommandChannel does so from its own
// reader goroutine).
func NewCommandChannel() *CommandChannel {
	return &CommandChannel{}
}

// Feed processes one byte read from the command socket. If a prior command
// change is still unacknowledged, the byte is dropped for this round
// (§4.3: "skip READ this round").
func (c *CommandChannel) Feed(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.changed {
		return
	}
	cmd, ok := commandFromByte(b)
	if !ok {
		return
	}
	c.setLocked(cmd)
}

// FeedEOF synthesizes a Quit command, per §4.5 and the CommandChannelError
// taxonomy entry in §7.
func (c *CommandChannel) FeedEOF() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(CommandQuit)
}

func (c *CommandChannel) setLocked(cmd Command) {
	c.current = cmd
	c.changed = true
	c.atomic = cmd.isAtomic()
}

// Changed reports whether a new command is waiting to be observed. While an
// atomic command is in progress, this always reports false until Release is
// called.
func (c *CommandChannel) Changed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.atomic {
		return false
	}
	return c.changed
}

// Current returns the most recently observed command.
func (c *CommandChannel) Current() Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Acknowledge clears the changed flag once the caller has acted on Current.
// Non-atomic commands acknowledge immediately; an atomic command must be
// released explicitly via Release before it acknowledges.
func (c *CommandChannel) Acknowledge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.atomic {
		return
	}
	c.changed = false
}

// Release ends an in-progress atomic command, making Changed/Acknowledge
// behave normally again.
func (c *CommandChannel) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.atomic = false
	c.changed = false
}

// readCommandByte reads exactly one byte from r, translating io.EOF and other
// read errors into the synthetic-Quit policy of §4.5/§7.
func readCommandByte(r io.Reader, cc *CommandChannel) error {
	var buf [1]byte
	_, err := io.ReadFull(r, buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			cc.FeedEOF()
			return nil
		}
		cc.FeedEOF()
		return err
	}
	cc.Feed(buf[0])
	return nil
}
