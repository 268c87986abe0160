package socket

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/actorcore/internal/domain/core"
)

// CommandType mirrors §4.4's single-byte command frame codes.
type CommandType byte

const (
	CmdStart       CommandType = 'S'
	CmdBind        CommandType = 'B'
	CmdListen      CommandType = 'L'
	CmdClose       CommandType = 'K'
	CmdOpen        CommandType = 'O' // connect
	CmdExit        CommandType = 'X'
	CmdSetopt      CommandType = 'T'
	CmdUDPOpen     CommandType = 'U'
	CmdSendHigh    CommandType = 'D'
	CmdSendLow     CommandType = 'P'
	CmdSendUDP     CommandType = 'A'
	CmdSetUDPPeer  CommandType = 'C'
)

// Command is the decoded form of a §4.4 command frame: in the C runtime
// this is {type_char, payload_len, payload}; here it is a typed struct
// submitted over a bounded channel instead of serialized bytes, since the
// channel already gives every submitter a thread-safe queue the original
// self-pipe exists to provide.
type Command struct {
	Type  CommandType
	Owner core.Handle
	ID    uint32 // socket id, when the command targets an existing slot

	// Shutdown distinguishes a CmdClose that must force-close immediately,
	// discarding pending write-buffer data, from a plain close that defers
	// to HALFCLOSE until the buffer drains. Mirrors socket_server.c's
	// `struct request_close.shutdown` (set by socket_server_shutdown,
	// left 0 by socket_server_close).
	Shutdown bool

	Host string
	Port int
	Fd   int
	Data []byte
	Dest *udpDest

	Reply chan uint32 // Listen/Open/Bind/UDPOpen deliver the new id here
}

const commandQueueCapacity = 4096
const commandSubmitTimeout = 50 * time.Millisecond

// commandQueue is the self-pipe stand-in: a bounded channel with an
// explicit overflow policy (§9 resolved in SPEC_FULL.md) instead of the
// open question's "assumed never to block the writer". Submit blocks up
// to commandSubmitTimeout, then drops the command and logs rather than
// deadlocking or panicking under a burst of simultaneous callers.
type commandQueue struct {
	ch     chan Command
	wake   func()
	logger *slog.Logger
}

func newCommandQueue(wake func(), logger *slog.Logger) *commandQueue {
	return &commandQueue{
		ch:     make(chan Command, commandQueueCapacity),
		wake:   wake,
		logger: logger,
	}
}

// Submit enqueues cmd, waking the reactor out of its readiness wait.
// Never blocks the caller beyond commandSubmitTimeout (§5 "socket
// commands never block the caller").
func (q *commandQueue) Submit(ctx context.Context, cmd Command) bool {
	select {
	case q.ch <- cmd:
		q.wake()
		return true
	default:
	}

	timer := time.NewTimer(commandSubmitTimeout)
	defer timer.Stop()
	select {
	case q.ch <- cmd:
		q.wake()
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		if q.logger != nil {
			q.logger.Error("dropping socket command: queue full",
				slog.String("command", string(cmd.Type)),
				slog.Uint64("owner", uint64(cmd.Owner)))
		}
		return false
	}
}
