//go:build linux

package socket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sys/unix"

	"github.com/webitel/actorcore/internal/domain/core"
	"github.com/webitel/actorcore/internal/eventbus"
	"github.com/webitel/actorcore/internal/runtime/dispatch"
)

const maxEpollEvents = 256

// Reactor is the single-threaded socket server of §4.4: one epoll
// instance, one self-pipe used solely to break out of a blocking
// epoll_wait, and the fixed slot table. All fd state transitions after
// allocation happen on the goroutine that calls Run, matching §5's "type
// field... otherwise accessed only by the socket thread".
type Reactor struct {
	epfd int

	wakeR int
	wakeW int

	table      *Table
	queue      *commandQueue
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	dnsTTL   *lru.Cache[string, dnsEntry]
	breakers *hostBreakers
	bus      eventbus.Bus

	poolWaker poolWaker

	stop chan struct{}
	done chan struct{}
}

// poolWaker is the subset of scheduler.Pool the reactor signals once it
// has enqueued a message and every worker was found asleep (§4.3 "the
// socket thread signals when all workers sleep"). Declared here, not
// imported from scheduler, so this package keeps no compile-time
// dependency on it; scheduler.Pool satisfies this interface structurally.
type poolWaker interface {
	AllSleeping() bool
	Wake()
}

// SetPoolWaker attaches the worker pool the reactor should nudge after
// delivering a socket event; called once by the composition root.
func (r *Reactor) SetPoolWaker(p poolWaker) { r.poolWaker = p }

// SetBus attaches the lifecycle event bus write-buffer warnings are
// published to; optional, set once by the composition root.
func (r *Reactor) SetBus(b eventbus.Bus) { r.bus = b }

// Sockets exposes the slot table for the admin HTTP surface's
// /debug/sockets endpoint.
func (r *Reactor) Sockets() *Table { return r.table }

// New builds a Reactor backed by a real epoll instance and self-pipe.
// Fatal initialization errors (cannot create epoll, cannot create the
// pipe) are returned rather than panicking — §5 terminates the process
// on these, which the caller (cmd/fx.go) does by failing fx.New's start.
func New(dispatcher *dispatch.Dispatcher, logger *slog.Logger) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("socket: epoll_create1: %w", err)
	}

	fds, err := unixPipe2NonBlock()
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("socket: self-pipe: %w", err)
	}

	r := &Reactor{
		epfd:       epfd,
		wakeR:      fds[0],
		wakeW:      fds[1],
		table:      NewTable(),
		dispatcher: dispatcher,
		logger:     logger,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.queue = newCommandQueue(r.wake, logger)

	cache, _ := lru.New[string, dnsEntry](512)
	r.dnsTTL = cache
	r.breakers = newHostBreakers()

	if err := r.epollAdd(r.wakeR, unix.EPOLLIN); err != nil {
		unix.Close(epfd)
		unix.Close(r.wakeR)
		unix.Close(r.wakeW)
		return nil, fmt.Errorf("socket: registering self-pipe: %w", err)
	}

	return r, nil
}

func unixPipe2NonBlock() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return fds, err
	}
	return fds, nil
}

func (r *Reactor) epollAdd(fd int, events uint32) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func (r *Reactor) epollMod(fd int, events uint32) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func (r *Reactor) epollDel(fd int) {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wake breaks the reactor out of a blocking epoll_wait; called by
// commandQueue.Submit and by Stop.
func (r *Reactor) wake() {
	var b [1]byte
	_, _ = unix.Write(r.wakeW, b[:])
}

// Run is the reactor's outer loop: §4.4 "multiplexes between (a)
// draining the command pipe, and (b) polling ready fds". Blocks until
// Stop; invoke in its own goroutine.
func (r *Reactor) Run() {
	defer close(r.done)

	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		r.drainCommands()

		select {
		case <-r.stop:
			r.teardown()
			return
		default:
		}

		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if r.logger != nil {
				r.logger.Error("socket: epoll_wait failed", slog.String("err", err.Error()))
			}
			continue
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			if int(ev.Fd) == r.wakeR {
				r.drainWake()
				continue
			}
			r.handleReady(ev)
		}
	}
}

// Stop signals the reactor to exit and waits for it to do so.
func (r *Reactor) Stop() {
	close(r.stop)
	r.wake()
	<-r.done
}

func (r *Reactor) teardown() {
	unix.Close(r.epfd)
	unix.Close(r.wakeR)
	unix.Close(r.wakeW)
}

func (r *Reactor) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(r.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// drainCommands processes every command currently queued without
// blocking, per §4.4's "checks pending commands with a zero-timeout
// select"; the channel's default-case receive is the Go analogue.
func (r *Reactor) drainCommands() {
	for {
		select {
		case cmd := <-r.queue.ch:
			r.handleCommand(cmd)
		default:
			return
		}
	}
}

func (r *Reactor) handleCommand(cmd Command) {
	switch cmd.Type {
	case CmdListen:
		r.doListen(cmd)
	case CmdOpen:
		r.doConnect(cmd)
	case CmdBind:
		r.doBind(cmd)
	case CmdStart:
		r.doStart(cmd)
	case CmdClose:
		r.doClose(cmd, false)
	case CmdSendHigh:
		r.doSend(cmd, true)
	case CmdSendLow:
		r.doSend(cmd, false)
	case CmdUDPOpen:
		r.doUDPOpen(cmd)
	case CmdSendUDP:
		r.doSendUDP(cmd)
	case CmdSetUDPPeer:
		r.doSetUDPPeer(cmd)
	case CmdSetopt:
		r.doSetopt(cmd)
	case CmdExit:
		close(r.stop)
	}
}

func (r *Reactor) doListen(cmd Command) {
	addr := net.JoinHostPort(cmd.Host, strconv.Itoa(cmd.Port))
	laddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		r.replyErr(cmd, err)
		return
	}

	lfd, err := tcpListenFd(laddr)
	if err != nil {
		r.replyErr(cmd, err)
		return
	}

	id, slot := r.table.Alloc()
	slot.mu.Lock()
	slot.fd = lfd
	slot.protocol = ProtoTCP
	slot.owner = cmd.Owner
	slot.mu.Unlock()
	slot.stateStore(PListen)

	if cmd.Reply != nil {
		cmd.Reply <- id
	}
}

func (r *Reactor) doStart(cmd Command) {
	slot, ok := r.table.Get(cmd.ID)
	if !ok {
		return
	}
	switch slot.stateLoad() {
	case PListen:
		slot.owner = cmd.Owner
		slot.stateStore(Listen)
		_ = r.epollAdd(slot.fd, unix.EPOLLIN)
	case PAccept:
		slot.owner = cmd.Owner
		slot.stateStore(Connected)
		r.sendEvent(slot.owner, Event{Kind: EventOpen, ID: cmd.ID})
	}
}

func (r *Reactor) doConnect(cmd Command) {
	id, slot := r.table.Alloc()
	slot.mu.Lock()
	slot.owner = cmd.Owner
	slot.protocol = ProtoTCP
	slot.mu.Unlock()

	var fd int
	var connected bool
	err := r.breakers.guardConnect(cmd.Host, func() error {
		ips, err := r.resolveHost(cmd.Host)
		if err != nil || len(ips) == 0 {
			if err == nil {
				err = fmt.Errorf("resolve failed: %s", cmd.Host)
			}
			return err
		}
		fd, connected, err = tcpConnectFd(ips[0], cmd.Port)
		return err
	})
	if err != nil {
		r.table.Free(slot)
		r.sendEvent(cmd.Owner, Event{Kind: EventErr, ID: id, Data: []byte(err.Error())})
		if cmd.Reply != nil {
			cmd.Reply <- 0
		}
		return
	}

	slot.mu.Lock()
	slot.fd = fd
	slot.mu.Unlock()

	if connected {
		slot.stateStore(Connected)
		_ = r.epollAdd(fd, unix.EPOLLIN)
		r.sendEvent(cmd.Owner, Event{Kind: EventOpen, ID: id})
	} else {
		slot.stateStore(Connecting)
		_ = r.epollAdd(fd, unix.EPOLLIN|unix.EPOLLOUT)
	}

	if cmd.Reply != nil {
		cmd.Reply <- id
	}
}

func (r *Reactor) doBind(cmd Command) {
	id, slot := r.table.Alloc()
	slot.mu.Lock()
	slot.fd = cmd.Fd
	slot.owner = cmd.Owner
	slot.protocol = ProtoTCP
	slot.mu.Unlock()
	slot.stateStore(Bind)
	_ = r.epollAdd(cmd.Fd, unix.EPOLLIN)
	if cmd.Reply != nil {
		cmd.Reply <- id
	}
}

func (r *Reactor) doClose(cmd Command, peerClosed bool) {
	slot, ok := r.table.Get(cmd.ID)
	if !ok {
		return
	}

	slot.mu.Lock()
	pending := len(slot.high) > 0 || len(slot.low) > 0
	slot.mu.Unlock()

	// socket_server.c's close_socket: `if (request->shutdown ||
	// send_buffer_empty(s)) force_close(...)` — shutdown forces an
	// immediate close that drops pending write-buffer data; a plain
	// close with pending data defers to HALFCLOSE until the buffer
	// drains.
	if pending && slot.stateLoad() == Connected && !cmd.Shutdown {
		slot.stateStore(HalfClose)
		return
	}

	r.forceClose(cmd.ID, slot, peerClosed)
}

func (r *Reactor) forceClose(id uint32, slot *Slot, _ bool) {
	owner := slot.owner
	if slot.fd >= 0 {
		r.epollDel(slot.fd)
		unix.Close(slot.fd)
	}
	r.table.Free(slot)
	r.sendEvent(owner, Event{Kind: EventClose, ID: id})
}

func (r *Reactor) doSend(cmd Command, highPriority bool) {
	slot, ok := r.table.Get(cmd.ID)
	if !ok {
		return
	}
	r.queueWrite(slot, cmd.ID, pendingWrite{data: cmd.Data}, highPriority)
}

func (r *Reactor) doSetopt(cmd Command) {
	slot, ok := r.table.Get(cmd.ID)
	if !ok || slot.fd < 0 {
		return
	}
	_ = unix.SetsockoptInt(slot.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// queueWrite implements §4.4's "Writing" send policy.
func (r *Reactor) queueWrite(slot *Slot, id uint32, w pendingWrite, highPriority bool) {
	slot.mu.Lock()
	empty := len(slot.high) == 0 && len(slot.low) == 0
	state := slot.stateLoad()
	slot.mu.Unlock()

	if empty && state == Connected {
		n, err := unix.Write(slot.fd, w.data)
		if err != nil && err != unix.EAGAIN {
			r.failSocket(id, slot, err)
			return
		}
		if n == len(w.data) {
			return
		}
		remaining := w.data[max(n, 0):]
		slot.mu.Lock()
		slot.high = append(slot.high, pendingWrite{data: remaining})
		slot.wbSize += len(remaining)
		slot.mu.Unlock()
		r.maybeWarn(id, slot)
		_ = r.epollMod(slot.fd, unix.EPOLLIN|unix.EPOLLOUT)
		return
	}

	slot.mu.Lock()
	if highPriority {
		slot.high = append(slot.high, w)
	} else {
		slot.low = append(slot.low, w)
	}
	slot.wbSize += len(w.data)
	slot.mu.Unlock()
	r.maybeWarn(id, slot)
	_ = r.epollMod(slot.fd, unix.EPOLLIN|unix.EPOLLOUT)
}

func (r *Reactor) maybeWarn(id uint32, slot *Slot) {
	slot.mu.Lock()
	size := slot.wbSize
	threshold := slot.warnThreshold
	warn := size >= wbWarnThresholdBytes && size >= threshold
	if warn {
		if threshold == 0 {
			threshold = wbWarnThresholdBytes
		} else {
			threshold *= 2
		}
		slot.warnThreshold = threshold
	}
	slot.mu.Unlock()

	if warn {
		kib := uint32(size / 1024)
		r.sendEvent(slot.owner, Event{Kind: EventWarning, ID: id, UD: kib})
		if r.bus != nil {
			_ = r.bus.Publish(context.Background(), eventbus.Event{
				Topic:       eventbus.TopicSocketWarn,
				Handle:      slot.owner,
				At:          time.Now(),
				BufferedKiB: kib,
			})
		}
	}
}

const wbWarnThresholdBytes = 1 << 20

func (r *Reactor) failSocket(id uint32, slot *Slot, err error) {
	owner := slot.owner
	if slot.fd >= 0 {
		r.epollDel(slot.fd)
		unix.Close(slot.fd)
	}
	r.table.Free(slot)
	r.sendEvent(owner, Event{Kind: EventErr, ID: id, Data: []byte(err.Error())})
}

func (r *Reactor) sendEvent(owner core.Handle, ev Event) {
	if r.dispatcher == nil || owner == core.Invalid {
		return
	}
	r.dispatcher.Send(core.Invalid, owner, core.TypeSocket, 0, ev.Encode(), dispatch.FlagDontCopy)

	if r.poolWaker != nil && r.poolWaker.AllSleeping() {
		r.poolWaker.Wake()
	}
}

// handleReady dispatches a single epoll-reported readiness event for a
// registered fd to its owning slot.
func (r *Reactor) handleReady(ev unix.EpollEvent) {
	fd := int(ev.Fd)
	slot, id, ok := r.findSlotByFd(fd)
	if !ok {
		return
	}

	if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 && slot.stateLoad() != Listen {
		if serr, errno := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); errno == nil && serr != 0 {
			r.failSocket(id, slot, unix.Errno(serr))
			return
		}
	}

	switch slot.stateLoad() {
	case Listen:
		if ev.Events&unix.EPOLLIN != 0 {
			r.acceptOne(id, slot)
		}
	case Connecting:
		if ev.Events&unix.EPOLLOUT != 0 {
			r.finishConnect(id, slot)
		}
	case Connected, HalfClose:
		if ev.Events&unix.EPOLLIN != 0 {
			if slot.protocol == ProtoTCP {
				r.readReady(id, slot)
			} else {
				r.readUDPReady(id, slot)
			}
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			r.writeReady(id, slot)
		}
	}
}

// findSlotByFd is a linear scan over the slot table; reactors with many
// thousands of live fds would want an fd→slot index, but the 2^16 slot
// table this spec fixes keeps the scan bounded and avoids a second map
// the reactor goroutine alone would need to keep in sync.
func (r *Reactor) findSlotByFd(fd int) (*Slot, uint32, bool) {
	for i := range r.table.slots {
		s := &r.table.slots[i]
		if s.stateLoad() != Invalid && s.fd == fd {
			return s, s.id, true
		}
	}
	return nil, 0, false
}

func (r *Reactor) finishConnect(id uint32, slot *Slot) {
	if serr, errno := unix.GetsockoptInt(slot.fd, unix.SOL_SOCKET, unix.SO_ERROR); errno == nil && serr != 0 {
		r.failSocket(id, slot, unix.Errno(serr))
		return
	}
	slot.stateStore(Connected)
	_ = r.epollMod(slot.fd, unix.EPOLLIN)
	r.sendEvent(slot.owner, Event{Kind: EventOpen, ID: id})
}

func (r *Reactor) readReady(id uint32, slot *Slot) {
	size := slot.readSize
	buf := make([]byte, size)
	n, err := unix.Read(slot.fd, buf)
	if n == 0 && err == nil {
		r.doClose(Command{ID: id}, true)
		return
	}
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		r.failSocket(id, slot, err)
		return
	}

	if n == size {
		slot.readSize = size * 2
	} else if n < size/2 && size > 64 {
		slot.readSize = size / 2
	}

	r.sendEvent(slot.owner, Event{Kind: EventData, ID: id, Data: buf[:n]})
}

func (r *Reactor) writeReady(id uint32, slot *Slot) {
	slot.mu.Lock()
	var w pendingWrite
	fromHigh := false
	if len(slot.high) > 0 {
		w = slot.high[0]
		fromHigh = true
	} else if len(slot.low) > 0 {
		w = slot.low[0]
	} else {
		slot.mu.Unlock()
		_ = r.epollMod(slot.fd, unix.EPOLLIN)
		if slot.stateLoad() == HalfClose {
			r.forceClose(id, slot, false)
		}
		return
	}
	slot.mu.Unlock()

	n, err := unix.Write(slot.fd, w.data)
	if err != nil && err != unix.EAGAIN {
		r.failSocket(id, slot, err)
		return
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	if n >= len(w.data) {
		slot.wbSize -= len(w.data)
		if fromHigh {
			slot.high = slot.high[1:]
		} else {
			slot.low = slot.low[1:]
		}
	} else {
		remaining := pendingWrite{data: w.data[max(n, 0):]}
		if fromHigh {
			slot.high[0] = remaining
		} else {
			// A partial low-priority write is promoted to high and the
			// drain stops here (§4.4 "if that write partially completes,
			// move it to high and stop").
			slot.low = slot.low[1:]
			slot.high = append([]pendingWrite{remaining}, slot.high...)
		}
		slot.wbSize -= n
	}

	if len(slot.high) == 0 && slot.wbSize == 0 {
		slot.warnThreshold = 0
	}
}

func (r *Reactor) replyErr(cmd Command, err error) {
	r.sendEvent(cmd.Owner, Event{Kind: EventErr, Data: []byte(err.Error())})
	if cmd.Reply != nil {
		cmd.Reply <- 0
	}
}

// Submit is the public, non-blocking entry point every socket API method
// uses to hand the reactor a command (§5 "socket commands never block
// the caller" up to the bounded-queue timeout).
func (r *Reactor) Submit(ctx context.Context, cmd Command) bool {
	return r.queue.Submit(ctx, cmd)
}
