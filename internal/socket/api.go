//go:build linux

package socket

import (
	"context"
	"net"

	"github.com/webitel/actorcore/internal/domain/core"
)

// API is the service-facing, non-blocking surface §4.4 enumerates under
// "Socket API": listen/connect/bind/start/close/shutdown/send/udp. Every
// method submits a Command and, where a new id is produced, waits on a
// Reply channel the reactor goroutine fills in — the wait is on a
// goroutine-local channel, never on the reactor's own loop, so it cannot
// deadlock the submitter against a busy reactor.
type API struct {
	r *Reactor
}

// NewAPI wraps r for service-facing calls.
func NewAPI(r *Reactor) *API { return &API{r: r} }

func (a *API) submitForID(ctx context.Context, cmd Command) uint32 {
	reply := make(chan uint32, 1)
	cmd.Reply = reply
	if !a.r.Submit(ctx, cmd) {
		return 0
	}
	select {
	case id := <-reply:
		return id
	case <-ctx.Done():
		return 0
	}
}

// Listen opens a listening TCP socket owned by owner, returning its id.
func (a *API) Listen(ctx context.Context, owner core.Handle, host string, port int) uint32 {
	return a.submitForID(ctx, Command{Type: CmdListen, Owner: owner, Host: host, Port: port})
}

// Connect starts a non-blocking TCP connect, returning the new id.
func (a *API) Connect(ctx context.Context, owner core.Handle, host string, port int) uint32 {
	return a.submitForID(ctx, Command{Type: CmdOpen, Owner: owner, Host: host, Port: port})
}

// Bind adopts an existing fd (e.g. one handed over by a supervising
// process) into the slot table.
func (a *API) Bind(ctx context.Context, owner core.Handle, fd int) uint32 {
	return a.submitForID(ctx, Command{Type: CmdBind, Owner: owner, Fd: fd})
}

// Start binds id's owner and enables readiness interest (§4.4 "start
// binds the socket's owner to the requesting service").
func (a *API) Start(ctx context.Context, owner core.Handle, id uint32) {
	a.r.Submit(ctx, Command{Type: CmdStart, Owner: owner, ID: id})
}

// Close requests id be closed once pending writes flush.
func (a *API) Close(ctx context.Context, owner core.Handle, id uint32) {
	a.r.Submit(ctx, Command{Type: CmdClose, Owner: owner, ID: id})
}

// Shutdown force-closes id immediately, discarding any pending write-
// buffer data, unlike Close which defers to HALFCLOSE until the buffer
// drains. Grounded on socket_server.c's close_socket: `if
// (request->shutdown || send_buffer_empty(s)) { force_close(...); }`,
// with socket_server_close (shutdown=0) deferring on a nonempty buffer
// and socket_server_shutdown (shutdown=1) never deferring.
func (a *API) Shutdown(ctx context.Context, owner core.Handle, id uint32) {
	a.r.Submit(ctx, Command{Type: CmdClose, Owner: owner, ID: id, Shutdown: true})
}

// Send queues buf on id's high-priority list.
func (a *API) Send(ctx context.Context, owner core.Handle, id uint32, buf []byte) {
	a.r.Submit(ctx, Command{Type: CmdSendHigh, Owner: owner, ID: id, Data: buf})
}

// SendLowPriority queues buf on id's low-priority list.
func (a *API) SendLowPriority(ctx context.Context, owner core.Handle, id uint32, buf []byte) {
	a.r.Submit(ctx, Command{Type: CmdSendLow, Owner: owner, ID: id, Data: buf})
}

// Nodelay sets TCP_NODELAY on id's fd.
func (a *API) Nodelay(ctx context.Context, owner core.Handle, id uint32) {
	a.r.Submit(ctx, Command{Type: CmdSetopt, Owner: owner, ID: id})
}

// UDP opens a UDP socket bound to addr:port (addr may be empty for any
// interface), returning its id.
func (a *API) UDP(ctx context.Context, owner core.Handle, addr string, port int) uint32 {
	return a.submitForID(ctx, Command{Type: CmdUDPOpen, Owner: owner, Host: addr, Port: port})
}

// UDPSend sends buf to addr over id, overriding any default peer for
// this datagram only. A nil addr sends to the default peer set by
// UDPConnect.
func (a *API) UDPSend(ctx context.Context, owner core.Handle, id uint32, addr *net.UDPAddr, buf []byte) {
	var dest *udpDest
	if addr != nil {
		dest = newUDPDest(addr)
	}
	a.r.Submit(ctx, Command{Type: CmdSendUDP, Owner: owner, ID: id, Data: buf, Dest: dest})
}

// UDPConnect fixes id's default destination so future unaddressed
// UDPSend calls need not repeat it.
func (a *API) UDPConnect(ctx context.Context, owner core.Handle, id uint32, addr *net.UDPAddr) {
	a.r.Submit(ctx, Command{Type: CmdSetUDPPeer, Owner: owner, ID: id, Dest: newUDPDest(addr)})
}
