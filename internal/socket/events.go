/*
Package socket implements the single-threaded reactor described in §4.4:
a readiness-polling descriptor (epoll on Linux) plus a command channel
standing in for the self-pipe, a fixed socket-slot table with the
INVALID→RESERVE→{...}→INVALID state machine, and the TCP/UDP read/write
policy (adaptive buffer sizing, high/low priority write lists, warning
hysteresis).

Grounded on golang.org/x/sys/unix's epoll primitives directly (the
teacher repo's socket usage — jroosing-HydraDNS/internal/server —
touches unix only for SO_REUSEPORT, so the reactor loop itself follows
the spec's own state machine rather than a teacher file), and on the
same command-then-wake shape the examples use for cross-goroutine
signaling. The self-pipe becomes a bounded Go channel of typed Command
values — channels already give the thread-safe queue a byte-stream
self-pipe exists to emulate — backed by a real unix self-pipe used only
to break epoll_wait out of a blocking poll (§9's open question on
command-pipe backpressure, resolved in SPEC_FULL.md as "queue in
userspace with bounded capacity and a drop-after-timeout policy").
*/
package socket

import (
	"encoding/binary"
	"net"
)

// EventKind distinguishes the reactor→service message kinds (§4.4
// "Socket event messages").
type EventKind byte

const (
	EventOpen EventKind = iota
	EventClose
	EventAccept
	EventErr
	EventExit
	EventData
	EventUDP
	EventWarning
)

// Event is the decoded payload of a PTYPE_SOCKET message (core.TypeSocket).
// Encode/Decode give it the wire shape the handler-facing API exchanges:
// a small fixed header (kind, socket id) plus a kind-specific body.
type Event struct {
	Kind EventKind
	ID   uint32
	// UD carries ACCEPT's new slot id, WARNING's buffered KiB count, or 0.
	UD   uint32
	Data []byte
}

// Encode serializes ev the way the reactor hands it to the dispatcher:
// 1 byte kind, 4 bytes id, 4 bytes ud, remaining bytes are the body.
func (ev Event) Encode() []byte {
	out := make([]byte, 9+len(ev.Data))
	out[0] = byte(ev.Kind)
	binary.BigEndian.PutUint32(out[1:5], ev.ID)
	binary.BigEndian.PutUint32(out[5:9], ev.UD)
	copy(out[9:], ev.Data)
	return out
}

// DecodeEvent is the inverse of Encode, used by service handlers and
// tests that want to inspect a PTYPE_SOCKET message's contents.
func DecodeEvent(data []byte) (Event, bool) {
	if len(data) < 9 {
		return Event{}, false
	}
	return Event{
		Kind: EventKind(data[0]),
		ID:   binary.BigEndian.Uint32(data[1:5]),
		UD:   binary.BigEndian.Uint32(data[5:9]),
		Data: data[9:],
	}, true
}

// encodeUDPTrailer appends the address suffix §4.4 describes for UDP
// reads: a family tag byte, the port (big-endian uint16), then 4 or 16
// address bytes.
func encodeUDPTrailer(payload []byte, addr *net.UDPAddr) []byte {
	ip4 := addr.IP.To4()
	var tag byte
	var ipBytes []byte
	if ip4 != nil {
		tag = 1
		ipBytes = ip4
	} else {
		tag = 2
		ipBytes = addr.IP.To16()
	}

	out := make([]byte, len(payload)+3+len(ipBytes))
	n := copy(out, payload)
	out[n] = tag
	binary.BigEndian.PutUint16(out[n+1:n+3], uint16(addr.Port))
	copy(out[n+3:], ipBytes)
	return out
}
