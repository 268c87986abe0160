//go:build linux

package socket

import (
	"net"

	"golang.org/x/sys/unix"
)

const udpScratchSize = 65536

// doUDPOpen implements the `udp` API: bind a non-blocking UDP socket
// (ephemeral port if addr/port are empty) and register it for read
// readiness immediately — UDP sockets skip PLISTEN/PACCEPT since there is
// no accept handshake.
func (r *Reactor) doUDPOpen(cmd Command) {
	domain := unix.AF_INET
	proto := ProtoUDPv4
	if cmd.Host != "" && net.ParseIP(cmd.Host).To4() == nil {
		domain = unix.AF_INET6
		proto = ProtoUDPv6
	}

	fd, err := unix.Socket(domain, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		r.replyErr(cmd, err)
		return
	}

	sa := udpBindSockaddr(domain, cmd.Host, cmd.Port)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		r.replyErr(cmd, err)
		return
	}

	id, slot := r.table.Alloc()
	slot.mu.Lock()
	slot.fd = fd
	slot.protocol = proto
	slot.owner = cmd.Owner
	slot.mu.Unlock()
	slot.stateStore(Connected)
	_ = r.epollAdd(fd, unix.EPOLLIN)

	if cmd.Reply != nil {
		cmd.Reply <- id
	}
}

func udpBindSockaddr(domain int, host string, port int) unix.Sockaddr {
	ip := net.ParseIP(host)
	if domain == unix.AF_INET6 {
		sa := &unix.SockaddrInet6{Port: port}
		if ip != nil {
			copy(sa.Addr[:], ip.To16())
		}
		return sa
	}
	sa := &unix.SockaddrInet4{Port: port}
	if ip != nil {
		copy(sa.Addr[:], ip.To4())
	}
	return sa
}

// doSendUDP sends cmd.Data to cmd.Dest (one-shot destination override) or
// the slot's default peer set by udp_connect/set-udp-peer.
func (r *Reactor) doSendUDP(cmd Command) {
	slot, ok := r.table.Get(cmd.ID)
	if !ok {
		return
	}

	dest := cmd.Dest
	if dest == nil {
		slot.mu.Lock()
		dest = slot.udpDefault
		slot.mu.Unlock()
	}
	if dest == nil {
		return
	}

	sa := udpDestSockaddr(dest)
	if err := unix.Sendto(slot.fd, cmd.Data, 0, sa); err != nil && err != unix.EAGAIN {
		r.failSocket(cmd.ID, slot, err)
	}
}

// doSetUDPPeer implements `udp_connect`/set-udp-peer: subsequent
// unaddressed sends go to this default destination.
func (r *Reactor) doSetUDPPeer(cmd Command) {
	slot, ok := r.table.Get(cmd.ID)
	if !ok {
		return
	}
	slot.mu.Lock()
	slot.udpDefault = cmd.Dest
	slot.mu.Unlock()
}

func udpDestSockaddr(d *udpDest) unix.Sockaddr {
	if d.isV4 {
		sa := &unix.SockaddrInet4{Port: int(d.port)}
		copy(sa.Addr[:], d.ip[:4])
		return sa
	}
	sa := &unix.SockaddrInet6{Port: int(d.port)}
	copy(sa.Addr[:], d.ip[:])
	return sa
}

func newUDPDest(addr *net.UDPAddr) *udpDest {
	d := &udpDest{port: uint16(addr.Port)}
	if ip4 := addr.IP.To4(); ip4 != nil {
		d.isV4 = true
		copy(d.ip[:], ip4)
	} else {
		copy(d.ip[:], addr.IP.To16())
	}
	return d
}

// readUDPReady services a readable UDP slot: recvfrom into a fixed 64K
// scratch buffer, then append the address trailer §4.4 describes so the
// owning service can reply without a separate lookup.
func (r *Reactor) readUDPReady(id uint32, slot *Slot) {
	scratch := make([]byte, udpScratchSize)
	n, from, err := unix.Recvfrom(slot.fd, scratch, 0)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		r.failSocket(id, slot, err)
		return
	}

	addr := sockaddrToUDPAddr(from)
	payload := encodeUDPTrailer(scratch[:n], addr)
	r.sendEvent(slot.owner, Event{Kind: EventUDP, ID: id, Data: payload})
}

func sockaddrToUDPAddr(sa unix.Sockaddr) *net.UDPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.UDPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return &net.UDPAddr{}
	}
}
