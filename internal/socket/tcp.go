//go:build linux

package socket

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// tcpListenFd creates a non-blocking, listening TCP socket bound to
// laddr, backing §4.4's `listen` API without going through net.Listener
// (the reactor needs the raw fd to register with epoll).
func tcpListenFd(laddr *net.TCPAddr) (int, error) {
	domain := unix.AF_INET
	if laddr.IP != nil && laddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}

	sa, err := sockaddrFromTCPAddr(laddr)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// tcpConnectFd starts a non-blocking connect, reporting whether it
// completed synchronously (loopback frequently does) or is in progress
// (EINPROGRESS), in which case the reactor waits for writable. ip is
// resolved by the caller (Reactor.resolveHost) before getting here.
func tcpConnectFd(ip net.IP, port int) (fd int, connected bool, err error) {
	raddr := &net.TCPAddr{IP: ip, Port: port}

	domain := unix.AF_INET
	if raddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, false, err
	}

	sa, err := sockaddrFromTCPAddr(raddr)
	if err != nil {
		unix.Close(fd)
		return -1, false, err
	}

	if err := unix.Connect(fd, sa); err != nil {
		if err == unix.EINPROGRESS {
			return fd, false, nil
		}
		unix.Close(fd)
		return -1, false, err
	}
	return fd, true, nil
}

// unixGetsockname reads back the address a listening fd was bound to,
// needed in tests where `listen` was asked for an ephemeral port (0).
func unixGetsockname(fd int) (string, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return "", err
	}
	return formatSockaddr(sa), nil
}

func sockaddrFromTCPAddr(a *net.TCPAddr) (unix.Sockaddr, error) {
	if ip4 := a.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	return sa, nil
}

// acceptOne drains a single pending connection from a LISTEN slot,
// placing the new connection in PACCEPT until the owning service issues
// `start` (§4.4 "PLISTEN and PACCEPT exist so the reactor can prepare a
// socket without yet delivering events").
func (r *Reactor) acceptOne(listenID uint32, listenSlot *Slot) {
	fd, sa, err := unix.Accept4(listenSlot.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		return
	}

	id, slot := r.table.Alloc()
	slot.mu.Lock()
	slot.fd = fd
	slot.protocol = ProtoTCP
	slot.owner = listenSlot.owner
	slot.mu.Unlock()
	slot.stateStore(PAccept)
	_ = r.epollAdd(fd, unix.EPOLLIN)

	addr := formatSockaddr(sa)
	r.sendEvent(listenSlot.owner, Event{Kind: EventAccept, ID: listenID, UD: id, Data: []byte(addr)})
}

func formatSockaddr(sa unix.Sockaddr) string {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	default:
		return ""
	}
}
