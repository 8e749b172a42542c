package driver

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/mrzor/sockstamp/internal/kabi"

	"golang.org/x/sys/unix"
)

// Conn is a raw socket descriptor. The descriptor stays in blocking mode; every
// call in the measurement loop passes MSG_DONTWAIT instead.
type Conn struct {
	fd int
}

// Fd returns the descriptor.
func (c *Conn) Fd() int {
	return c.fd
}

// Send writes p with MSG_DONTWAIT.
func (c *Conn) Send(p []byte) (int, error) {
	return unix.SendmsgN(c.fd, p, nil, nil, unix.MSG_DONTWAIT)
}

// Recv reads data and control messages with MSG_DONTWAIT.
func (c *Conn) Recv(p, oob []byte) (n, oobn, flags int, err error) {
	n, oobn, flags, _, err = unix.Recvmsg(c.fd, p, oob, unix.MSG_DONTWAIT)
	return n, oobn, flags, err
}

// RecvErrQueue reads one error-queue message with MSG_DONTWAIT.
func (c *Conn) RecvErrQueue(oob []byte) (oobn, flags int, err error) {
	_, oobn, flags, _, err = unix.Recvmsg(c.fd, nil, oob, unix.MSG_ERRQUEUE|unix.MSG_DONTWAIT)
	return oobn, flags, err
}

// Close releases the descriptor.
func (c *Conn) Close() error {
	if err := unix.Close(c.fd); err != nil {
		return fmt.Errorf("close: socket: %w", err)
	}
	return nil
}

// DialStream connects a TCP socket to addr with timestamping enabled.
func DialStream(addr netip.AddrPort) (*Conn, error) {
	family, sa := sockaddr(addr)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: tcp: %w", err)
	}
	c := &Conn{fd: fd}

	if err := kabi.PrepareStream(fd); err != nil {
		return nil, c.closeErrorf(err)
	}
	if err := unix.Connect(fd, sa); err != nil {
		return nil, c.closeErrorf(fmt.Errorf("connect: tcp %s: %w", addr, err))
	}
	if err := kabi.EnableStreamTimestamping(fd); err != nil {
		return nil, c.closeErrorf(err)
	}
	return c, nil
}

// ListenDatagram binds a UDP socket to addr with timestamping enabled.
func ListenDatagram(addr netip.AddrPort) (*Conn, error) {
	family, sa := sockaddr(addr)
	fd, err := unix.Socket(family, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: udp: %w", err)
	}
	c := &Conn{fd: fd}

	if err := kabi.EnableDatagramTimestamping(fd); err != nil {
		return nil, c.closeErrorf(err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return nil, c.closeErrorf(fmt.Errorf("bind: udp %s: %w", addr, err))
	}
	return c, nil
}

// LocalAddr returns the bound address, useful after binding port 0.
func (c *Conn) LocalAddr() (netip.AddrPort, error) {
	sa, err := unix.Getsockname(c.fd)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("getsockname: %w", err)
	}
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		//nolint:gosec // ports fit in uint16
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)), nil
	case *unix.SockaddrInet6:
		//nolint:gosec // ports fit in uint16
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port)), nil
	}
	return netip.AddrPort{}, fmt.Errorf("getsockname: unsupported address %T", sa)
}

// closeErrorf closes the descriptor on a setup failure and returns err.
func (c *Conn) closeErrorf(err error) error {
	if closeErr := c.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

func sockaddr(addr netip.AddrPort) (int, unix.Sockaddr) {
	if addr.Addr().Is4() || addr.Addr().Is4In6() {
		return unix.AF_INET, &unix.SockaddrInet4{Port: int(addr.Port()), Addr: addr.Addr().Unmap().As4()}
	}
	return unix.AF_INET6, &unix.SockaddrInet6{Port: int(addr.Port()), Addr: addr.Addr().As16()}
}
