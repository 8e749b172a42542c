package kabi

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PrepareStream sets the options that must be in place before a TCP connect.
func PrepareStream(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RXQ_OVFL, 1); err != nil {
		return fmt.Errorf("setsockopt: SO_RXQ_OVFL: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return fmt.Errorf("setsockopt: TCP_NODELAY: %w", err)
	}
	return nil
}

// EnableStreamTimestamping turns on timestamp reporting for a connected TCP socket.
// OPT_ID only takes effect on a connected socket.
func EnableStreamTimestamping(fd int) error {
	return enableTimestamping(fd, StreamTimestamping)
}

// EnableDatagramTimestamping turns on receive timestamp reporting for a UDP socket.
func EnableDatagramTimestamping(fd int) error {
	return enableTimestamping(fd, DatagramTimestamping)
}

func enableTimestamping(fd int, flags int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPNS, 1); err != nil {
		return fmt.Errorf("setsockopt: SO_TIMESTAMPNS: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPING, flags); err != nil {
		return fmt.Errorf("setsockopt: SO_TIMESTAMPING: %w", err)
	}
	return nil
}
