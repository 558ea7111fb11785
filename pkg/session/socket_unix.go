//go:build linux || darwin || freebsd

package session

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func setSockOptBuffers(fd uintptr, recv, send int) error {
	if recv > 0 {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, recv); err != nil {
			return fmt.Errorf("SO_RCVBUF (%d): %w", recv, err)
		}
	}
	if send > 0 {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, send); err != nil {
			return fmt.Errorf("SO_SNDBUF (%d): %w", send, err)
		}
	}
	return nil
}

// setSockOptDSCP DSCP занимает старшие 6 бит TOS
func setSockOptDSCP(fd uintptr, dscp int) error {
	if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, dscp<<2); err != nil {
		return fmt.Errorf("IP_TOS (dscp %d): %w", dscp, err)
	}
	return nil
}

func isConnReset(err error) bool {
	return errors.Is(err, unix.ECONNRESET) || errors.Is(err, unix.ECONNREFUSED)
}
