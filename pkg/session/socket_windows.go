//go:build windows

package session

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

func setSockOptBuffers(fd uintptr, recv, send int) error {
	h := windows.Handle(fd)
	if recv > 0 {
		if err := windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_RCVBUF, recv); err != nil {
			return fmt.Errorf("SO_RCVBUF (%d): %w", recv, err)
		}
	}
	if send > 0 {
		if err := windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_SNDBUF, send); err != nil {
			return fmt.Errorf("SO_SNDBUF (%d): %w", send, err)
		}
	}
	return nil
}

// setSockOptDSCP Windows игнорирует IP_TOS без QoS политики, маркировку не ставим
func setSockOptDSCP(uintptr, int) error {
	return nil
}

// isConnReset ICMP port unreachable на Windows приходит как WSAECONNRESET при чтении
func isConnReset(err error) bool {
	return errors.Is(err, windows.WSAECONNRESET) || errors.Is(err, windows.WSAECONNREFUSED)
}
