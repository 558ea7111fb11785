//go:build linux || darwin || freebsd

package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// errConn сокет, чтение из которого возвращает заданные ошибки, затем ждет закрытия
type errConn struct {
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newErrConn(errs ...error) *errConn {
	c := &errConn{
		errs:   make(chan error, len(errs)),
		closed: make(chan struct{}),
	}
	for _, err := range errs {
		c.errs <- err
	}
	return c
}

func (c *errConn) ReadFrom([]byte) (int, net.Addr, error) {
	select {
	case err := <-c.errs:
		return 0, nil, err
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *errConn) WriteTo(b []byte, _ net.Addr) (int, error) { return len(b), nil }

func (c *errConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *errConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
}

func (c *errConn) SetDeadline(time.Time) error      { return nil }
func (c *errConn) SetReadDeadline(time.Time) error  { return nil }
func (c *errConn) SetWriteDeadline(time.Time) error { return nil }

func readError(errno unix.Errno) error {
	return &net.OpError{Op: "read", Net: "udp", Err: os.NewSyscallError("recvfrom", errno)}
}

func TestDriveConnectionResetContinues(t *testing.T) {
	tests := []struct {
		name  string
		errno unix.Errno
	}{
		{"ECONNRESET", unix.ECONNRESET},
		{"ECONNREFUSED", unix.ECONNREFUSED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newErrConn(readError(tt.errno), readError(tt.errno))
			local := conn.LocalAddr().(*net.UDPAddr)
			s := newSession(DefaultConfig(), newFakeMachine(), conn, local, nil)
			t.Cleanup(func() { _ = s.Close() })

			// сессия переживает повторные сбросы
			for i := 0; i < 2; i++ {
				ev, err := s.Drive(context.Background())
				require.NoError(t, err)
				assert.Equal(t, EventContinue, ev.Kind)
			}
		})
	}
}

func TestIsConnReset(t *testing.T) {
	assert.True(t, isConnReset(readError(unix.ECONNRESET)))
	assert.True(t, isConnReset(fmt.Errorf("обертка: %w", readError(unix.ECONNREFUSED))))
	assert.False(t, isConnReset(readError(unix.EBADF)))
	assert.False(t, isConnReset(net.ErrClosed))
}

func TestSetSockOptDSCPError(t *testing.T) {
	// несуществующий дескриптор
	err := setSockOptDSCP(^uintptr(0), 34)
	assert.ErrorIs(t, err, unix.EBADF)
}

func TestApplySocketOptions(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, applySocketOptions(conn, SocketConfig{RecvBuffer: 1 << 16, SendBuffer: 1 << 16}))
}
