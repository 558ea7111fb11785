package session

import (
	"fmt"
	"net"
)

const (
	// DefaultSocketBuffer размер буферов сокета для видео
	DefaultSocketBuffer = 1 << 20

	// DSCPAssuredForwarding AF41 для потокового видео (RFC 4594)
	DSCPAssuredForwarding = 34
)

// SocketConfig системные параметры UDP сокета сессии
type SocketConfig struct {
	RecvBuffer int
	SendBuffer int
	// DSCP маркировка, 0 отключает
	DSCP int
}

// DefaultSocketConfig возвращает параметры сокета для видео
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		RecvBuffer: DefaultSocketBuffer,
		SendBuffer: DefaultSocketBuffer,
		DSCP:       DSCPAssuredForwarding,
	}
}

// Validate проверяет параметры сокета
func (c SocketConfig) Validate() error {
	if c.RecvBuffer < 0 || c.SendBuffer < 0 {
		return fmt.Errorf("размер буфера не может быть отрицательным")
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("DSCP должен быть в диапазоне 0-63")
	}
	return nil
}

// applySocketOptions настраивает буферы и QoS сокета
func applySocketOptions(conn *net.UDPConn, cfg SocketConfig) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("не удалось получить системный сокет: %w", err)
	}

	var optErr error
	err = raw.Control(func(fd uintptr) {
		if e := setSockOptBuffers(fd, cfg.RecvBuffer, cfg.SendBuffer); e != nil {
			optErr = fmt.Errorf("ошибка установки буферов: %w", e)
			return
		}
		if cfg.DSCP > 0 {
			if e := setSockOptDSCP(fd, cfg.DSCP); e != nil {
				optErr = fmt.Errorf("ошибка установки DSCP: %w", e)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("ошибка управления сокетом: %w", err)
	}
	return optErr
}
