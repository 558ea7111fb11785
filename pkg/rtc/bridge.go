package rtc

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/deadline"
)

// bridgeInboundSize емкость очереди входящих датаграмм одного кандидата
const bridgeInboundSize = 512

type datagram struct {
	data []byte
	src  net.Addr
}

// bridgeConn виртуальный net.PacketConn для одного host кандидата.
//
// pion читает из него датаграммы, переданные через HandleInput, а все записи
// превращаются в Transmit вывод машины состояний. Реальный сокет остается у сессии.
type bridgeConn struct {
	local   *net.UDPAddr
	inbound chan datagram
	emit    func(*Transmit)

	readDeadline *deadline.Deadline
	closed       chan struct{}
	closeOnce    sync.Once
}

func newBridgeConn(local *net.UDPAddr, emit func(*Transmit)) *bridgeConn {
	return &bridgeConn{
		local:        local,
		inbound:      make(chan datagram, bridgeInboundSize),
		emit:         emit,
		readDeadline: deadline.New(),
		closed:       make(chan struct{}),
	}
}

// deliver кладет датаграмму во входящую очередь, false если очередь переполнена
func (c *bridgeConn) deliver(data []byte, src net.Addr) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.inbound <- datagram{data: data, src: src}:
		return true
	default:
		return false
	}
}

func (c *bridgeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case dg := <-c.inbound:
		n := copy(p, dg.data)
		return n, dg.src, nil
	case <-c.readDeadline.Done():
		return 0, nil, errBridgeTimeout{}
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *bridgeConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}

	contents := make([]byte, len(p))
	copy(contents, p)
	c.emit(&Transmit{
		Proto:       ProtocolUDP,
		Source:      c.local,
		Destination: addr,
		Contents:    contents,
	})
	return len(p), nil
}

func (c *bridgeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *bridgeConn) LocalAddr() net.Addr {
	return c.local
}

func (c *bridgeConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *bridgeConn) SetReadDeadline(t time.Time) error {
	c.readDeadline.Set(t)
	return nil
}

func (c *bridgeConn) SetWriteDeadline(time.Time) error {
	return nil
}

// errBridgeTimeout истечение дедлайна чтения, распознается через os.IsTimeout
type errBridgeTimeout struct{}

func (errBridgeTimeout) Error() string   { return "i/o timeout" }
func (errBridgeTimeout) Timeout() bool   { return true }
func (errBridgeTimeout) Temporary() bool { return true }
