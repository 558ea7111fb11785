package session

import (
	"errors"
	"net"
	"sync"
	"time"
)

const (
	// receiveBufferSize фиксированный буфер чтения, одна Ethernet MTU
	receiveBufferSize = 1500

	// readerQueueSize емкость канала между читателем сокета и drive
	readerQueueSize = 64
)

type datagram struct {
	at   time.Time
	src  net.Addr
	data []byte
	err  error
}

// socketReader читает сокет в отдельной горутине и отдает датаграммы в drive.
// Сокет в Go нельзя опросить вместе с таймером в одном select без горутины.
type socketReader struct {
	conn net.PacketConn
	out  chan datagram
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newSocketReader(conn net.PacketConn) *socketReader {
	r := &socketReader{
		conn: conn,
		out:  make(chan datagram, readerQueueSize),
		done: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *socketReader) run() {
	defer r.wg.Done()

	buf := make([]byte, receiveBufferSize)
	for {
		n, src, err := r.conn.ReadFrom(buf)
		dg := datagram{at: time.Now(), src: src, err: err}
		if err == nil {
			dg.data = make([]byte, n)
			copy(dg.data, buf[:n])
		}

		select {
		case r.out <- dg:
		case <-r.done:
			return
		}

		if err != nil && !isConnReset(err) {
			return
		}
	}
}

// C канал принятых датаграмм и ошибок чтения
func (r *socketReader) C() <-chan datagram {
	return r.out
}

// stop ждет завершения горутины, сокет должен быть уже закрыт
func (r *socketReader) stop() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
