package session

import (
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arzzra/whipcast/pkg/rtc"
)

// fakeMachine машина состояний с заранее заданным выводом
type fakeMachine struct {
	mu      sync.Mutex
	outputs []rtc.Output
	inputs  []rtc.Input
	polls   int
	notify  chan struct{}

	pollErr  error
	inputErr error

	codecs  []rtc.CodecParams
	writers map[rtc.Mid]*fakeWriter
	mids    []rtc.Mid

	answer     string
	offers     int
	answers    int
	nextOffer  uint64
	closed     bool
	candidates []rtc.Candidate
}

func newFakeMachine(outputs ...rtc.Output) *fakeMachine {
	return &fakeMachine{
		outputs: outputs,
		notify:  make(chan struct{}, 1),
		writers: make(map[rtc.Mid]*fakeWriter),
		answer:  "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n",
	}
}

func (m *fakeMachine) AddLocalCandidate(c rtc.Candidate) error {
	m.candidates = append(m.candidates, c)
	return nil
}

func (m *fakeMachine) AddMedia(kind rtc.MediaKind, dir rtc.Direction, streamID, trackID string) (rtc.Offer, *rtc.PendingOffer, error) {
	m.offers++
	m.nextOffer++
	return rtc.Offer{SDP: "v=0\r\n"}, rtc.NewPendingOffer(m.nextOffer, "0"), nil
}

func (m *fakeMachine) AcceptAnswer(p *rtc.PendingOffer, answer string) error {
	m.answers++
	return nil
}

func (m *fakeMachine) AcceptOffer(offer string) (string, error) {
	return m.answer, nil
}

func (m *fakeMachine) PollOutput() (rtc.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++

	if m.pollErr != nil {
		return rtc.Output{}, m.pollErr
	}
	if len(m.outputs) == 0 {
		return rtc.TimeoutOutput(time.Now().Add(time.Hour)), nil
	}
	out := m.outputs[0]
	m.outputs = m.outputs[1:]
	return out, nil
}

func (m *fakeMachine) HandleInput(in rtc.Input) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, in)
	return m.inputErr
}

func (m *fakeMachine) Notify() <-chan struct{} { return m.notify }

func (m *fakeMachine) Codecs() []rtc.CodecParams { return m.codecs }

func (m *fakeMachine) Writer(mid rtc.Mid) (rtc.MediaWriter, bool) {
	w, ok := m.writers[mid]
	if !ok {
		return nil, false
	}
	return w, true
}

func (m *fakeMachine) Mids() []rtc.Mid { return m.mids }

func (m *fakeMachine) Close() error {
	m.closed = true
	return nil
}

func (m *fakeMachine) pollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

func (m *fakeMachine) recorded() []rtc.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rtc.Input(nil), m.inputs...)
}

type writeCall struct {
	pt      uint8
	rtpTime uint32
	data    []byte
}

type fakeWriter struct {
	calls []writeCall
	err   error
}

func (w *fakeWriter) Write(pt uint8, _ time.Time, rtpTime uint32, data []byte) error {
	w.calls = append(w.calls, writeCall{pt: pt, rtpTime: rtpTime, data: data})
	return w.err
}

// newTestSession сессия поверх loopback сокета и фейковой машины состояний
func newTestSession(t *testing.T, sm rtc.StateMachine) *Session {
	t.Helper()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	local := conn.LocalAddr().(*net.UDPAddr)
	s := newSession(DefaultConfig(), sm, conn, local, slog.Default())
	t.Cleanup(func() { _ = s.Close() })
	return s
}
