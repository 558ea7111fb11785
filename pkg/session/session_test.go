package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/whipcast/pkg/rtc"
)

func TestDriveDisconnectedOnce(t *testing.T) {
	sm := newFakeMachine(
		rtc.EventOutput(rtc.ConnectedEvent{}),
		rtc.EventOutput(rtc.IceStateEvent{State: rtc.IceDisconnected}),
		rtc.EventOutput(rtc.ConnectedEvent{}),
	)
	s := newTestSession(t, sm)
	ctx := context.Background()

	ev, err := s.Drive(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventContinue, ev.Kind)

	ev, err = s.Drive(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventDisconnected, ev.Kind)
	assert.Equal(t, StateDisconnected, s.State())

	polls := sm.pollCount()
	_, err = s.Drive(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, rtc.ErrStateMachine)
	assert.Equal(t, polls, sm.pollCount(), "после Disconnected события не обрабатываются")
}

func TestDriveTerminalIceStates(t *testing.T) {
	tests := []struct {
		name  string
		state rtc.IceConnectionState
		want  EventKind
	}{
		{"disconnected", rtc.IceDisconnected, EventDisconnected},
		{"failed", rtc.IceFailed, EventDisconnected},
		{"closed", rtc.IceClosed, EventDisconnected},
		{"checking", rtc.IceChecking, EventContinue},
		{"connected", rtc.IceConnected, EventContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, newFakeMachine(rtc.EventOutput(rtc.IceStateEvent{State: tt.state})))
			ev, err := s.Drive(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Kind)
		})
	}
}

func TestDriveEventClassification(t *testing.T) {
	data := &rtc.MediaData{Mid: "0", Data: []byte{0, 0, 0, 1, 0x65}}
	sm := newFakeMachine(
		rtc.EventOutput(rtc.MediaAddedEvent{Mid: "0", Kind: rtc.MediaKindVideo, Direction: rtc.DirectionRecvOnly}),
		rtc.EventOutput(rtc.PeerStats{BytesRx: 10}),
		rtc.EventOutput(rtc.MediaIngressStats{Mid: "0"}),
		rtc.EventOutput(rtc.MediaEgressStats{Mid: "0"}),
		rtc.EventOutput(rtc.MediaDataEvent{Data: data}),
	)
	s := newTestSession(t, sm)

	for i := 0; i < 4; i++ {
		ev, err := s.Drive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, EventContinue, ev.Kind)
	}

	ev, err := s.Drive(context.Background())
	require.NoError(t, err)
	require.Equal(t, EventMedia, ev.Kind)
	assert.Same(t, data, ev.Media)
}

func TestDriveExpiredTimeout(t *testing.T) {
	sm := newFakeMachine(rtc.TimeoutOutput(time.Now().Add(-time.Millisecond)))
	s := newTestSession(t, sm)

	ev, err := s.Drive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventContinue, ev.Kind)

	inputs := sm.recorded()
	require.Len(t, inputs, 1)
	assert.Equal(t, rtc.InputTimeout, inputs[0].Kind)
}

func TestDriveTimerElapses(t *testing.T) {
	sm := newFakeMachine(rtc.TimeoutOutput(time.Now().Add(20 * time.Millisecond)))
	s := newTestSession(t, sm)

	start := time.Now()
	ev, err := s.Drive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventContinue, ev.Kind)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	inputs := sm.recorded()
	require.Len(t, inputs, 1)
	assert.Equal(t, rtc.InputTimeout, inputs[0].Kind)
}

func TestDriveReceivesDatagram(t *testing.T) {
	sm := newFakeMachine()
	s := newTestSession(t, sm)

	peer, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer peer.Close()

	_, err = peer.WriteTo([]byte("stun"), s.LocalAddr())
	require.NoError(t, err)

	ev, err := s.Drive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventContinue, ev.Kind)

	inputs := sm.recorded()
	require.Len(t, inputs, 1)
	in := inputs[0]
	require.Equal(t, rtc.InputReceive, in.Kind)
	assert.Equal(t, []byte("stun"), in.Receive.Contents)
	assert.Equal(t, peer.LocalAddr().String(), in.Receive.Source.String())
	assert.Equal(t, s.local, in.Receive.Destination)
	assert.False(t, in.Now.IsZero())
}

func TestDriveTransmit(t *testing.T) {
	peer, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer peer.Close()

	sm := newFakeMachine(
		rtc.TransmitOutput(&rtc.Transmit{Proto: rtc.ProtocolUDP, Destination: peer.LocalAddr(), Contents: []byte("hello")}),
		// ошибка отправки не фатальна
		rtc.TransmitOutput(&rtc.Transmit{Proto: rtc.ProtocolUDP, Destination: &net.UnixAddr{Name: "bad", Net: "unix"}, Contents: []byte("x")}),
	)
	s := newTestSession(t, sm)

	ev, err := s.Drive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventContinue, ev.Kind)

	buf := make([]byte, 64)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(time.Second)))
	n, _, err := peer.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	ev, err = s.Drive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventContinue, ev.Kind)
}

func TestDriveNotify(t *testing.T) {
	sm := newFakeMachine()
	s := newTestSession(t, sm)

	sm.notify <- struct{}{}
	ev, err := s.Drive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventContinue, ev.Kind)
	assert.Empty(t, sm.recorded())
}

func TestDriveContextCanceled(t *testing.T) {
	s := newTestSession(t, newFakeMachine())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Drive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDriveStateMachineErrors(t *testing.T) {
	t.Run("ошибка опроса", func(t *testing.T) {
		sm := newFakeMachine()
		sm.pollErr = errors.New("broken")
		s := newTestSession(t, sm)

		_, err := s.Drive(context.Background())
		assert.ErrorIs(t, err, rtc.ErrStateMachine)
	})

	t.Run("ошибка обработки таймаута", func(t *testing.T) {
		sm := newFakeMachine(rtc.TimeoutOutput(time.Now().Add(-time.Second)))
		sm.inputErr = errors.New("broken")
		s := newTestSession(t, sm)

		_, err := s.Drive(context.Background())
		assert.ErrorIs(t, err, rtc.ErrStateMachine)
	})
}

func TestDriveTransportError(t *testing.T) {
	sm := newFakeMachine()
	s := newTestSession(t, sm)

	// закрытый сокет дает фатальную ошибку чтения
	require.NoError(t, s.conn.Close())

	_, err := s.Drive(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, rtc.ErrTransport)
}
