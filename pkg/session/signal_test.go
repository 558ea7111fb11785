package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/whipcast/pkg/rtc"
)

type fakeExchanger struct {
	answer   string
	err      error
	calls    int
	lastURL  string
	lastTok  string
	lastBody string
}

func (f *fakeExchanger) Exchange(_ context.Context, endpoint, token, offer string) (string, string, error) {
	f.calls++
	f.lastURL, f.lastTok, f.lastBody = endpoint, token, offer
	if f.err != nil {
		return "", "", f.err
	}
	return f.answer, endpoint + "/resource", nil
}

const videoOffer = "v=0\r\n" +
	"o=- 1 1 IN IP4 0.0.0.0\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 102\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:v0\r\n" +
	"a=sendonly\r\n" +
	"a=rtpmap:102 H264/90000\r\n"

func TestSendOffer(t *testing.T) {
	sm := newFakeMachine()
	s := newTestSession(t, sm)
	assert.Equal(t, StateGathering, s.State())
	assert.Empty(t, s.VideoMid())

	ex := &fakeExchanger{answer: sm.answer}
	resource, err := s.SendOffer(context.Background(), ex, "http://example.com/whip", "tok", rtc.DirectionSendOnly)
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/whip/resource", resource)
	assert.Equal(t, "tok", ex.lastTok)
	assert.Equal(t, "v=0\r\n", ex.lastBody)
	assert.Equal(t, rtc.Mid("0"), s.VideoMid())
	assert.Equal(t, StateNegotiated, s.State())
	assert.Equal(t, 1, sm.answers)

	t.Run("второй offer отклоняется", func(t *testing.T) {
		_, err := s.SendOffer(context.Background(), ex, "http://example.com/whip", "", rtc.DirectionSendOnly)
		assert.ErrorIs(t, err, rtc.ErrStateMachine)
		assert.Equal(t, 1, sm.offers)
	})

	t.Run("connected после согласования", func(t *testing.T) {
		sm.outputs = append(sm.outputs, rtc.EventOutput(rtc.ConnectedEvent{}))
		_, err := s.Drive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StateConnected, s.State())
	})
}

func TestSendOfferSignalingError(t *testing.T) {
	sm := newFakeMachine()
	s := newTestSession(t, sm)

	ex := &fakeExchanger{err: rtc.NewStatusError(403, "запрещено")}
	_, err := s.SendOffer(context.Background(), ex, "http://example.com/whip", "", rtc.DirectionRecvOnly)
	assert.ErrorIs(t, err, rtc.ErrSignaling)
	assert.Empty(t, s.VideoMid())
	assert.Equal(t, StateOfferPending, s.State())
}

func TestSendOfferBadAnswer(t *testing.T) {
	sm := newFakeMachine()
	s := newTestSession(t, sm)

	ex := &fakeExchanger{answer: "not sdp at all"}
	_, err := s.SendOffer(context.Background(), ex, "http://example.com/whip", "", rtc.DirectionRecvOnly)
	assert.ErrorIs(t, err, rtc.ErrSDP)
	assert.Equal(t, 0, sm.answers)
}

func TestAcceptOffer(t *testing.T) {
	sm := newFakeMachine()
	s := newTestSession(t, sm)

	answer, err := s.AcceptOffer(videoOffer)
	require.NoError(t, err)
	assert.Equal(t, sm.answer, answer)
	assert.Equal(t, rtc.Mid("v0"), s.VideoMid())
	assert.Equal(t, StateNegotiated, s.State())

	_, err = s.AcceptOffer(videoOffer)
	assert.ErrorIs(t, err, rtc.ErrStateMachine)
}

func TestAcceptOfferErrors(t *testing.T) {
	tests := []struct {
		name  string
		offer string
	}{
		{"мусор", "garbage"},
		{"без видео", "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, newFakeMachine())
			_, err := s.AcceptOffer(tt.offer)
			assert.ErrorIs(t, err, rtc.ErrSDP)
			assert.Equal(t, StateGathering, s.State())
		})
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Socket.DSCP = 64
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.TrackID = ""
	assert.Error(t, cfg.Validate())
}
