package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arzzra/whipcast/pkg/rtc"
	"github.com/arzzra/whipcast/pkg/signaling"
)

// Exchanger выполняет HTTP обмен offer/answer, см. signaling.Client
type Exchanger interface {
	Exchange(ctx context.Context, endpoint, token, offer string) (answer string, resource string, err error)
}

// SendOffer формирует offer для одной видео линии, отправляет его на url и
// применяет полученный answer. Возвращает URL созданного на сервере ресурса.
func (s *Session) SendOffer(ctx context.Context, ex Exchanger, url, token string, dir rtc.Direction) (string, error) {
	if s.State() != StateGathering {
		return "", rtc.NewError(rtc.ErrorCodeStateMachine,
			fmt.Sprintf("offer невозможен в состоянии %s", s.State()))
	}

	offer, pending, err := s.sm.AddMedia(rtc.MediaKindVideo, dir, s.cfg.StreamID, s.cfg.TrackID)
	if err != nil {
		return "", rtc.WrapError(rtc.ErrorCodeStateMachine, err, "ошибка формирования offer")
	}
	if err := s.setState(StateOfferPending); err != nil {
		return "", rtc.WrapError(rtc.ErrorCodeStateMachine, err, "ошибка жизненного цикла")
	}
	s.log.Info("sending offer", slog.String("url", url), slog.String("direction", dir.String()))
	s.log.Debug("local offer", slog.String("sdp", offer.SDP))

	answer, resource, err := ex.Exchange(ctx, url, token, offer.SDP)
	if err != nil {
		return "", err
	}
	s.log.Debug("remote answer", slog.String("sdp", answer))

	if _, err := signaling.ParseSDP(answer); err != nil {
		return "", err
	}
	if err := s.sm.AcceptAnswer(pending, answer); err != nil {
		return "", rtc.WrapError(rtc.ErrorCodeSDP, err, "answer не принят")
	}

	s.videoMid = pending.Mid()
	if err := s.setState(StateNegotiated); err != nil {
		return "", rtc.WrapError(rtc.ErrorCodeStateMachine, err, "ошибка жизненного цикла")
	}
	s.log.Info("offer accepted", slog.String("mid", string(s.videoMid)), slog.String("resource", resource))
	return resource, nil
}

// AcceptOffer принимает удаленный offer и возвращает локальный answer
func (s *Session) AcceptOffer(offer string) (string, error) {
	if s.State() != StateGathering {
		return "", rtc.NewError(rtc.ErrorCodeStateMachine,
			fmt.Sprintf("offer невозможно принять в состоянии %s", s.State()))
	}

	desc, err := signaling.ParseSDP(offer)
	if err != nil {
		return "", err
	}
	videoMids := signaling.VideoMids(desc)
	if len(videoMids) == 0 {
		return "", rtc.NewError(rtc.ErrorCodeSDP, "в offer нет видео линии")
	}

	answer, err := s.sm.AcceptOffer(offer)
	if err != nil {
		return "", rtc.WrapError(rtc.ErrorCodeSDP, err, "offer не принят")
	}

	s.videoMid = rtc.Mid(videoMids[0])
	if err := s.setState(StateNegotiated); err != nil {
		return "", rtc.WrapError(rtc.ErrorCodeStateMachine, err, "ошибка жизненного цикла")
	}
	s.log.Info("remote offer accepted", slog.String("mid", string(s.videoMid)))
	return answer, nil
}
