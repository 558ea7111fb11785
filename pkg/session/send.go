package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arzzra/whipcast/pkg/logger"
	"github.com/arzzra/whipcast/pkg/rtc"
)

// SendVideo передает закодированный блок в видео трек.
// pts время представления от начала потока, пересчитывается в частоту кодека.
// До согласования вызов ничего не делает и не возвращает ошибку.
func (s *Session) SendVideo(data []byte, pts time.Duration) error {
	if s.videoMid == "" {
		s.log.Warn("video not negotiated yet, frame dropped")
		return nil
	}

	codec, ok := s.cfg.RTC.Codec.Select(s.sm.Codecs())
	if !ok {
		return rtc.NewError(rtc.ErrorCodeSend,
			fmt.Sprintf("нет согласованного кодека %s profile-level-id=%s", s.cfg.RTC.Codec.MimeType, s.cfg.RTC.Codec.ProfileLevelID))
	}

	w, ok := s.sm.Writer(s.videoMid)
	if !ok {
		return rtc.NewError(rtc.ErrorCodeSend, fmt.Sprintf("нет писателя для mid %s", s.videoMid))
	}

	rtpTime := rtc.Rebase(pts, codec.ClockRate)
	if err := w.Write(codec.PayloadType, time.Now(), rtpTime, data); err != nil {
		return rtc.WrapError(rtc.ErrorCodeSend, err, "запись в трек отклонена")
	}

	videoFramesSent.Inc()
	s.log.Log(context.Background(), logger.LevelTrace, "video sent", slog.Duration("pts", pts), slog.Int("bytes", len(data)))
	return nil
}
