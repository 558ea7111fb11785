// Package media связывает сессию с кодеком: очередь закодированных пакетов
// уходит в видео трек, принятые блоки декодируются в кадры для отрисовки.
package media

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arzzra/whipcast/pkg/session"
)

// EncodedPacket закодированный блок и момент начала потока.
// Время представления отсчитывается от Start в момент отправки.
type EncodedPacket struct {
	Data  []byte
	Start time.Time
}

// Frame декодированный кадр для отрисовки
type Frame struct {
	Data     []byte
	Keyframe bool
	RTPTime  uint32
	Received time.Time
}

// VideoSender принимает закодированное видео, см. session.Session
type VideoSender interface {
	SendVideo(data []byte, pts time.Duration) error
}

// Driver продвигает сессию на один шаг, см. session.Session
type Driver interface {
	Drive(ctx context.Context) (session.Event, error)
}

// SendQueued отправляет все пакеты, накопленные в очереди к моменту вызова,
// не дожидаясь новых. Возвращает число отправленных пакетов.
func SendQueued(q *Queue[EncodedPacket], sender VideoSender) (int, error) {
	sent := 0
	for {
		p, ok := q.TryPop()
		if !ok {
			return sent, nil
		}
		if err := sender.SendVideo(p.Data, time.Since(p.Start)); err != nil {
			return sent, err
		}
		sent++
	}
}

// DecodeMedia передает блок в декодер и кладет полученные кадры в очередь.
// Ошибка декодирования одного блока не фатальна, блок пропускается.
func DecodeMedia(dec Decoder, data []byte, rtpTime uint32, received time.Time, frames *Queue[Frame], log *slog.Logger) int {
	out, err := dec.Decode(data)
	if err != nil {
		decodeErrors.Inc()
		log.Debug("decode failed, unit skipped", slog.String("error", err.Error()), slog.Int("bytes", len(data)))
		return 0
	}

	for _, f := range out {
		f.RTPTime = rtpTime
		f.Received = received
		frames.Push(f)
		framesDecoded.Inc()
	}
	return len(out)
}

// DecodeLoop продвигает сессию и декодирует каждый принятый медиа блок.
// Завершается при Disconnected (nil) или ошибке сессии. Очередь кадров закрывается на выходе.
func DecodeLoop(ctx context.Context, d Driver, dec Decoder, frames *Queue[Frame], logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "decode"))
	defer frames.Close()

	for {
		ev, err := d.Drive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		switch ev.Kind {
		case session.EventDisconnected:
			log.Info("session disconnected")
			return nil
		case session.EventMedia:
			if ev.Media == nil {
				continue
			}
			DecodeMedia(dec, ev.Media.Data, ev.Media.RTPTime, ev.Media.Network, frames, log)
		}
	}
}
