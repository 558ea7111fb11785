// Package whip собирает сессию, сигнализацию и медиа конвейеры в три роли:
// публикация, подписка клиентом (WHEP) и подписка сервером (входящий WHIP).
package whip

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arzzra/whipcast/pkg/media"
	"github.com/arzzra/whipcast/pkg/rtc"
	"github.com/arzzra/whipcast/pkg/session"
)

// deleteTimeout ограничивает DELETE ресурса при завершении публикации
const deleteTimeout = 3 * time.Second

// Engine сессия, которой управляет оркестратор, см. session.Session
type Engine interface {
	Drive(ctx context.Context) (session.Event, error)
	SendVideo(data []byte, pts time.Duration) error
	SendOffer(ctx context.Context, ex session.Exchanger, url, token string, dir rtc.Direction) (string, error)
	AcceptOffer(offer string) (string, error)
	Close() error
}

// Signaler HTTP сторона WHIP/WHEP, см. signaling.Client
type Signaler interface {
	session.Exchanger
	Delete(ctx context.Context, resource, token string) error
}

// Publish отправляет offer sendonly и продвигает сессию, на каждом Continue
// отправляя накопленные пакеты. Завершается при Disconnected или ошибке.
// Сессия закрывается на выходе.
func Publish(ctx context.Context, eng Engine, sig Signaler, url, token string, packets *media.Queue[media.EncodedPacket], logger *slog.Logger) error {
	log := componentLogger(logger, "publish")
	defer eng.Close()

	resource, err := eng.SendOffer(ctx, sig, url, token, rtc.DirectionSendOnly)
	if err != nil {
		return err
	}
	log.Info("publishing", slog.String("resource", resource))
	defer deleteResource(sig, resource, token, log)

	for {
		ev, err := eng.Drive(ctx)
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
		case session.EventContinue:
			if _, err := media.SendQueued(packets, eng); err != nil {
				return err
			}
		case session.EventMedia:
			log.Warn("unexpected inbound media on publish session, dropped")
		}
	}
}

// SubscribeAsClient отправляет offer recvonly и запускает декодирование в группе g.
// Возвращается сразу после согласования.
func SubscribeAsClient(ctx context.Context, g *errgroup.Group, eng Engine, sig Signaler, url, token string,
	dec media.Decoder, frames *media.Queue[media.Frame], logger *slog.Logger) error {
	log := componentLogger(logger, "subscribe")

	resource, err := eng.SendOffer(ctx, sig, url, token, rtc.DirectionRecvOnly)
	if err != nil {
		eng.Close()
		frames.Close()
		return err
	}
	log.Info("subscribed", slog.String("resource", resource))

	g.Go(func() error {
		defer eng.Close()
		defer deleteResource(sig, resource, token, log)
		return media.DecodeLoop(ctx, eng, dec, frames, logger)
	})
	return nil
}

// SubscribeAsServer принимает входящий offer, запускает декодирование в группе g
// и возвращает answer вызывающему.
func SubscribeAsServer(ctx context.Context, g *errgroup.Group, eng Engine, offer string,
	dec media.Decoder, frames *media.Queue[media.Frame], logger *slog.Logger) (string, error) {
	answer, err := eng.AcceptOffer(offer)
	if err != nil {
		eng.Close()
		frames.Close()
		return "", err
	}

	g.Go(func() error {
		defer eng.Close()
		return media.DecodeLoop(ctx, eng, dec, frames, logger)
	})
	return answer, nil
}

func deleteResource(sig Signaler, resource, token string, log *slog.Logger) {
	if resource == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := sig.Delete(ctx, resource, token); err != nil {
		log.Debug("resource delete failed", slog.String("resource", resource), slog.String("error", err.Error()))
	}
}

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", component))
}
