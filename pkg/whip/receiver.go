package whip

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/arzzra/whipcast/pkg/media"
)

// EngineFactory создает новую сессию на каждый входящий offer
type EngineFactory func(ctx context.Context) (Engine, error)

// RendererFactory создает отрисовщик для принятого потока
type RendererFactory func(ctx context.Context, sessionID int) (media.Renderer, error)

// Receiver обрабатывает входящие WHIP offer: каждый offer получает свою
// сессию, очередь кадров и отрисовщик. Ошибка одной сессии завершает только ее.
type Receiver struct {
	ctx         context.Context
	group       *errgroup.Group
	newEngine   EngineFactory
	newRenderer RendererFactory
	queueSize   int
	logger      *slog.Logger
	log         *slog.Logger

	seq atomic.Int32
}

// NewReceiver создает приемник. Фоновые задачи живут в ctx и группе g.
func NewReceiver(ctx context.Context, g *errgroup.Group, newEngine EngineFactory, newRenderer RendererFactory, queueSize int, logger *slog.Logger) *Receiver {
	return &Receiver{
		ctx:         ctx,
		group:       g,
		newEngine:   newEngine,
		newRenderer: newRenderer,
		queueSize:   queueSize,
		logger:      logger,
		log:         componentLogger(logger, "receiver"),
	}
}

// HandleOffer принимает offer и возвращает answer. Вызывается из HTTP обработчика,
// поэтому контекст запроса используется только для создания сессии.
func (r *Receiver) HandleOffer(ctx context.Context, offer string) (string, error) {
	id := int(r.seq.Add(1))

	eng, err := r.newEngine(ctx)
	if err != nil {
		return "", fmt.Errorf("ошибка создания сессии: %w", err)
	}

	renderer, err := r.newRenderer(r.ctx, id)
	if err != nil {
		eng.Close()
		return "", fmt.Errorf("ошибка создания отрисовщика: %w", err)
	}

	log := r.log.With(slog.Int("seq", id))
	sg, sctx := errgroup.WithContext(r.ctx)
	frames := media.NewQueue[media.Frame]("frames", r.queueSize)
	answer, err := SubscribeAsServer(sctx, sg, eng, offer, media.NewAnnexBDecoder(), frames, r.logger)
	if err != nil {
		renderer.Close()
		return "", err
	}

	sg.Go(func() error {
		return media.RunRenderer(sctx, frames, renderer, r.logger)
	})
	r.group.Go(func() error {
		if err := sg.Wait(); err != nil {
			log.Warn("inbound session failed", slog.String("error", err.Error()))
			return nil
		}
		log.Info("inbound session finished")
		return nil
	})
	log.Info("inbound session started")
	return answer, nil
}
