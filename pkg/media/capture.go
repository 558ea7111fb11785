package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// RunCapture читает кадры источника, кодирует их и кладет в очередь.
// Выполняется в отдельной горутине: захват может блокироваться на устройстве.
// Конец источника (io.EOF) и отмена контекста завершают работу без ошибки.
func RunCapture(ctx context.Context, src Source, enc Encoder, q *Queue[EncodedPacket], start time.Time, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "capture"))

	w, h := src.Dimensions()
	log.Info("capture started", slog.Int("width", w), slog.Int("height", h))
	defer q.Close()

	for {
		frame, err := src.NextFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				log.Info("capture finished", slog.String("reason", err.Error()))
				return nil
			}
			return err
		}

		units, err := enc.Encode(frame)
		if err != nil {
			log.Warn("encode failed, frame skipped", slog.String("error", err.Error()))
			continue
		}
		for _, u := range units {
			if !q.Push(EncodedPacket{Data: u, Start: start}) {
				return nil
			}
		}
	}
}
