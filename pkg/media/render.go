package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// WriterRenderer пишет Annex-B поток в io.WriteCloser, например в файл .h264
type WriterRenderer struct {
	w io.WriteCloser
}

// NewFileRenderer создает файл и пишет в него принятый поток
func NewFileRenderer(path string) (*WriterRenderer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания %s: %w", path, err)
	}
	return &WriterRenderer{w: f}, nil
}

// NewWriterRenderer отрисовщик поверх произвольного писателя
func NewWriterRenderer(w io.WriteCloser) *WriterRenderer {
	return &WriterRenderer{w: w}
}

func (r *WriterRenderer) Render(frame Frame) error {
	_, err := r.w.Write(frame.Data)
	return err
}

func (r *WriterRenderer) Close() error {
	return r.w.Close()
}

// FFplayRenderer передает поток в stdin процесса ffplay
type FFplayRenderer struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// DefaultFFplayArgs аргументы для воспроизведения Annex-B с минимальной задержкой
var DefaultFFplayArgs = []string{
	"-hide_banner", "-loglevel", "warning",
	"-fflags", "nobuffer", "-flags", "low_delay", "-framedrop",
	"-f", "h264", "-i", "-",
}

// StartFFplay запускает ffplay. binary пустой означает "ffplay" из PATH.
func StartFFplay(ctx context.Context, binary string, args ...string) (*FFplayRenderer, error) {
	if binary == "" {
		binary = "ffplay"
	}
	if len(args) == 0 {
		args = DefaultFFplayArgs
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ошибка создания pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ошибка запуска %s: %w", binary, err)
	}
	return &FFplayRenderer{cmd: cmd, stdin: stdin}, nil
}

func (r *FFplayRenderer) Render(frame Frame) error {
	_, err := r.stdin.Write(frame.Data)
	return err
}

// Close закрывает stdin и ждет выхода ffplay
func (r *FFplayRenderer) Close() error {
	_ = r.stdin.Close()
	err := r.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// RunRenderer отрисовывает кадры из очереди до ее закрытия или отмены контекста
func RunRenderer(ctx context.Context, frames *Queue[Frame], r Renderer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "render"))
	defer r.Close()

	rendered := 0
	for {
		f, err := frames.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || errors.Is(err, context.Canceled) {
				log.Info("render finished", slog.Int("frames", rendered))
				return nil
			}
			return err
		}
		if err := r.Render(f); err != nil {
			return fmt.Errorf("ошибка отрисовки: %w", err)
		}
		rendered++
	}
}
