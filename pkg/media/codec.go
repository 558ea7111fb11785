package media

import (
	"context"
	"time"
)

// RawFrame кадр от источника захвата
type RawFrame struct {
	Data     []byte
	Width    int
	Height   int
	Captured time.Time
}

// Source источник кадров, одна реализация на способ захвата
type Source interface {
	NextFrame(ctx context.Context) (RawFrame, error)
	Dimensions() (width, height int)
	Close() error
}

// Encoder превращает кадр в закодированные блоки
type Encoder interface {
	Encode(frame RawFrame) ([][]byte, error)
}

// Decoder превращает принятый блок в ноль или более кадров
type Decoder interface {
	Decode(data []byte) ([]Frame, error)
}

// Renderer выводит декодированные кадры
type Renderer interface {
	Render(frame Frame) error
	Close() error
}
