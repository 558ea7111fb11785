package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

// FileSourceConfig параметры источника из H.264 Annex-B файла
type FileSourceConfig struct {
	Path   string
	FPS    int
	Loop   bool
	Width  int
	Height int
}

// Validate проверяет параметры источника
func (c FileSourceConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("не указан файл источника")
	}
	if c.FPS <= 0 || c.FPS > 240 {
		return fmt.Errorf("некорректная частота кадров: %d", c.FPS)
	}
	return nil
}

// FileSource читает access unit из H.264 файла и выдает их с заданной частотой
type FileSource struct {
	cfg    FileSourceConfig
	file   *os.File
	reader *h264reader.H264Reader
	ticker *time.Ticker

	// SPS/PPS, которые предшествуют следующему кадру
	params [][]byte
}

// OpenFileSource открывает файл и проверяет, что это Annex-B поток
func OpenFileSource(cfg FileSourceConfig) (*FileSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия %s: %w", cfg.Path, err)
	}
	reader, err := h264reader.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка чтения H.264 из %s: %w", cfg.Path, err)
	}

	return &FileSource{
		cfg:    cfg,
		file:   f,
		reader: reader,
		ticker: time.NewTicker(time.Second / time.Duration(cfg.FPS)),
	}, nil
}

// NextFrame ждет следующего тика и возвращает очередной access unit
func (s *FileSource) NextFrame(ctx context.Context) (RawFrame, error) {
	select {
	case <-ctx.Done():
		return RawFrame{}, ctx.Err()
	case <-s.ticker.C:
	}

	nals, err := s.nextAccessUnit()
	if errors.Is(err, io.EOF) && s.cfg.Loop {
		if err = s.rewind(); err == nil {
			nals, err = s.nextAccessUnit()
		}
	}
	if err != nil {
		return RawFrame{}, err
	}

	return RawFrame{
		Data:     JoinAnnexB(nals),
		Width:    s.cfg.Width,
		Height:   s.cfg.Height,
		Captured: time.Now(),
	}, nil
}

// nextAccessUnit собирает NAL блоки до первого слайса кадра включительно
func (s *FileSource) nextAccessUnit() ([][]byte, error) {
	var nals [][]byte
	for {
		nal, err := s.reader.NextNAL()
		if err != nil {
			return nil, err
		}
		data := append([]byte(nil), bytes.TrimRight(nal.Data, "\x00")...)
		if len(data) == 0 {
			continue
		}

		switch nal.UnitType {
		case h264reader.NalUnitTypeSPS, h264reader.NalUnitTypePPS:
			s.params = append(s.params, data)
		case h264reader.NalUnitTypeAUD:
		case h264reader.NalUnitTypeCodedSliceIdr:
			nals = append(nals, s.params...)
			s.params = nil
			return append(nals, data), nil
		case h264reader.NalUnitTypeCodedSliceNonIdr:
			return append(nals, data), nil
		default:
			nals = append(nals, data)
		}
	}
}

func (s *FileSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("ошибка перемотки: %w", err)
	}
	reader, err := h264reader.NewReader(s.file)
	if err != nil {
		return err
	}
	s.reader = reader
	s.params = nil
	return nil
}

// Dimensions размер кадра из конфигурации, файл не разбирается
func (s *FileSource) Dimensions() (int, int) {
	return s.cfg.Width, s.cfg.Height
}

// Close закрывает файл
func (s *FileSource) Close() error {
	s.ticker.Stop()
	return s.file.Close()
}
