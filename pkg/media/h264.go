package media

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

var annexBStartCode = []byte{0, 0, 0, 1}

var (
	errEmptyUnit    = errors.New("пустой блок")
	errForbiddenBit = errors.New("установлен forbidden_zero_bit")
	errNoNALUnits   = errors.New("нет NAL блоков")
)

// SplitAnnexB разбивает Annex-B поток на NAL блоки без стартовых кодов.
// Данные без стартового кода считаются одним NAL блоком. SEI блоки h264reader
// пропускает.
func SplitAnnexB(data []byte) [][]byte {
	if !hasStartCode(data) {
		if len(data) == 0 {
			return nil
		}
		return [][]byte{data}
	}

	reader, err := h264reader.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	var nals [][]byte
	for {
		nal, err := reader.NextNAL()
		if err != nil {
			return nals
		}
		// хвостовые нули принадлежат следующему стартовому коду
		if n := bytes.TrimRight(nal.Data, "\x00"); len(n) > 0 {
			nals = append(nals, n)
		}
	}
}

func hasStartCode(data []byte) bool {
	return bytes.HasPrefix(data, annexBStartCode) || bytes.HasPrefix(data, annexBStartCode[1:])
}

// JoinAnnexB собирает NAL блоки в Annex-B поток с 4-байтными стартовыми кодами
func JoinAnnexB(nals [][]byte) []byte {
	size := 0
	for _, n := range nals {
		size += len(annexBStartCode) + len(n)
	}
	out := make([]byte, 0, size)
	for _, n := range nals {
		out = append(out, annexBStartCode...)
		out = append(out, n...)
	}
	return out
}

func nalType(nal []byte) h264reader.NalUnitType {
	return h264reader.NalUnitType(nal[0] & 0x1f)
}

// PassthroughEncoder "кодирует" кадры, которые уже содержат H.264 access unit
type PassthroughEncoder struct{}

// Encode возвращает кадр как единственный блок
func (PassthroughEncoder) Encode(frame RawFrame) ([][]byte, error) {
	if len(frame.Data) == 0 {
		return nil, errEmptyUnit
	}
	return [][]byte{frame.Data}, nil
}

// AnnexBDecoder проверяет принятые H.264 access unit и выдает их как кадры
// в Annex-B виде. Сам поток декодирует отрисовщик.
// До первого IDR кадры не выдаются, если WaitKeyframe установлен.
type AnnexBDecoder struct {
	WaitKeyframe bool

	gotKeyframe bool
}

// NewAnnexBDecoder создает декодер, ожидающий первого ключевого кадра
func NewAnnexBDecoder() *AnnexBDecoder {
	return &AnnexBDecoder{WaitKeyframe: true}
}

// Decode разбирает блок на NAL и проверяет их заголовки
func (d *AnnexBDecoder) Decode(data []byte) ([]Frame, error) {
	if len(data) == 0 {
		return nil, errEmptyUnit
	}

	nals := SplitAnnexB(data)
	if len(nals) == 0 {
		return nil, errNoNALUnits
	}

	keyframe := false
	for i, nal := range nals {
		if nal[0]&0x80 != 0 {
			return nil, fmt.Errorf("NAL %d: %w", i, errForbiddenBit)
		}
		if nalType(nal) == h264reader.NalUnitTypeCodedSliceIdr {
			keyframe = true
		}
	}

	if keyframe {
		d.gotKeyframe = true
	}
	if d.WaitKeyframe && !d.gotKeyframe {
		return nil, nil
	}

	return []Frame{{Data: JoinAnnexB(nals), Keyframe: keyframe}}, nil
}
