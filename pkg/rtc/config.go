package rtc

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MimeTypeH264 MIME тип H.264 видео
	MimeTypeH264 = "video/H264"

	// DefaultProfileLevelID Constrained Baseline 3.1 (0x42e01f)
	DefaultProfileLevelID = "42e01f"

	// DefaultStatsInterval период сбора статистики соединения
	DefaultStatsInterval = 2 * time.Second

	// DefaultMaxLate размер окна переупорядочивания входящих RTP пакетов.
	// Маленькое значение дает низкую задержку ценой потери кадров в плохой сети.
	DefaultMaxLate = 64

	// DefaultMTU максимальный размер RTP payload при пакетизации
	DefaultMTU = 1200

	// DefaultVideoPayloadType payload type, регистрируемый для H.264
	DefaultVideoPayloadType = 102

	videoClockRate = 90000
)

// CodecPolicy правило выбора согласованного кодека для отправки
type CodecPolicy struct {
	MimeType       string
	ProfileLevelID string
}

// DefaultCodecPolicy H.264 Constrained Baseline
func DefaultCodecPolicy() CodecPolicy {
	return CodecPolicy{
		MimeType:       MimeTypeH264,
		ProfileLevelID: DefaultProfileLevelID,
	}
}

// Matches проверяет, подходит ли согласованный кодек под правило.
// Пустой ProfileLevelID означает любой профиль.
func (p CodecPolicy) Matches(c CodecParams) bool {
	if !strings.EqualFold(c.MimeType, p.MimeType) {
		return false
	}
	if p.ProfileLevelID == "" {
		return true
	}
	return strings.EqualFold(FmtpValue(c.Fmtp, "profile-level-id"), p.ProfileLevelID)
}

// Select возвращает первый кодек, подходящий под правило
func (p CodecPolicy) Select(codecs []CodecParams) (CodecParams, bool) {
	for _, c := range codecs {
		if p.Matches(c) {
			return c, true
		}
	}
	return CodecParams{}, false
}

// FmtpLine строка a=fmtp для регистрации кодека
func (p CodecPolicy) FmtpLine() string {
	if !strings.EqualFold(p.MimeType, MimeTypeH264) {
		return ""
	}
	profile := p.ProfileLevelID
	if profile == "" {
		profile = DefaultProfileLevelID
	}
	return "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=" + profile
}

// FmtpValue ищет значение параметра в строке fmtp вида "a=1;b=2"
func FmtpValue(fmtp, key string) string {
	for _, part := range strings.Split(fmtp, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Config конфигурация машины состояний
type Config struct {
	Codec         CodecPolicy
	PayloadType   uint8
	StatsInterval time.Duration // 0 отключает сбор статистики
	MaxLate       uint16
	MTU           int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Codec:         DefaultCodecPolicy(),
		PayloadType:   DefaultVideoPayloadType,
		StatsInterval: DefaultStatsInterval,
		MaxLate:       DefaultMaxLate,
		MTU:           DefaultMTU,
	}
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.Codec.MimeType == "" {
		return fmt.Errorf("MIME тип кодека обязателен")
	}
	if !strings.EqualFold(c.Codec.MimeType, MimeTypeH264) {
		return fmt.Errorf("неподдерживаемый кодек: %s", c.Codec.MimeType)
	}
	if c.PayloadType < 96 || c.PayloadType > 127 {
		return fmt.Errorf("динамический payload type должен быть в диапазоне 96-127: %d", c.PayloadType)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("интервал статистики не может быть отрицательным")
	}
	if c.MTU < 100 || c.MTU > 1500 {
		return fmt.Errorf("MTU должен быть в диапазоне 100-1500: %d", c.MTU)
	}
	return nil
}
