// Package config загружает настройки whipcast из файла, переменных окружения
// WHIPCAST_* и флагов командной строки.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/arzzra/whipcast/pkg/ingest"
	"github.com/arzzra/whipcast/pkg/media"
	"github.com/arzzra/whipcast/pkg/rtc"
	"github.com/arzzra/whipcast/pkg/session"
	"github.com/arzzra/whipcast/pkg/signaling"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "WHIPCAST"

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Signaling SignalingConfig `mapstructure:"signaling"`
	Session   SessionConfig   `mapstructure:"session"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Media     MediaConfig     `mapstructure:"media"`
}

type SignalingConfig struct {
	MaxRedirects int           `mapstructure:"max_redirects"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
}

type SessionConfig struct {
	Bind           string        `mapstructure:"bind"`
	StreamID       string        `mapstructure:"stream_id"`
	TrackID        string        `mapstructure:"track_id"`
	PayloadType    uint8         `mapstructure:"payload_type"`
	ProfileLevelID string        `mapstructure:"profile_level_id"`
	StatsInterval  time.Duration `mapstructure:"stats_interval"`
	MaxLate        uint16        `mapstructure:"max_late"`
	MTU            int           `mapstructure:"mtu"`
	DSCP           int           `mapstructure:"dscp"`
	RecvBuffer     int           `mapstructure:"recv_buffer"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type IngestConfig struct {
	Listen    string `mapstructure:"listen"`
	Metrics   bool   `mapstructure:"metrics"`
	Advertise bool   `mapstructure:"advertise"`
	Instance  string `mapstructure:"instance"`
}

type MediaConfig struct {
	QueueSize int    `mapstructure:"queue_size"`
	File      string `mapstructure:"file"`
	FPS       int    `mapstructure:"fps"`
	Loop      bool   `mapstructure:"loop"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	// Output файл .h264 для принятого потока, пустой означает ffplay
	Output string `mapstructure:"output"`
	FFplay string `mapstructure:"ffplay"`
}

// SetDefaults регистрирует значения по умолчанию для всех ключей.
// Без них AutomaticEnv не видит ключи при Unmarshal.
func SetDefaults(v *viper.Viper) {
	sig := signaling.DefaultConfig()
	sess := session.DefaultConfig()
	ing := ingest.DefaultConfig()

	v.SetDefault("log_level", "warn")

	v.SetDefault("signaling.max_redirects", sig.MaxRedirects)
	v.SetDefault("signaling.timeout", sig.Timeout)
	v.SetDefault("signaling.user_agent", sig.UserAgent)

	v.SetDefault("session.bind", sess.BindAddr)
	v.SetDefault("session.stream_id", sess.StreamID)
	v.SetDefault("session.track_id", sess.TrackID)
	v.SetDefault("session.payload_type", sess.RTC.PayloadType)
	v.SetDefault("session.profile_level_id", sess.RTC.Codec.ProfileLevelID)
	v.SetDefault("session.stats_interval", sess.RTC.StatsInterval)
	v.SetDefault("session.max_late", sess.RTC.MaxLate)
	v.SetDefault("session.mtu", sess.RTC.MTU)
	v.SetDefault("session.dscp", sess.Socket.DSCP)
	v.SetDefault("session.recv_buffer", sess.Socket.RecvBuffer)
	v.SetDefault("session.send_buffer", sess.Socket.SendBuffer)

	v.SetDefault("ingest.listen", ing.Listen)
	v.SetDefault("ingest.metrics", ing.Metrics)
	v.SetDefault("ingest.advertise", false)
	v.SetDefault("ingest.instance", "")

	v.SetDefault("media.queue_size", media.DefaultQueueCapacity)
	v.SetDefault("media.file", "")
	v.SetDefault("media.fps", 30)
	v.SetDefault("media.loop", true)
	v.SetDefault("media.width", 1280)
	v.SetDefault("media.height", 720)
	v.SetDefault("media.output", "")
	v.SetDefault("media.ffplay", "ffplay")
}

// NewViper создает viper с значениями по умолчанию и привязкой к окружению
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load читает файл конфигурации, если он задан, и разбирает итоговые значения
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет все секции
func (c *Config) Validate() error {
	if err := c.SignalingConfig().Validate(); err != nil {
		return fmt.Errorf("signaling: %w", err)
	}
	if err := c.SessionConfig().Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if c.Media.QueueSize < 0 {
		return fmt.Errorf("media: отрицательный размер очереди")
	}
	return nil
}

// SignalingConfig параметры клиента сигнализации
func (c *Config) SignalingConfig() signaling.Config {
	return signaling.Config{
		MaxRedirects: c.Signaling.MaxRedirects,
		Timeout:      c.Signaling.Timeout,
		UserAgent:    c.Signaling.UserAgent,
	}
}

// SessionConfig параметры сессии
func (c *Config) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.BindAddr = c.Session.Bind
	cfg.StreamID = c.Session.StreamID
	cfg.TrackID = c.Session.TrackID
	cfg.RTC = rtc.Config{
		Codec: rtc.CodecPolicy{
			MimeType:       rtc.MimeTypeH264,
			ProfileLevelID: c.Session.ProfileLevelID,
		},
		PayloadType:   c.Session.PayloadType,
		StatsInterval: c.Session.StatsInterval,
		MaxLate:       c.Session.MaxLate,
		MTU:           c.Session.MTU,
	}
	cfg.Socket = session.SocketConfig{
		RecvBuffer: c.Session.RecvBuffer,
		SendBuffer: c.Session.SendBuffer,
		DSCP:       c.Session.DSCP,
	}
	return cfg
}

// IngestConfig параметры endpoint
func (c *Config) IngestConfig() ingest.Config {
	return ingest.Config{Listen: c.Ingest.Listen, Metrics: c.Ingest.Metrics}
}

// FileSourceConfig параметры файлового источника
func (c *Config) FileSourceConfig() media.FileSourceConfig {
	return media.FileSourceConfig{
		Path:   c.Media.File,
		FPS:    c.Media.FPS,
		Loop:   c.Media.Loop,
		Width:  c.Media.Width,
		Height: c.Media.Height,
	}
}
