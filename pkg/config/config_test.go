package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/whipcast/pkg/rtc"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 10, cfg.Signaling.MaxRedirects)
	assert.Equal(t, ":1337", cfg.Ingest.Listen)

	sess := cfg.SessionConfig()
	require.NoError(t, sess.Validate())
	assert.Equal(t, rtc.DefaultProfileLevelID, sess.RTC.Codec.ProfileLevelID)
	assert.Equal(t, 2*time.Second, sess.RTC.StatsInterval)
	assert.Equal(t, "0.0.0.0:0", sess.BindAddr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whipcast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
signaling:
  max_redirects: 3
  timeout: 2s
session:
  profile_level_id: 42001f
  mtu: 1100
media:
  fps: 25
`), 0o644))

	t.Setenv("WHIPCAST_INGEST_LISTEN", ":9000")
	t.Setenv("WHIPCAST_MEDIA_FPS", "60")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.SignalingConfig().MaxRedirects)
	assert.Equal(t, 2*time.Second, cfg.SignalingConfig().Timeout)
	assert.Equal(t, "42001f", cfg.SessionConfig().RTC.Codec.ProfileLevelID)
	assert.Equal(t, 1100, cfg.SessionConfig().RTC.MTU)
	assert.Equal(t, ":9000", cfg.IngestConfig().Listen)
	assert.Equal(t, 60, cfg.FileSourceConfig().FPS, "окружение важнее файла")
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  mtu: 50\n"), 0o644))

	_, err := Load(NewViper(), path)
	assert.Error(t, err)

	_, err = Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
