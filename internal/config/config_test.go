package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHAT_RECONNECT_MAX_ATTEMPTS", "")
	t.Setenv("MEDIA_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Chat.ReconnectMaxAttempts)
	assert.Equal(t, time.Second, cfg.Chat.ReconnectBaseDelay())
	assert.Equal(t, 30*time.Second, cfg.Chat.ReconnectMaxDelay())
	assert.Equal(t, 15*time.Second, cfg.Chat.ConnectTimeout())
	assert.Equal(t, 10*time.Second, cfg.Chat.CorrelationWindow())
	assert.Equal(t, 30*time.Second, cfg.Media.UploadTimeout())
	assert.Equal(t, MediaBackendHTTP, cfg.Media.Backend)
}

func TestLoadOverridesAndBadValues(t *testing.T) {
	t.Setenv("CHAT_RECONNECT_MAX_ATTEMPTS", "3")
	t.Setenv("CHAT_CONNECT_TIMEOUT_SECONDS", "not-a-number")
	t.Setenv("MEDIA_BACKEND", "S3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Chat.ReconnectMaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Chat.ConnectTimeout())
	assert.Equal(t, MediaBackendS3, cfg.Media.Backend)

	t.Setenv("REDIS_DB", "x")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("MEDIA_BACKEND", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cfg.Chat.WSURL = "http://example.com/chat"
	cfg.Media.Backend = MediaBackendS3
	cfg.Media.S3Bucket = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_WS_URL")
	assert.Contains(t, err.Error(), "MEDIA_S3_BUCKET")
}

func TestValidateMediaLocalRoot(t *testing.T) {
	t.Setenv("MEDIA_BACKEND", "")
	t.Setenv("MEDIA_LOCAL_ROOT", "uploads")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "uploads", cfg.Media.LocalRoot)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEDIA_LOCAL_ROOT")

	cfg.Media.LocalRoot = t.TempDir()
	assert.NoError(t, cfg.Validate())
}
