package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_NeedsOnlyToken(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, "configuration errors: Discord token (BOT_TOKEN) is required", err.Error())

	cfg.Discord.Token = "token-1234567890"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 60*time.Second, cfg.Session.IdleTimeout)
	assert.Equal(t, 500, cfg.Session.MaxQueueSize)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.Token = "t"
	cfg.Audio.Bitrate = 8
	cfg.Session.IdleTimeout = 0
	cfg.Logging.Level = "LOUD"
	cfg.Features.EnableMetrics = true
	cfg.Features.MetricsInterval = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics interval")
	assert.Contains(t, err.Error(), "bitrate")
	assert.Contains(t, err.Error(), "idle timeout")
	assert.Contains(t, err.Error(), "log level")
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOT_TOKEN", "abcdefghijkl")
	t.Setenv("YT_TOKEN", "key-123456789")
	t.Setenv("IDLE_TIMEOUT", "90s")
	t.Setenv("MAX_QUEUE_SIZE", "25")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENABLE_RATE_LIMITING", "false")
	t.Setenv("YTDLP_COOKIES", "/etc/cookies.txt")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "abcdefghijkl", cfg.Discord.Token)
	assert.Equal(t, 90*time.Second, cfg.Session.IdleTimeout)
	assert.Equal(t, 25, cfg.Session.MaxQueueSize)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.False(t, cfg.Commands.EnableRateLimiting)
	assert.Equal(t, "/etc/cookies.txt", cfg.Resolver.Cookies)

	// Unset values keep their defaults
	assert.Equal(t, 96, cfg.Audio.Bitrate)
	assert.Equal(t, 3*time.Second, cfg.Commands.UserRateLimitDelay)
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("BOT_TOKEN=from-dotenv-file\nANNOUNCE_TRACKS=false\n"), 0o600))
	// godotenv never overrides variables that are already set
	for _, key := range []string{"BOT_TOKEN", "ANNOUNCE_TRACKS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv-file", cfg.Discord.Token)
	assert.False(t, cfg.Features.AnnounceTracks)
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOT_TOKEN", "abcdefghijkl")
	t.Setenv("IDLE_TIMEOUT", "soon")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestRedaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.Token = "abcdefghijkl"
	cfg.Resolver.APIKey = "short"

	assert.Equal(t, "abcdefgh***", cfg.GetRedactedToken())
	assert.Equal(t, "***", cfg.GetRedactedAPIKey())
}
