package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	Resolver ResolverConfig `json:"resolver"`
	Audio    AudioConfig    `json:"audio"`
	Session  SessionConfig  `json:"session"`
	Commands CommandsConfig `json:"commands"`
	Logging  LoggingConfig  `json:"logging"`
	Features FeatureConfig  `json:"features"`
}

// DiscordConfig holds Discord-specific configuration
type DiscordConfig struct {
	Token string `json:"-" env:"BOT_TOKEN"`
	// GuildID registers slash commands for one guild only; empty registers globally.
	GuildID           string        `json:"guild_id" env:"GUILD_ID"`
	CleanupCommands   bool          `json:"cleanup_commands" env:"CLEANUP_COMMANDS"`
	MaxMessageLength  int           `json:"max_message_length" env:"MAX_MESSAGE_LENGTH"`
	ReconnectAttempts int           `json:"reconnect_attempts" env:"RECONNECT_ATTEMPTS"`
	ReconnectDelay    time.Duration `json:"reconnect_delay" env:"RECONNECT_DELAY"`
}

// ResolverConfig holds media resolution configuration
type ResolverConfig struct {
	// APIKey enables YouTube Data API search; yt-dlp is used without it.
	APIKey         string        `json:"-" env:"YT_TOKEN"`
	Cookies        string        `json:"cookies" env:"YTDLP_COOKIES"`
	Proxy          string        `json:"proxy" env:"YTDLP_PROXY"`
	ResolveTimeout time.Duration `json:"resolve_timeout" env:"RESOLVE_TIMEOUT"`
}

// AudioConfig holds audio processing configuration
type AudioConfig struct {
	Bitrate          int           `json:"bitrate" env:"AUDIO_BITRATE"`
	Volume           int           `json:"volume" env:"AUDIO_VOLUME"`
	FrameRate        int           `json:"frame_rate" env:"AUDIO_FRAME_RATE"`
	FrameDuration    int           `json:"frame_duration" env:"AUDIO_FRAME_DURATION"`
	CompressionLevel int           `json:"compression_level" env:"AUDIO_COMPRESSION_LEVEL"`
	PacketLoss       int           `json:"packet_loss" env:"AUDIO_PACKET_LOSS"`
	BufferedFrames   int           `json:"buffered_frames" env:"AUDIO_BUFFERED_FRAMES"`
	EnableVBR        bool          `json:"enable_vbr" env:"AUDIO_ENABLE_VBR"`
	ConnectTimeout   time.Duration `json:"connect_timeout" env:"VOICE_CONNECT_TIMEOUT"`
}

// SessionConfig holds per-guild session configuration
type SessionConfig struct {
	IdleTimeout  time.Duration `json:"idle_timeout" env:"IDLE_TIMEOUT"`
	MaxQueueSize int           `json:"max_queue_size" env:"MAX_QUEUE_SIZE"`
}

// CommandsConfig holds command handling configuration
type CommandsConfig struct {
	EnableRateLimiting bool          `json:"enable_rate_limiting" env:"ENABLE_RATE_LIMITING"`
	UserRateLimitDelay time.Duration `json:"user_rate_limit_delay" env:"USER_RATE_LIMIT_DELAY"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `json:"level" env:"LOG_LEVEL"`
	OutputFile       string `json:"output_file" env:"LOG_FILE"`
	MaxFileSize      int    `json:"max_file_size" env:"LOG_MAX_SIZE_MB"`
	MaxBackups       int    `json:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge           int    `json:"max_age" env:"LOG_MAX_AGE_DAYS"`
	EnableConsole    bool   `json:"enable_console" env:"LOG_CONSOLE"`
	EnableFile       bool   `json:"enable_file" env:"LOG_TO_FILE"`
	EnableJSON       bool   `json:"enable_json" env:"LOG_JSON"`
	EnableStackTrace bool   `json:"enable_stack_trace" env:"LOG_STACK_TRACE"`
}

// FeatureConfig holds feature flags
type FeatureConfig struct {
	EnableMetrics   bool          `json:"enable_metrics" env:"ENABLE_METRICS"`
	MetricsInterval time.Duration `json:"metrics_interval" env:"METRICS_INTERVAL"`
	AnnounceTracks  bool          `json:"announce_tracks" env:"ANNOUNCE_TRACKS"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			MaxMessageLength:  2000,
			ReconnectAttempts: 3,
			ReconnectDelay:    time.Second,
		},
		Resolver: ResolverConfig{
			ResolveTimeout: 30 * time.Second,
		},
		Audio: AudioConfig{
			Bitrate:          96,
			Volume:           256,
			FrameRate:        48000,
			FrameDuration:    20,
			CompressionLevel: 10,
			PacketLoss:       1,
			BufferedFrames:   100,
			EnableVBR:        true,
			ConnectTimeout:   10 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout:  60 * time.Second,
			MaxQueueSize: 500,
		},
		Commands: CommandsConfig{
			EnableRateLimiting: true,
			UserRateLimitDelay: 3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:            "INFO",
			OutputFile:       "logs/groovebox.log",
			MaxFileSize:      100,
			MaxBackups:       3,
			MaxAge:           28,
			EnableConsole:    true,
			EnableFile:       false,
			EnableJSON:       false,
			EnableStackTrace: true,
		},
		Features: FeatureConfig{
			EnableMetrics:   false,
			MetricsInterval: 30 * time.Second,
			AnnounceTracks:  true,
		},
	}
}

// LoadConfig loads configuration from a .env file (if present) and the environment
func LoadConfig() (*Config, error) {
	// A missing .env file is fine; the environment may already be set
	_ = godotenv.Load()

	config := DefaultConfig()
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	config.Logging.Level = strings.ToUpper(config.Logging.Level)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

var validLogLevels = []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	if c.Discord.Token == "" {
		errors = append(errors, "Discord token (BOT_TOKEN) is required")
	}
	if c.Discord.MaxMessageLength <= 0 || c.Discord.MaxMessageLength > 2000 {
		errors = append(errors, "max message length must be between 1 and 2000")
	}

	if c.Audio.Bitrate < 32 || c.Audio.Bitrate > 320 {
		errors = append(errors, "audio bitrate must be between 32 and 320 kbps")
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1024 {
		errors = append(errors, "audio volume must be between 0 and 1024")
	}
	if c.Audio.BufferedFrames <= 0 {
		errors = append(errors, "buffered frames must be greater than 0")
	}

	if c.Session.IdleTimeout <= 0 {
		errors = append(errors, "idle timeout must be greater than 0")
	}
	if c.Session.MaxQueueSize <= 0 {
		errors = append(errors, "max queue size must be greater than 0")
	}

	if c.Commands.EnableRateLimiting && c.Commands.UserRateLimitDelay <= 0 {
		errors = append(errors, "user rate limit delay must be greater than 0 when rate limiting is enabled")
	}

	if c.Features.EnableMetrics && c.Features.MetricsInterval <= 0 {
		errors = append(errors, "metrics interval must be greater than 0 when metrics are enabled")
	}

	if !slices.Contains(validLogLevels, c.Logging.Level) {
		errors = append(errors, fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// GetRedactedToken returns a redacted version of the token for logging
func (c *Config) GetRedactedToken() string {
	return redact(c.Discord.Token)
}

// GetRedactedAPIKey returns a redacted version of the API key for logging
func (c *Config) GetRedactedAPIKey() string {
	return redact(c.Resolver.APIKey)
}

func redact(secret string) string {
	if len(secret) < 8 {
		return "***"
	}
	return secret[:8] + "***"
}
