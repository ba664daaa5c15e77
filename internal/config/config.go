package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"voxchat/internal/core"
	"voxchat/internal/domain"
)

// Config stores runtime configuration for the client.
type Config struct {
	Env      string `envconfig:"VOXCHAT_ENV" default:"development"`
	LogLevel string `envconfig:"VOXCHAT_LOG_LEVEL"`

	API          APIConfig
	Audio        AudioConfig
	Conversation ConversationConfig
	Relay        RelayConfig
}

type APIConfig struct {
	BaseURL string        `envconfig:"VOXCHAT_API_URL" default:"http://localhost:8000"`
	Timeout time.Duration `envconfig:"VOXCHAT_API_TIMEOUT" default:"2m"`
}

type AudioConfig struct {
	RecorderCommand string `envconfig:"VOXCHAT_FFMPEG_COMMAND" default:"ffmpeg"`
	PlayerCommand   string `envconfig:"VOXCHAT_FFPLAY_COMMAND" default:"ffplay"`
	InputFormat     string `envconfig:"VOXCHAT_AUDIO_INPUT_FORMAT" default:"pulse"`
	InputDevice     string `envconfig:"VOXCHAT_AUDIO_INPUT_DEVICE" default:"default"`
	SampleRate      int    `envconfig:"VOXCHAT_SAMPLE_RATE" default:"16000"`
	Channels        int    `envconfig:"VOXCHAT_CHANNELS" default:"1"`
	ChunkSize       int    `envconfig:"VOXCHAT_AUDIO_CHUNK_SIZE" default:"4096"`
}

type ConversationConfig struct {
	Language       string        `envconfig:"VOXCHAT_LANGUAGE" default:"Hindi"`
	SpeechCacheTTL time.Duration `envconfig:"VOXCHAT_SPEECH_CACHE_TTL" default:"30m"`
	RedisURL       string        `envconfig:"VOXCHAT_REDIS_URL"`
	RedisTTL       time.Duration `envconfig:"VOXCHAT_REDIS_TTL" default:"24h"`
}

type RelayConfig struct {
	Addr string `envconfig:"VOXCHAT_RELAY_ADDR"`
}

// Environment returns the parsed deployment environment.
func (c Config) Environment() core.Environment {
	return core.ParseEnvironment(strings.ToLower(strings.TrimSpace(c.Env)))
}

// DefaultLanguage returns the configured language, Hindi when unknown.
func (c Config) DefaultLanguage() domain.Language {
	if lang, ok := domain.ParseLanguage(c.Conversation.Language); ok {
		return lang
	}
	return domain.LanguageHindi
}

// Load reads .env when present, then resolves configuration from the environment.
func Load() (Config, error) {
	return load(".env")
}

func load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment config: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8000"
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 2 * time.Minute
	}

	cfg.Audio.RecorderCommand = firstNonEmpty(cfg.Audio.RecorderCommand, "ffmpeg")
	cfg.Audio.PlayerCommand = firstNonEmpty(cfg.Audio.PlayerCommand, "ffplay")
	cfg.Audio.InputFormat = firstNonEmpty(cfg.Audio.InputFormat, "pulse")
	cfg.Audio.InputDevice = firstNonEmpty(cfg.Audio.InputDevice, "default")
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}

	if _, ok := domain.ParseLanguage(cfg.Conversation.Language); !ok {
		cfg.Conversation.Language = string(domain.LanguageHindi)
	}
	if cfg.Conversation.SpeechCacheTTL <= 0 {
		cfg.Conversation.SpeechCacheTTL = 30 * time.Minute
	}
	cfg.Conversation.RedisURL = strings.TrimSpace(cfg.Conversation.RedisURL)
	if cfg.Conversation.RedisTTL < 0 {
		cfg.Conversation.RedisTTL = 24 * time.Hour
	}
	cfg.Relay.Addr = strings.TrimSpace(cfg.Relay.Addr)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
