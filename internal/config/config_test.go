package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxchat/internal/core"
	"voxchat/internal/domain"
)

var configKeys = []string{
	"VOXCHAT_ENV",
	"VOXCHAT_LOG_LEVEL",
	"VOXCHAT_API_URL",
	"VOXCHAT_API_TIMEOUT",
	"VOXCHAT_FFMPEG_COMMAND",
	"VOXCHAT_FFPLAY_COMMAND",
	"VOXCHAT_AUDIO_INPUT_FORMAT",
	"VOXCHAT_AUDIO_INPUT_DEVICE",
	"VOXCHAT_SAMPLE_RATE",
	"VOXCHAT_CHANNELS",
	"VOXCHAT_AUDIO_CHUNK_SIZE",
	"VOXCHAT_LANGUAGE",
	"VOXCHAT_SPEECH_CACHE_TTL",
	"VOXCHAT_REDIS_URL",
	"VOXCHAT_REDIS_TTL",
	"VOXCHAT_RELAY_ADDR",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment() != core.Development {
		t.Fatalf("expected development environment, got %q", cfg.Environment())
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 2*time.Minute {
		t.Fatalf("unexpected api timeout %s", cfg.API.Timeout)
	}
	if cfg.Audio.RecorderCommand != "ffmpeg" || cfg.Audio.PlayerCommand != "ffplay" {
		t.Fatalf("unexpected audio commands %+v", cfg.Audio)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.ChunkSize != 4096 {
		t.Fatalf("unexpected audio format %+v", cfg.Audio)
	}
	if cfg.DefaultLanguage() != domain.LanguageHindi {
		t.Fatalf("expected Hindi, got %q", cfg.DefaultLanguage())
	}
	if cfg.Conversation.SpeechCacheTTL != 30*time.Minute {
		t.Fatalf("unexpected speech cache ttl %s", cfg.Conversation.SpeechCacheTTL)
	}
	if cfg.Conversation.RedisURL != "" || cfg.Relay.Addr != "" {
		t.Fatalf("expected optional backends disabled, got %+v %+v", cfg.Conversation, cfg.Relay)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOXCHAT_ENV", "Production")
	t.Setenv("VOXCHAT_API_URL", " https://api.example.test/ ")
	t.Setenv("VOXCHAT_API_TIMEOUT", "45s")
	t.Setenv("VOXCHAT_AUDIO_INPUT_FORMAT", "alsa")
	t.Setenv("VOXCHAT_SAMPLE_RATE", "48000")
	t.Setenv("VOXCHAT_CHANNELS", "2")
	t.Setenv("VOXCHAT_LANGUAGE", "arabic")
	t.Setenv("VOXCHAT_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("VOXCHAT_REDIS_TTL", "1h")
	t.Setenv("VOXCHAT_RELAY_ADDR", "127.0.0.1:8787")

	cfg, err := load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment() != core.Production {
		t.Fatalf("expected production, got %q", cfg.Environment())
	}
	if cfg.API.BaseURL != "https://api.example.test" {
		t.Fatalf("expected trimmed base url, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 45*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.API.Timeout)
	}
	if cfg.Audio.InputFormat != "alsa" || cfg.Audio.SampleRate != 48000 || cfg.Audio.Channels != 2 {
		t.Fatalf("unexpected audio config %+v", cfg.Audio)
	}
	if cfg.DefaultLanguage() != domain.LanguageArabic {
		t.Fatalf("expected Arabic, got %q", cfg.DefaultLanguage())
	}
	if cfg.Conversation.RedisURL != "redis://localhost:6379/0" || cfg.Conversation.RedisTTL != time.Hour {
		t.Fatalf("unexpected redis config %+v", cfg.Conversation)
	}
	if cfg.Relay.Addr != "127.0.0.1:8787" {
		t.Fatalf("unexpected relay addr %q", cfg.Relay.Addr)
	}
}

func TestLoadFallsBackOnOutOfRangeValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOXCHAT_API_TIMEOUT", "-5s")
	t.Setenv("VOXCHAT_SAMPLE_RATE", "0")
	t.Setenv("VOXCHAT_CHANNELS", "-1")
	t.Setenv("VOXCHAT_AUDIO_CHUNK_SIZE", "12")
	t.Setenv("VOXCHAT_LANGUAGE", "Klingon")
	t.Setenv("VOXCHAT_SPEECH_CACHE_TTL", "0s")
	t.Setenv("VOXCHAT_FFMPEG_COMMAND", "   ")

	cfg, err := load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Timeout != 2*time.Minute {
		t.Fatalf("expected default timeout, got %s", cfg.API.Timeout)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.ChunkSize != 4096 {
		t.Fatalf("expected audio fallbacks, got %+v", cfg.Audio)
	}
	if cfg.Audio.RecorderCommand != "ffmpeg" {
		t.Fatalf("expected ffmpeg fallback, got %q", cfg.Audio.RecorderCommand)
	}
	if cfg.Conversation.Language != string(domain.LanguageHindi) {
		t.Fatalf("expected Hindi fallback, got %q", cfg.Conversation.Language)
	}
	if cfg.Conversation.SpeechCacheTTL != 30*time.Minute {
		t.Fatalf("expected default cache ttl, got %s", cfg.Conversation.SpeechCacheTTL)
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOXCHAT_SAMPLE_RATE", "fast")

	if _, err := load(); err == nil {
		t.Fatalf("expected malformed sample rate to fail")
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOXCHAT_LANGUAGE", "English")

	path := filepath.Join(t.TempDir(), ".env")
	contents := "VOXCHAT_RELAY_ADDR=127.0.0.1:9999\nVOXCHAT_LANGUAGE=Arabic\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Relay.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected relay addr from .env, got %q", cfg.Relay.Addr)
	}
	if cfg.DefaultLanguage() != domain.LanguageEnglish {
		t.Fatalf("expected process env to win, got %q", cfg.DefaultLanguage())
	}
}

func TestLoadIgnoresMissingDotEnv(t *testing.T) {
	clearEnv(t)

	if _, err := load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}
