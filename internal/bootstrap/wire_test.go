package bootstrap

import (
	"context"
	"os"
	"testing"

	"voxchat/internal/domain"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"VOXCHAT_REDIS_URL", "VOXCHAT_RELAY_ADDR", "VOXCHAT_LANGUAGE", "VOXCHAT_ENV"} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
	t.Setenv("HOME", t.TempDir())
}

func TestBuildSuccess(t *testing.T) {
	isolateEnv(t)
	t.Setenv("VOXCHAT_LANGUAGE", "English")

	services, err := Build(context.Background(), noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(func() { _ = services.Close() })

	if services.Controller == nil {
		t.Fatalf("expected controller")
	}
	if services.SessionID == "" {
		t.Fatalf("expected session id")
	}
	if services.Relay != nil {
		t.Fatalf("expected relay disabled without an address")
	}
	status := services.Controller.Status()
	if status.State != domain.TurnStateIdle || status.Language != domain.LanguageEnglish || status.Mode != domain.ModeFreeChat {
		t.Fatalf("unexpected initial status %+v", status)
	}
}

func TestBuildStartsRelayWhenConfigured(t *testing.T) {
	isolateEnv(t)
	t.Setenv("VOXCHAT_RELAY_ADDR", "127.0.0.1:0")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	services, err := Build(ctx, noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(func() { _ = services.Close() })

	if services.Relay == nil {
		t.Fatalf("expected relay server")
	}
}

func TestBuildFailsOnInvalidRedisURL(t *testing.T) {
	isolateEnv(t)
	t.Setenv("VOXCHAT_REDIS_URL", "not-a-redis-url")

	if _, err := Build(context.Background(), noopEventSink{}); err == nil {
		t.Fatalf("expected build error due to invalid redis url")
	}
}

type noopEventSink struct{}

func (noopEventSink) TurnStateChanged(_ domain.TurnState, _ domain.StatusReason) {}
func (noopEventSink) UserTranscript(_ string)                                    {}
func (noopEventSink) ExchangeCommitted(_ domain.Exchange)                        {}
func (noopEventSink) DocumentsChanged(_ domain.DocumentSet)                      {}
func (noopEventSink) TurnError(_ domain.ErrorCode, _ string)                     {}
