package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"voxchat/internal/domain"
)

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		detail string
		want   time.Duration
		ok     bool
	}{
		{name: "minutes and seconds", detail: "Rate limit reached. Please try again in 1m5.0s.", want: 65 * time.Second, ok: true},
		{name: "seconds only", detail: "Please try again in 7.5s", want: 7500 * time.Millisecond, ok: true},
		{name: "hours minutes seconds", detail: "try again in 1h2m3.000s", want: time.Hour + 2*time.Minute + 3*time.Second, ok: true},
		{name: "milliseconds", detail: "Please try again in 20ms. Visit", want: 20 * time.Millisecond, ok: true},
		{name: "whole seconds", detail: "Please try again in 12s", want: 12 * time.Second, ok: true},
		{name: "case insensitive", detail: "TRY AGAIN IN 2m", want: 2 * time.Minute, ok: true},
		{name: "no phrase", detail: "quota exceeded", ok: false},
		{name: "phrase without duration", detail: "Please try again in a while", ok: false},
		{name: "empty", detail: "", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseRetryAfter(tt.detail)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDelayForDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 65000*time.Millisecond, DelayFor("try again in 1m5.0s"))
	assert.Equal(t, 10000*time.Millisecond, DelayFor("slow down"))
}

func TestPolicyDecide(t *testing.T) {
	t.Parallel()

	p := NewPolicy()
	err := &domain.RateLimitError{RetryAfter: 2 * time.Second}

	for failures := 1; failures < MaxAttempts; failures++ {
		d := p.Decide(err, failures)
		assert.True(t, d.Retry, "failure %d should retry", failures)
		assert.Equal(t, 2*time.Second, d.Delay)
	}
	assert.False(t, p.Decide(err, MaxAttempts).Retry)
	assert.False(t, p.Decide(err, MaxAttempts+1).Retry)
}

func TestPolicyDecideUsesDefaultDelay(t *testing.T) {
	t.Parallel()

	d := Policy{}.Decide(&domain.RateLimitError{}, 1)
	assert.True(t, d.Retry)
	assert.Equal(t, DefaultDelay, d.Delay)

	assert.False(t, NewPolicy().Decide(nil, 1).Retry)
}
