package retry

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"voxchat/internal/domain"
)

const (
	// MaxAttempts bounds consecutive rate-limited synthesis attempts.
	MaxAttempts = 3
	// DefaultDelay applies when the upstream gives no usable retry hint.
	DefaultDelay = 10 * time.Second
)

var (
	retryPhrase    = regexp.MustCompile(`(?i)try again in\s*((?:\d+(?:\.\d+)?(?:ms|h|m|s))+)`)
	retryComponent = regexp.MustCompile(`(\d+(?:\.\d+)?)(ms|h|m|s)`)
)

// Decision is the outcome of consulting the policy.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Policy decides whether a rate-limited synthesis call is retried.
type Policy struct {
	MaxAttempts  int
	DefaultDelay time.Duration
}

func NewPolicy() Policy {
	return Policy{MaxAttempts: MaxAttempts, DefaultDelay: DefaultDelay}
}

// Decide takes the number of consecutive rate-limit failures seen so far,
// including err itself.
func (p Policy) Decide(err *domain.RateLimitError, failures int) Decision {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = MaxAttempts
	}
	if err == nil || failures >= maxAttempts {
		return Decision{}
	}
	delay := err.RetryAfter
	if delay <= 0 {
		delay = p.DefaultDelay
		if delay <= 0 {
			delay = DefaultDelay
		}
	}
	return Decision{Retry: true, Delay: delay}
}

// ParseRetryAfter extracts the wait from phrases like "Please try again in 1m5.0s".
func ParseRetryAfter(detail string) (time.Duration, bool) {
	match := retryPhrase.FindStringSubmatch(detail)
	if match == nil {
		return 0, false
	}

	var total time.Duration
	for _, part := range retryComponent.FindAllStringSubmatch(match[1], -1) {
		value, err := strconv.ParseFloat(part[1], 64)
		if err != nil {
			return 0, false
		}
		var unit time.Duration
		switch strings.ToLower(part[2]) {
		case "h":
			unit = time.Hour
		case "m":
			unit = time.Minute
		case "s":
			unit = time.Second
		case "ms":
			unit = time.Millisecond
		}
		total += time.Duration(value * float64(unit))
	}
	return total, true
}

// DelayFor returns the parsed wait or DefaultDelay.
func DelayFor(detail string) time.Duration {
	if delay, ok := ParseRetryAfter(detail); ok {
		return delay
	}
	return DefaultDelay
}
