package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDevice             = errors.New("microphone unavailable")
	ErrEmptyRecording     = errors.New("no audio data recorded")
	ErrEmptyTranscription = errors.New("no valid transcription received")
	ErrAuth               = errors.New("invalid API key")
	ErrTranscription      = errors.New("transcription failed")
	ErrGeneration         = errors.New("AI response failed")
	ErrQuery              = errors.New("document query failed")
	ErrUpload             = errors.New("document upload failed")
	ErrSynthesis          = errors.New("TTS generation failed")
	ErrCancelled          = errors.New("operation cancelled")
	ErrStore              = errors.New("conversation store unavailable")

	ErrTurnPending  = errors.New("another turn is in progress")
	ErrNotRecording = errors.New("no active recording")
	ErrBlankInput   = errors.New("message is blank")
)

// ServiceError is a normalized remote failure. Kind is one of the sentinel
// errors above so callers can use errors.Is.
type ServiceError struct {
	Kind   error
	Status int
	Detail string
}

func (e *ServiceError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Detail)
}

func (e *ServiceError) Unwrap() error {
	return e.Kind
}

// RateLimitError reports that speech synthesis was throttled upstream.
type RateLimitError struct {
	RetryAfter time.Duration
	Detail     string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Unwrap lets rate limiting match ErrSynthesis.
func (e *RateLimitError) Unwrap() error {
	return ErrSynthesis
}
