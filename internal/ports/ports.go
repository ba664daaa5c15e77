package ports

import (
	"context"
	"io"

	"voxchat/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Recording accumulates audio until stopped.
type Recording interface {
	// Stop releases the microphone and returns the captured payload.
	Stop() ([]byte, error)
	// Abort releases the microphone and discards the captured audio.
	Abort()
}

// Recorder starts exclusive microphone recordings.
type Recorder interface {
	Start(ctx context.Context) (Recording, error)
}

// Playback is an in-progress audio playback.
type Playback interface {
	Stop() error
	Done() <-chan struct{}
}

// Player plays synthesized speech.
type Player interface {
	Play(ctx context.Context, audio []byte) (Playback, error)
}

// Assistant is the remote transcription, generation, speech and document surface.
type Assistant interface {
	Transcribe(ctx context.Context, audio []byte, lang domain.Language) (domain.Transcription, error)
	GenerateResponse(ctx context.Context, prompt string, history []domain.Exchange, lang domain.Language) (string, error)
	SynthesizeSpeech(ctx context.Context, text string, lang domain.Language) ([]byte, error)
	UploadDocuments(ctx context.Context, files []domain.UploadFile, lang domain.Language) (domain.DocumentSet, error)
	QueryDocuments(ctx context.Context, query string, docs domain.DocumentSet, history []domain.Exchange, lang domain.Language) (string, error)
}

// ConversationStore is the ordered exchange log.
type ConversationStore interface {
	Append(ctx context.Context, exchange domain.Exchange) error
	Exchanges(ctx context.Context) ([]domain.Exchange, error)
	History(ctx context.Context, mode domain.Mode) ([]domain.Exchange, error)
	Clear(ctx context.Context) error
}

// SpeechCache remembers synthesized audio for identical answers.
type SpeechCache interface {
	Get(lang domain.Language, text string) ([]byte, bool)
	Put(lang domain.Language, text string, audio []byte)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	TurnStateChanged(state domain.TurnState, reason domain.StatusReason)
	UserTranscript(text string)
	ExchangeCommitted(exchange domain.Exchange)
	DocumentsChanged(set domain.DocumentSet)
	TurnError(code domain.ErrorCode, detail string)
}
