package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	logx "voxchat/pkg/logger"

	"voxchat/internal/domain"
	"voxchat/internal/ports"
	"voxchat/internal/retry"
)

// Config controls turn orchestration.
type Config struct {
	Language domain.Language
	Policy   retry.Policy
}

// TurnController orchestrates recording, transcription, generation and
// synthesis for one conversation. Event sinks are invoked with the
// controller mutex held and must not call back into the controller.
type TurnController struct {
	recorder  ports.Recorder
	assistant ports.Assistant
	store     ports.ConversationStore
	speech    ports.SpeechCache
	player    ports.Player
	events    ports.EventSink
	policy    retry.Policy

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
	now   func() time.Time

	startMu sync.Mutex

	mu        sync.Mutex
	pending   *pendingTurn
	playback  ports.Playback
	state     domain.TurnState
	reason    domain.StatusReason
	mode      domain.Mode
	language  domain.Language
	documents domain.DocumentSet
}

func NewTurnController(
	recorder ports.Recorder,
	assistant ports.Assistant,
	store ports.ConversationStore,
	speech ports.SpeechCache,
	player ports.Player,
	events ports.EventSink,
	cfg Config,
) *TurnController {
	if _, ok := domain.ParseLanguage(string(cfg.Language)); !ok {
		cfg.Language = domain.LanguageHindi
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = retry.NewPolicy()
	}
	return &TurnController{
		recorder:  recorder,
		assistant: assistant,
		store:     store,
		speech:    speech,
		player:    player,
		events:    events,
		policy:    cfg.Policy,
		sleep:     sleepContext,
		newID:     uuid.NewString,
		now:       time.Now,
		state:     domain.TurnStateIdle,
		reason:    domain.ReasonReady,
		mode:      domain.ModeFreeChat,
		language:  cfg.Language,
	}
}

// StartRecording discards any pending turn and acquires the microphone.
func (c *TurnController) StartRecording(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	previous := c.pending
	turn := newPendingTurn(ctx, domain.TurnStateRecording, c.language)
	c.pending = turn
	c.mu.Unlock()

	c.release(previous)
	c.stopPlayback()

	recording, err := c.recorder.Start(turn.ctx)
	if err != nil {
		logx.Warn().Err(err).Msg("microphone unavailable")
		return c.fail(turn, err, domain.ErrorCodeDevice, domain.ReasonMicUnavailable)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != turn {
		recording.Abort()
		return domain.ErrCancelled
	}
	turn.recording = recording

	reason := domain.ReasonRecordingStarted
	if previous != nil {
		reason = domain.ReasonRecordingRestarted
	}
	c.setStateLocked(domain.TurnStateRecording, reason)
	return nil
}

// StopRecording ends the active recording and runs the voice turn to completion.
func (c *TurnController) StopRecording(ctx context.Context) (domain.TurnResult, error) {
	c.mu.Lock()
	turn := c.pending
	if turn == nil || turn.state != domain.TurnStateRecording || turn.recording == nil {
		c.mu.Unlock()
		return domain.TurnResult{}, domain.ErrNotRecording
	}
	recording := turn.recording
	turn.recording = nil
	turn.running.Add(1)
	turn.state = domain.TurnStateTranscribing
	c.setStateLocked(domain.TurnStateTranscribing, domain.ReasonTranscribing)
	c.mu.Unlock()

	defer turn.running.Done()
	stop := turn.bindCaller(ctx)
	defer stop()

	audio, err := recording.Stop()
	if err != nil {
		code, reason := classifyFailure(err)
		return domain.TurnResult{}, c.fail(turn, err, code, reason)
	}
	if turn.cancelled() {
		return domain.TurnResult{}, c.fail(turn, domain.ErrCancelled, "", "")
	}

	transcription, err := c.assistant.Transcribe(turn.ctx, audio, turn.language)
	if err != nil {
		code, reason := classifyFailure(err)
		return domain.TurnResult{}, c.fail(turn, err, code, reason)
	}

	c.mu.Lock()
	if c.pending == turn {
		c.events.UserTranscript(transcription.Text)
	}
	c.mu.Unlock()

	return c.respond(turn, transcription.Text)
}

// SendText runs a text turn. It is refused while an uncommitted turn is pending.
func (c *TurnController) SendText(ctx context.Context, text string) (domain.TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.TurnResult{}, domain.ErrBlankInput
	}

	turn, err := c.beginBlockingTurn(ctx, domain.TurnStateGenerating)
	if err != nil {
		return domain.TurnResult{}, err
	}
	defer turn.running.Done()

	return c.respond(turn, text)
}

// Cancel discards the pending turn and reports the ready status.
func (c *TurnController) Cancel() {
	c.mu.Lock()
	previous := c.pending
	c.pending = nil
	c.setStateLocked(domain.TurnStateIdle, domain.ReasonReady)
	c.mu.Unlock()

	c.release(previous)
	c.stopPlayback()
}

// SetMode selects the partition used for subsequent turns.
func (c *TurnController) SetMode(mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", mode)
	}
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	return nil
}

// SetLanguage applies to turns created after the call.
func (c *TurnController) SetLanguage(lang domain.Language) error {
	parsed, ok := domain.ParseLanguage(string(lang))
	if !ok {
		return fmt.Errorf("unsupported language %q", lang)
	}
	c.mu.Lock()
	c.language = parsed
	c.mu.Unlock()
	return nil
}

// Status returns the current backend status.
func (c *TurnController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		State:     c.state,
		Active:    c.pending != nil,
		Reason:    c.reason,
		Mode:      c.mode,
		Language:  c.language,
		Documents: c.documents.Filenames(),
	}
}

// History returns every committed exchange in insertion order.
func (c *TurnController) History(ctx context.Context) ([]domain.Exchange, error) {
	return c.store.Exchanges(ctx)
}

// ClearHistory drops every committed exchange. Like SendText it is refused
// while an uncommitted turn is pending.
func (c *TurnController) ClearHistory(ctx context.Context) error {
	turn, err := c.beginBlockingTurn(ctx, domain.TurnStateIdle)
	if err != nil {
		return err
	}
	defer turn.running.Done()

	if err := c.store.Clear(turn.ctx); err != nil {
		logx.Error().Err(err).Msg("failed to clear conversation history")
		return c.fail(turn, err, domain.ErrorCodeStore, domain.ReasonHistoryUnavailable)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != turn {
		return domain.ErrCancelled
	}
	c.pending = nil
	turn.cancel()
	logx.Info().Msg("conversation history cleared")
	c.setStateLocked(domain.TurnStateIdle, domain.ReasonHistoryCleared)
	return nil
}

// beginBlockingTurn installs a new turn for SendText and UploadDocuments.
// A pending turn that has not committed yet blocks the new one.
func (c *TurnController) beginBlockingTurn(ctx context.Context, state domain.TurnState) (*pendingTurn, error) {
	c.mu.Lock()
	previous := c.pending
	if previous != nil && !previous.committed {
		c.mu.Unlock()
		return nil, domain.ErrTurnPending
	}
	turn := newPendingTurn(ctx, state, c.language)
	turn.running.Add(1)
	c.pending = turn
	c.mu.Unlock()

	c.release(previous)
	c.stopPlayback()
	return turn, nil
}

// release cancels a superseded turn, frees its microphone and waits for
// any intent still running it to unwind.
func (c *TurnController) release(turn *pendingTurn) {
	if turn == nil {
		return
	}
	turn.cancel()

	c.mu.Lock()
	recording := turn.recording
	turn.recording = nil
	c.mu.Unlock()
	if recording != nil {
		recording.Abort()
	}

	turn.running.Wait()
}

func (c *TurnController) stopPlayback() {
	c.mu.Lock()
	playback := c.playback
	c.playback = nil
	c.mu.Unlock()
	if playback == nil {
		return
	}
	if err := playback.Stop(); err != nil {
		logx.Warn().Err(err).Msg("failed to stop playback")
	}
}

// setStateLocked records and emits a transition. Callers hold c.mu.
func (c *TurnController) setStateLocked(state domain.TurnState, reason domain.StatusReason) {
	c.state = state
	c.reason = reason
	logx.Debug().Str("state", string(state)).Str("reason", string(reason)).Msg("turn state changed")
	c.events.TurnStateChanged(state, reason)
}

// advance moves a still-current turn to state. It reports false when the
// turn has been superseded or cancelled.
func (c *TurnController) advance(turn *pendingTurn, state domain.TurnState, reason domain.StatusReason) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != turn || turn.cancelled() {
		return false
	}
	turn.state = state
	c.setStateLocked(state, reason)
	return true
}

// fail ends turn with an error. Cancelled or superseded turns stay silent
// and resolve to domain.ErrCancelled.
func (c *TurnController) fail(turn *pendingTurn, err error, code domain.ErrorCode, reason domain.StatusReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != turn {
		return domain.ErrCancelled
	}
	cancelled := turn.cancelled()
	c.pending = nil
	turn.cancel()

	if cancelled || errors.Is(err, domain.ErrCancelled) || errors.Is(err, context.Canceled) {
		c.setStateLocked(domain.TurnStateIdle, domain.ReasonReady)
		return domain.ErrCancelled
	}

	c.events.TurnError(code, err.Error())
	c.setStateLocked(domain.TurnStateError, reason)
	c.state = domain.TurnStateIdle
	return err
}

// classifyFailure maps a turn error to its reported code and reason.
func classifyFailure(err error) (domain.ErrorCode, domain.StatusReason) {
	switch {
	case errors.Is(err, domain.ErrDevice):
		return domain.ErrorCodeDevice, domain.ReasonMicUnavailable
	case errors.Is(err, domain.ErrEmptyRecording):
		return domain.ErrorCodeEmptyRecording, domain.ReasonNoAudio
	case errors.Is(err, domain.ErrEmptyTranscription):
		return domain.ErrorCodeEmptyTranscription, domain.ReasonNoTranscript
	case errors.Is(err, domain.ErrAuth):
		return domain.ErrorCodeAuth, domain.ReasonAuthFailed
	case errors.Is(err, domain.ErrTranscription):
		return domain.ErrorCodeTranscription, domain.ReasonTranscriptionFailed
	case errors.Is(err, domain.ErrQuery):
		return domain.ErrorCodeQuery, domain.ReasonQueryFailed
	case errors.Is(err, domain.ErrUpload):
		return domain.ErrorCodeUpload, domain.ReasonUploadFailed
	case errors.Is(err, domain.ErrSynthesis):
		return domain.ErrorCodeSynthesis, domain.ReasonTextOnly
	default:
		return domain.ErrorCodeGeneration, domain.ReasonGenerationFailed
	}
}
