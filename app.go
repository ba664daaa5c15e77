package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	logx "voxchat/pkg/logger"

	"voxchat/internal/bootstrap"
	"voxchat/internal/domain"
	"voxchat/internal/remote"
	"voxchat/internal/usecase"
)

const (
	eventState      = "voxchat:state"
	eventTranscript = "voxchat:transcript"
	eventExchange   = "voxchat:exchange"
	eventDocuments  = "voxchat:documents"
	eventError      = "voxchat:error"
)

// App is the Wails application root.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	emit   func(ctx context.Context, name string, data ...interface{})

	controller *usecase.TurnController
	services   bootstrap.Services
	bootErr    error
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	services, err := bootstrap.Build(runCtx, a)
	if err != nil {
		a.bootErr = err
		a.TurnError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.controller = services.Controller
	a.TurnStateChanged(domain.TurnStateIdle, domain.ReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.services.Close(); err != nil {
		logx.Warn().Err(err).Msg("shutdown cleanup failed")
	}
}

// StartRecording opens the microphone for a new voice turn.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.StartRecording(a.ctx); err != nil {
		return a.controller.Status(), logIntent("start recording", err)
	}
	return a.controller.Status(), nil
}

// StopRecording ends capture and runs the voice turn to completion.
func (a *App) StopRecording() (domain.TurnResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.TurnResult{}, err
	}
	result, err := a.controller.StopRecording(a.ctx)
	return result, logIntent("stop recording", err)
}

// SendText runs a typed turn.
func (a *App) SendText(text string) (domain.TurnResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.TurnResult{}, err
	}
	result, err := a.controller.SendText(a.ctx, text)
	return result, logIntent("send text", err)
}

// Cancel discards the pending turn.
func (a *App) Cancel() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.Cancel()
	return a.controller.Status(), nil
}

// UploadDocuments uploads local files by path and switches to document mode.
func (a *App) UploadDocuments(paths []string) (domain.DocumentSet, error) {
	if err := a.requireReady(); err != nil {
		return domain.DocumentSet{}, err
	}
	files, err := uploadFiles(paths)
	if err != nil {
		a.TurnError(domain.ErrorCodeUpload, err.Error())
		return domain.DocumentSet{}, err
	}
	set, err := a.controller.UploadDocuments(a.ctx, files)
	return set, logIntent("upload documents", err)
}

// PickAndUploadDocuments opens the native file dialog, then uploads the selection.
func (a *App) PickAndUploadDocuments() (domain.DocumentSet, error) {
	if err := a.requireReady(); err != nil {
		return domain.DocumentSet{}, err
	}
	paths, err := runtime.OpenMultipleFilesDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select documents",
		Filters: []runtime.FileFilter{{
			DisplayName: "Documents and images",
			Pattern:     remote.DialogPattern(),
		}},
	})
	if err != nil {
		return domain.DocumentSet{}, err
	}
	if len(paths) == 0 {
		return a.controller.Documents(), nil
	}
	return a.UploadDocuments(paths)
}

// ClearDocuments drops the attached documents.
func (a *App) ClearDocuments() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.ClearDocuments()
	return nil
}

// SetMode switches between free chat ("chat") and documents ("document").
func (a *App) SetMode(mode string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.SetMode(domain.Mode(mode)); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// SetLanguage selects the language for subsequent turns.
func (a *App) SetLanguage(language string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.SetLanguage(domain.Language(language)); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// GetStatus returns the current turn status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.TurnStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.TurnStateIdle, Active: false}
	}
	status := a.controller.Status()
	status.Message = reasonMessage(status.Reason)
	return status
}

// GetHistory returns every committed exchange across both modes.
func (a *App) GetHistory() ([]domain.Exchange, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.controller.History(a.ctx)
}

// ClearHistory forgets every committed exchange in both modes.
func (a *App) ClearHistory() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return logIntent("clear history", a.controller.ClearHistory(a.ctx))
}

// GetLanguages lists the selectable languages.
func (a *App) GetLanguages() []domain.Language {
	return domain.Languages()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	info := map[string]string{
		"apiURL":           cfg.API.BaseURL,
		"language":         string(cfg.DefaultLanguage()),
		"environment":      cfg.Environment().String(),
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"sampleRate":       strconv.Itoa(cfg.Audio.SampleRate),
		"history":          "memory",
		"session":          a.services.SessionID,
	}
	if cfg.Conversation.RedisURL != "" {
		info["history"] = "redis"
	}
	if cfg.Relay.Addr != "" {
		info["relay"] = cfg.Relay.Addr
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func uploadFiles(paths []string) ([]domain.UploadFile, error) {
	files := make([]domain.UploadFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUpload, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", domain.ErrUpload, path)
		}
		files = append(files, domain.UploadFile{
			Name: filepath.Base(path),
			Path: path,
			Size: info.Size(),
		})
	}
	return files, nil
}

// TurnStateChanged emits turn lifecycle updates to the frontend.
func (a *App) TurnStateChanged(state domain.TurnState, reason domain.StatusReason) {
	a.send(eventState, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": reasonMessage(reason),
	})
}

// UserTranscript emits the recognised user utterance.
func (a *App) UserTranscript(text string) {
	a.send(eventTranscript, map[string]string{"text": text})
}

// ExchangeCommitted emits a newly committed exchange.
func (a *App) ExchangeCommitted(exchange domain.Exchange) {
	a.send(eventExchange, exchange)
}

// DocumentsChanged emits the attached document names.
func (a *App) DocumentsChanged(set domain.DocumentSet) {
	a.send(eventDocuments, map[string][]string{"documents": set.Filenames()})
}

// TurnError emits backend errors to the UI.
func (a *App) TurnError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) send(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

func reasonMessage(reason domain.StatusReason) string {
	switch reason {
	case domain.ReasonReady:
		return "Ready"
	case domain.ReasonRecordingStarted:
		return "Listening..."
	case domain.ReasonRecordingRestarted:
		return "Recording restarted; previous turn discarded"
	case domain.ReasonTranscribing:
		return "Transcribing..."
	case domain.ReasonGenerating:
		return "Thinking..."
	case domain.ReasonQueryingDocuments:
		return "Searching your documents..."
	case domain.ReasonSynthesizing:
		return "Preparing speech..."
	case domain.ReasonRetryingSynthesis:
		return "Speech service busy, retrying..."
	case domain.ReasonResponding:
		return "Responding"
	case domain.ReasonTextOnly:
		return "Answer ready (speech unavailable)"
	case domain.ReasonMicUnavailable:
		return "Microphone unavailable"
	case domain.ReasonNoAudio:
		return "No audio captured"
	case domain.ReasonNoTranscript:
		return "Could not understand the recording"
	case domain.ReasonTranscriptionFailed:
		return "Transcription failed"
	case domain.ReasonGenerationFailed:
		return "Could not generate a response"
	case domain.ReasonQueryFailed:
		return "Document query failed"
	case domain.ReasonSynthesisAuthFailed:
		return "Speech service rejected the API key"
	case domain.ReasonAuthFailed:
		return "Service rejected the API key"
	case domain.ReasonUploadingDocuments:
		return "Uploading documents..."
	case domain.ReasonDocumentsReady:
		return "Documents ready"
	case domain.ReasonUploadFailed:
		return "Document upload failed"
	case domain.ReasonDocumentsCleared:
		return "Documents cleared"
	case domain.ReasonHistoryCleared:
		return "Conversation cleared"
	case domain.ReasonHistoryUnavailable:
		return "Conversation history unavailable"
	case domain.ReasonCommitFailed:
		return "Could not save the exchange"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDevice:
		return "Microphone error"
	case domain.ErrorCodeEmptyRecording:
		return "Recording was empty"
	case domain.ErrorCodeEmptyTranscription:
		return "Nothing was transcribed"
	case domain.ErrorCodeAuth:
		return "Invalid API key"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeGeneration:
		return "Response generation error"
	case domain.ErrorCodeQuery:
		return "Document query error"
	case domain.ErrorCodeUpload:
		return "Upload error"
	case domain.ErrorCodeSynthesis:
		return "Speech synthesis error"
	case domain.ErrorCodeStore:
		return "Conversation store error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

func logIntent(intent string, err error) error {
	if err == nil {
		return nil
	}
	if isSilent(err) {
		logx.Debug().Err(err).Str("intent", intent).Msg("intent ignored")
	} else {
		logx.Warn().Err(err).Str("intent", intent).Msg("intent failed")
	}
	return err
}

// isSilent reports whether err is an expected outcome the UI already knows about.
func isSilent(err error) bool {
	return errors.Is(err, domain.ErrCancelled) ||
		errors.Is(err, domain.ErrTurnPending) ||
		errors.Is(err, domain.ErrNotRecording) ||
		errors.Is(err, domain.ErrBlankInput)
}
