package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TurnState models the conversation turn lifecycle.
type TurnState string

const (
	TurnStateIdle         TurnState = "idle"
	TurnStateRecording    TurnState = "recording"
	TurnStateTranscribing TurnState = "transcribing"
	TurnStateGenerating   TurnState = "generating"
	TurnStateSynthesizing TurnState = "synthesizing"
	TurnStateError        TurnState = "error"
)

// StatusReason provides a structured reason for state transitions.
type StatusReason string

const (
	ReasonReady               StatusReason = "ready"
	ReasonRecordingStarted    StatusReason = "recording_started"
	ReasonRecordingRestarted  StatusReason = "recording_restarted"
	ReasonTranscribing        StatusReason = "transcribing"
	ReasonGenerating          StatusReason = "generating"
	ReasonQueryingDocuments   StatusReason = "querying_documents"
	ReasonSynthesizing        StatusReason = "synthesizing"
	ReasonRetryingSynthesis   StatusReason = "retrying_synthesis"
	ReasonResponding          StatusReason = "responding"
	ReasonTextOnly            StatusReason = "text_only"
	ReasonMicUnavailable      StatusReason = "mic_unavailable"
	ReasonNoAudio             StatusReason = "no_audio"
	ReasonNoTranscript        StatusReason = "no_transcript"
	ReasonTranscriptionFailed StatusReason = "transcription_failed"
	ReasonGenerationFailed    StatusReason = "generation_failed"
	ReasonQueryFailed         StatusReason = "query_failed"
	ReasonSynthesisAuthFailed StatusReason = "synthesis_auth_failed"
	ReasonAuthFailed          StatusReason = "auth_failed"
	ReasonUploadingDocuments  StatusReason = "uploading_documents"
	ReasonDocumentsReady      StatusReason = "documents_ready"
	ReasonUploadFailed        StatusReason = "upload_failed"
	ReasonDocumentsCleared    StatusReason = "documents_cleared"
	ReasonHistoryCleared      StatusReason = "history_cleared"
	ReasonHistoryUnavailable  StatusReason = "history_unavailable"
	ReasonCommitFailed        StatusReason = "commit_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup            ErrorCode = "startup"
	ErrorCodeDevice             ErrorCode = "device"
	ErrorCodeEmptyRecording     ErrorCode = "empty_recording"
	ErrorCodeEmptyTranscription ErrorCode = "empty_transcription"
	ErrorCodeAuth               ErrorCode = "auth"
	ErrorCodeTranscription      ErrorCode = "transcription"
	ErrorCodeGeneration         ErrorCode = "generation"
	ErrorCodeQuery              ErrorCode = "query"
	ErrorCodeUpload             ErrorCode = "upload"
	ErrorCodeSynthesis          ErrorCode = "synthesis"
	ErrorCodeStore              ErrorCode = "store"
)

// Mode selects which conversation partition a turn belongs to.
type Mode string

const (
	ModeFreeChat         Mode = "chat"
	ModeDocumentGrounded Mode = "document"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeFreeChat || m == ModeDocumentGrounded
}

// Language is the closed set of conversation languages.
type Language string

const (
	LanguageHindi   Language = "Hindi"
	LanguageEnglish Language = "English"
	LanguageArabic  Language = "Arabic"
)

// Languages lists the supported languages in display order.
func Languages() []Language {
	return []Language{LanguageHindi, LanguageEnglish, LanguageArabic}
}

// ParseLanguage matches input case-insensitively against the supported set.
func ParseLanguage(input string) (Language, bool) {
	value := strings.TrimSpace(input)
	for _, lang := range Languages() {
		if strings.EqualFold(value, string(lang)) {
			return lang, true
		}
	}
	return "", false
}

// Wire returns the lowercase form the remote services expect.
func (l Language) Wire() string {
	return strings.ToLower(string(l))
}

// Exchange is one committed user utterance and its answer.
// Mode tags whether AnswerText came from free chat or from the document set.
type Exchange struct {
	ID         string    `json:"id"`
	UserText   string    `json:"userText"`
	AnswerText string    `json:"answerText"`
	Mode       Mode      `json:"mode"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Document is one processed upload. Ref is the opaque server-side object
// echoed back on every document query.
type Document struct {
	Filename string          `json:"filename"`
	IsImage  bool            `json:"isImage"`
	Ref      json.RawMessage `json:"-"`
}

// DocumentSet is the collection of documents attached to the session.
type DocumentSet struct {
	Documents []Document `json:"documents"`
}

func (s DocumentSet) Len() int { return len(s.Documents) }

func (s DocumentSet) Empty() bool { return len(s.Documents) == 0 }

// Filenames lists document names in upload order.
func (s DocumentSet) Filenames() []string {
	names := make([]string, 0, len(s.Documents))
	for _, doc := range s.Documents {
		names = append(names, doc.Filename)
	}
	return names
}

// UploadFile is a local file selected for upload.
type UploadFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Transcription is the result of a transcription call.
type Transcription struct {
	Text             string `json:"text"`
	DetectedLanguage string `json:"detectedLanguage"`
}

// TurnResult is returned once a turn has produced its answer.
type TurnResult struct {
	Exchange Exchange     `json:"exchange"`
	Spoken   bool         `json:"spoken"`
	Reason   StatusReason `json:"reason"`
}

// Status summarizes the current runtime status.
type Status struct {
	State     TurnState    `json:"state"`
	Active    bool         `json:"active"`
	Reason    StatusReason `json:"reason,omitempty"`
	Mode      Mode         `json:"mode"`
	Language  Language     `json:"language"`
	Documents []string     `json:"documents"`
	Message   string       `json:"message,omitempty"`
}
