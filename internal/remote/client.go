package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	logx "voxchat/pkg/logger"

	"voxchat/internal/domain"
)

// Config controls the assistant backend connection.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements ports.Assistant against the assistant HTTP backend.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type historyEntry struct {
	User     string `json:"user"`
	AI       string `json:"ai,omitempty"`
	Document string `json:"document,omitempty"`
}

type promptRequest struct {
	Prompt      string         `json:"prompt"`
	ChatHistory []historyEntry `json:"chat_history"`
	Language    string         `json:"language"`
}

type ttsRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

type queryRequest struct {
	Query       string            `json:"query"`
	Documents   []json.RawMessage `json:"documents"`
	ChatHistory []historyEntry    `json:"chat_history"`
	Language    string            `json:"language"`
}

type transcribeResponse struct {
	Transcription string `json:"transcription"`
	Language      string `json:"language"`
}

type textResponse struct {
	Response string `json:"response"`
}

type uploadResponse struct {
	Documents []json.RawMessage `json:"documents"`
}

type documentHeader struct {
	Filename string `json:"filename"`
	IsImage  bool   `json:"is_image"`
}

// Transcribe sends captured audio to /transcribe.
func (c *Client) Transcribe(ctx context.Context, audio []byte, lang domain.Language) (domain.Transcription, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "user_input.wav")
	if err != nil {
		return domain.Transcription{}, fmt.Errorf("build transcription form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return domain.Transcription{}, fmt.Errorf("build transcription form: %w", err)
	}
	if err := form.WriteField("language", lang.Wire()); err != nil {
		return domain.Transcription{}, fmt.Errorf("build transcription form: %w", err)
	}
	if err := form.Close(); err != nil {
		return domain.Transcription{}, fmt.Errorf("build transcription form: %w", err)
	}

	var out transcribeResponse
	if err := c.do(ctx, "/transcribe", form.FormDataContentType(), &body, domain.ErrTranscription, &out); err != nil {
		if isEmptyTranscriptionDetail(err) {
			return domain.Transcription{}, domain.ErrEmptyTranscription
		}
		return domain.Transcription{}, err
	}

	text := strings.TrimSpace(out.Transcription)
	if text == "" {
		return domain.Transcription{}, domain.ErrEmptyTranscription
	}
	return domain.Transcription{Text: text, DetectedLanguage: out.Language}, nil
}

// GenerateResponse asks /generate_response for a free-chat answer.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, history []domain.Exchange, lang domain.Language) (string, error) {
	req := promptRequest{
		Prompt:      prompt,
		ChatHistory: wireHistory(history),
		Language:    lang.Wire(),
	}
	if req.ChatHistory == nil {
		req.ChatHistory = []historyEntry{}
	}

	var out textResponse
	if err := c.doJSON(ctx, "/generate_response", req, domain.ErrGeneration, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// SynthesizeSpeech converts an answer to audio through /tts.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string, lang domain.Language) ([]byte, error) {
	payload, err := json.Marshal(ttsRequest{Prompt: text, Language: lang.Wire()})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	var audio []byte
	err = c.do(ctx, "/tts", "application/json", bytes.NewReader(payload), domain.ErrSynthesis, &audio)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, &domain.ServiceError{Kind: domain.ErrSynthesis, Status: http.StatusOK, Detail: "empty audio response"}
	}
	return audio, nil
}

// QueryDocuments asks /query_documents to answer from the uploaded documents.
func (c *Client) QueryDocuments(ctx context.Context, query string, docs domain.DocumentSet, history []domain.Exchange, lang domain.Language) (string, error) {
	refs := make([]json.RawMessage, 0, docs.Len())
	for _, doc := range docs.Documents {
		refs = append(refs, doc.Ref)
	}
	req := queryRequest{
		Query:       query,
		Documents:   refs,
		ChatHistory: wireHistory(history),
		Language:    lang.Wire(),
	}
	if req.ChatHistory == nil {
		req.ChatHistory = []historyEntry{}
	}

	var out textResponse
	if err := c.doJSON(ctx, "/query_documents", req, domain.ErrQuery, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func wireHistory(history []domain.Exchange) []historyEntry {
	if len(history) == 0 {
		return nil
	}
	out := make([]historyEntry, 0, len(history))
	for _, ex := range history {
		entry := historyEntry{User: ex.UserText}
		switch ex.Mode {
		case domain.ModeDocumentGrounded:
			entry.Document = ex.AnswerText
		default:
			entry.AI = ex.AnswerText
		}
		out = append(out, entry)
	}
	return out
}

func (c *Client) doJSON(ctx context.Context, path string, req any, kind error, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.do(ctx, path, "application/json", bytes.NewReader(payload), kind, out)
}

// do posts body to path. out is either *[]byte for raw payloads or a JSON target.
func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader, kind error, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
		return &domain.ServiceError{Kind: kind, Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
		return &domain.ServiceError{Kind: kind, Status: resp.StatusCode, Detail: err.Error()}
	}

	logx.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Int("bytes", len(data)).
		Dur("took", time.Since(started)).
		Msg("assistant call finished")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(kind, resp.StatusCode, data)
	}
	if ctx.Err() != nil {
		return domain.ErrCancelled
	}

	if raw, ok := out.(*[]byte); ok {
		*raw = data
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.ServiceError{Kind: kind, Status: resp.StatusCode, Detail: fmt.Sprintf("invalid response: %v", err)}
	}
	return nil
}
