package remote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"voxchat/internal/domain"
	"voxchat/internal/retry"
)

var authMarkers = []string{"invalid_api_key", "Incorrect API key"}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// classify turns a non-2xx response into a domain error.
func classify(kind error, status int, body []byte) error {
	detail := extractDetail(body)
	if detail == "" {
		detail = http.StatusText(status)
	}

	if isAuthFailure(status, detail) {
		return &domain.ServiceError{Kind: domain.ErrAuth, Status: status, Detail: detail}
	}
	if status == http.StatusTooManyRequests && errors.Is(kind, domain.ErrSynthesis) {
		return &domain.RateLimitError{RetryAfter: retry.DelayFor(detail), Detail: detail}
	}
	return &domain.ServiceError{Kind: kind, Status: status, Detail: detail}
}

func isAuthFailure(status int, detail string) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	for _, marker := range authMarkers {
		if strings.Contains(detail, marker) {
			return true
		}
	}
	return false
}

// extractDetail reads {"detail": ...}. String details are returned as-is,
// structured ones as their JSON text, and non-JSON bodies verbatim.
func extractDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Detail) == 0 {
		return trimmed
	}

	var text string
	if err := json.Unmarshal(parsed.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(string(parsed.Detail))
}

func isEmptyTranscriptionDetail(err error) bool {
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || !errors.Is(svcErr.Kind, domain.ErrTranscription) {
		return false
	}
	return strings.Contains(strings.ToLower(svcErr.Detail), "transcription is empty")
}
