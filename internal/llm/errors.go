package llm

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"
)

// IsTransient reports whether err is worth retrying: rate limits, provider
// 5xx responses, and deadline expiry. Everything else (bad request, auth,
// safety blocks) propagates immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return false
}
