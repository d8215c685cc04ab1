package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"mychat/pkg/chattypes"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// ErrMalformedResponse marks a provider response that cannot be turned into a reply.
var ErrMalformedResponse = errors.New("malformed completion response")

// ErrNotConfigured is returned when a provider has no API key.
var ErrNotConfigured = errors.New("provider not configured")

// classifyError wraps err into a CompletionServiceError for the given provider and model.
func classifyError(provider, model string, err error) *chattypes.CompletionServiceError {
	var existing *chattypes.CompletionServiceError
	if errors.As(err, &existing) {
		return existing
	}

	kind, status := errorKind(err)
	return &chattypes.CompletionServiceError{
		Provider:   provider,
		Model:      model,
		Kind:       kind,
		StatusCode: status,
		Err:        err,
	}
}

func errorKind(err error) (chattypes.ErrorKind, int) {
	if errors.Is(err, ErrMalformedResponse) {
		return chattypes.KindMalformed, 0
	}
	if errors.Is(err, ErrNotConfigured) {
		return chattypes.KindAuthentication, 0
	}

	if status := apiStatus(err); status != 0 {
		return kindForStatus(status), status
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return chattypes.KindNetwork, 0
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return chattypes.KindNetwork, 0
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return chattypes.KindNetwork, 0
	}

	return chattypes.KindAPI, 0
}

// apiStatus extracts the HTTP status carried by an SDK error, or 0.
func apiStatus(err error) int {
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}
	var genaiPtrErr *genai.APIError
	if errors.As(err, &genaiPtrErr) && genaiPtrErr != nil {
		return genaiPtrErr.Code
	}
	return 0
}

func kindForStatus(status int) chattypes.ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return chattypes.KindAuthentication
	case http.StatusTooManyRequests:
		return chattypes.KindRateLimited
	default:
		return chattypes.KindAPI
	}
}
