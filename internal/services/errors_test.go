package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"mychat/pkg/chattypes"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   chattypes.ErrorKind
		wantStatus int
	}{
		{"malformed", fmt.Errorf("%w: no choices", ErrMalformedResponse), chattypes.KindMalformed, 0},
		{"not configured", ErrNotConfigured, chattypes.KindAuthentication, 0},
		{"canceled", context.Canceled, chattypes.KindNetwork, 0},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), chattypes.KindNetwork, 0},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, chattypes.KindNetwork, 0},
		{"dial error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, chattypes.KindNetwork, 0},
		{"gemini unauthorized", genai.APIError{Code: 401, Message: "bad key"}, chattypes.KindAuthentication, 401},
		{"gemini forbidden", genai.APIError{Code: 403}, chattypes.KindAuthentication, 403},
		{"gemini rate limited", fmt.Errorf("gemini request failed: %w", genai.APIError{Code: 429}), chattypes.KindRateLimited, 429},
		{"gemini server error", genai.APIError{Code: 500}, chattypes.KindAPI, 500},
		{"other", errors.New("something odd"), chattypes.KindAPI, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError("openai", "gpt-4", tt.err)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, "openai", got.Provider)
			assert.Equal(t, "gpt-4", got.Model)

			// genai.APIError is a non-comparable value type, so errors.Is cannot match it.
			var want genai.APIError
			if errors.As(tt.err, &want) {
				var apiErr genai.APIError
				if assert.ErrorAs(t, got, &apiErr) {
					assert.Equal(t, want.Code, apiErr.Code)
					assert.Equal(t, want.Message, apiErr.Message)
				}
				return
			}
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyError_KeepsExisting(t *testing.T) {
	original := &chattypes.CompletionServiceError{Provider: "gemini", Kind: chattypes.KindRateLimited, Err: errors.New("slow down")}
	got := classifyError("openai", "gpt-4", fmt.Errorf("outer: %w", original))
	assert.Same(t, original, got)
}
