package chattypes

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_String(t *testing.T) {
	assert.Equal(t, "system", RoleSystem.String())
	assert.Equal(t, "user", RoleUser.String())
	assert.Equal(t, "assistant", RoleAssistant.String())
	assert.Equal(t, "role(9)", Role(9).String())
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{input: "system", want: RoleSystem},
		{input: "user", want: RoleUser},
		{input: "assistant", want: RoleAssistant},
		{input: "tool", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessage_JSON(t *testing.T) {
	data, err := json.Marshal(UserMessage("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hello"}`, string(data))

	var decoded Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":"hi"}`), &decoded))
	assert.Equal(t, AssistantMessage("hi"), decoded)

	err = json.Unmarshal([]byte(`{"role":"robot","content":"hi"}`), &decoded)
	assert.Error(t, err)

	_, err = json.Marshal(Message{Role: Role(7)})
	assert.Error(t, err)
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		input   string
		want    Tier
		wantErr bool
	}{
		{input: "fast", want: TierFast},
		{input: "advanced", want: TierAdvanced},
		{input: " Advanced ", want: TierAdvanced},
		{input: "frontier", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTier(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownTier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModelConfig_Validate(t *testing.T) {
	valid := ModelConfig{Tier: TierFast, Provider: ProviderOpenAI, Model: "gpt-3.5-turbo-0613", Temperature: 0}

	tests := []struct {
		name    string
		mutate  func(*ModelConfig)
		wantErr error
	}{
		{name: "valid", mutate: func(*ModelConfig) {}},
		{name: "upper bound", mutate: func(m *ModelConfig) { m.Temperature = 2.0 }},
		{name: "negative temperature", mutate: func(m *ModelConfig) { m.Temperature = -0.1 }, wantErr: ErrTemperatureRange},
		{name: "temperature too high", mutate: func(m *ModelConfig) { m.Temperature = 2.01 }, wantErr: ErrTemperatureRange},
		{name: "nan temperature", mutate: func(m *ModelConfig) { m.Temperature = math.NaN() }, wantErr: ErrTemperatureRange},
		{name: "unknown provider", mutate: func(m *ModelConfig) { m.Provider = "mistral" }, wantErr: ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	missingModel := valid
	missingModel.Model = "  "
	assert.Error(t, missingModel.Validate())
}

func TestCompletionServiceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &CompletionServiceError{
		Provider:   ProviderOpenAI,
		Model:      "gpt-4",
		Kind:       KindNetwork,
		StatusCode: 0,
		Err:        cause,
	}

	assert.Equal(t, "completion service error (network, provider openai, model gpt-4): connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("request reply: %w", err)
	var target *CompletionServiceError
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, KindNetwork, target.Kind)

	limited := &CompletionServiceError{Kind: KindRateLimited, StatusCode: 429}
	assert.Equal(t, "completion service error (rate_limited, status 429)", limited.Error())
}
