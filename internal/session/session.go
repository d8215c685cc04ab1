// Package session implements the in-memory conversation state for one mychat user.
// A Session owns the ordered message history and the parallel list of per-turn costs.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mychat/internal/logger"
	"mychat/pkg/chattypes"
)

// DefaultSystemPrompt opens every conversation unless configuration overrides it.
const DefaultSystemPrompt = "You are a helpful assistant."

// ErrEmptyMessage is returned by AppendUser when the text has no content.
var ErrEmptyMessage = errors.New("message cannot be empty")

// Session is the conversation plus cost state for one user.
//
// Invariant: len(costs) equals the number of assistant messages in history.
// A Session is not safe for concurrent use; the UI shell owning it serializes access.
type Session struct {
	systemPrompt string
	history      []chattypes.Message
	costs        []float64
}

// New creates a session that already holds the system message.
// An empty prompt falls back to DefaultSystemPrompt.
func New(systemPrompt string) *Session {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	s := &Session{systemPrompt: systemPrompt}
	s.Reset()
	return s
}

// Reset discards history and costs and reinitializes history to the single system message.
func (s *Session) Reset() {
	s.history = []chattypes.Message{chattypes.SystemMessage(s.systemPrompt)}
	s.costs = []float64{}
}

// SystemPrompt returns the prompt used when the session is reset.
func (s *Session) SystemPrompt() string {
	return s.systemPrompt
}

// AppendUser appends a user turn to the history.
func (s *Session) AppendUser(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	s.history = append(s.history, chattypes.UserMessage(text))
	return nil
}

// RequestReply sends the full history to the completer. On success the assistant reply and its
// cost are appended; on failure the error is returned and the session is left untouched.
func (s *Session) RequestReply(ctx context.Context, completer chattypes.Completer, model chattypes.ModelConfig) (chattypes.Reply, error) {
	if err := model.Validate(); err != nil {
		return chattypes.Reply{}, fmt.Errorf("invalid model configuration: %w", err)
	}

	logger.Debug("Requesting reply", "provider", model.Provider, "model", model.Model, "messages", len(s.history))

	reply, err := completer.Complete(ctx, s.History(), model)
	if err != nil {
		return chattypes.Reply{}, err
	}

	if reply.Cost < 0 {
		return chattypes.Reply{}, &chattypes.CompletionServiceError{
			Provider: model.Provider,
			Model:    model.Model,
			Kind:     chattypes.KindMalformed,
			Err:      fmt.Errorf("negative reply cost %v", reply.Cost),
		}
	}

	s.history = append(s.history, chattypes.AssistantMessage(reply.Text))
	s.costs = append(s.costs, reply.Cost)

	logger.Debug("Reply appended", "turns", len(s.costs), "cost", reply.Cost)
	return reply, nil
}

// TotalCost returns the sum of all per-turn costs, 0 when there are none.
func (s *Session) TotalCost() float64 {
	total := 0.0
	for _, c := range s.costs {
		total += c
	}
	return total
}

// History returns a copy of the ordered message history.
func (s *Session) History() []chattypes.Message {
	out := make([]chattypes.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Costs returns a copy of the per-turn costs in turn order.
func (s *Session) Costs() []float64 {
	out := make([]float64, len(s.costs))
	copy(out, s.costs)
	return out
}

// Turns returns the number of completed assistant turns.
func (s *Session) Turns() int {
	return len(s.costs)
}

// Snapshot is a serializable view of a session.
type Snapshot struct {
	History   []chattypes.Message `json:"history"`
	Costs     []float64           `json:"costs"`
	TotalCost float64             `json:"total_cost"`
}

// Snapshot captures the current history, costs and total.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		History:   s.History(),
		Costs:     s.Costs(),
		TotalCost: s.TotalCost(),
	}
}
