// Package chattypes defines the conversation, model and completion types shared by mychat.
// This file contains the role-tagged message type that makes up a conversation history.
package chattypes

import "fmt"

// Role identifies who produced a message in the conversation.
type Role int

const (
	// RoleSystem marks the instruction message that opens every conversation.
	RoleSystem Role = iota
	// RoleUser marks a turn typed by the user.
	RoleUser
	// RoleAssistant marks a reply produced by the completion service.
	RoleAssistant
)

// String returns the wire name of the role ("system", "user", "assistant").
func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole converts a wire name back into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "system":
		return RoleSystem, nil
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return 0, fmt.Errorf("unknown message role %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so roles serialize as their names.
func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal %s", r)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Message is one role-tagged utterance in the conversation.
// Messages are values; once appended to a history they are never modified.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with the given role and text body.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message { return NewMessage(RoleSystem, content) }

// UserMessage creates a user message.
func UserMessage(content string) Message { return NewMessage(RoleUser, content) }

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }
