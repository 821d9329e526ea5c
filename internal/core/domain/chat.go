package domain

import (
	"errors"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Mode     string        `json:"mode,omitempty"`
	UseTools *bool         `json:"useTools,omitempty"`
}

// Validate checks message roles and content before any retrieval happens.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return WrapError(ErrInvalidInput, "validate chat request", errors.New("messages array is required and cannot be empty"))
	}
	for _, msg := range r.Messages {
		if msg.Role == "" || msg.Content == "" {
			return WrapError(ErrInvalidInput, "validate chat request", errors.New("each message must have role and content"))
		}
		switch msg.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return WrapError(ErrInvalidInput, "validate chat request", errors.New("invalid message role"))
		}
		if strings.TrimSpace(msg.Content) == "" {
			return WrapError(ErrInvalidInput, "validate chat request", errors.New("message content must be a non-empty string"))
		}
	}
	return nil
}

// LastUserMessage returns the most recent user turn, or "" when there is none.
func (r ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return strings.TrimSpace(r.Messages[i].Content)
		}
	}
	return ""
}

// AnswerStream carries answer deltas and the context they were grounded on.
// Deltas is closed when generation ends; Err yields at most one error.
type AnswerStream struct {
	Sources []RetrievedDocument
	Deltas  <-chan string
	Err     <-chan error
}
