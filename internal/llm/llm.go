package llm

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("llm unavailable")

// MessageInput describes one reply request. ContextID identifies the chat the
// reply goes to, for example "group:123456".
type MessageInput struct {
	Connector    string
	ContextID    string
	DisplayName  string
	FromUserID   string
	Text         string
	SystemPrompt string
	IsDM         bool
}

type Responder interface {
	Reply(ctx context.Context, input MessageInput) (string, error)
}

// Disabled is a Responder that always reports ErrUnavailable.
type Disabled struct{}

func (Disabled) Reply(ctx context.Context, input MessageInput) (string, error) {
	return "", ErrUnavailable
}
