// Package chat streams LLM completions for a conversation.
package chat

import (
	"context"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role string
	Text string
}

// Streamer produces a completion for messages, calling onDelta for every
// text fragment in order. An error from onDelta stops the stream.
type Streamer interface {
	Stream(ctx context.Context, messages []Message, onDelta func(string) error) error
}

// WirePart is one part of a UI message. Only text parts carry content.
type WirePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// WireMessage accepts both the {role, content} and {role, parts} shapes.
type WireMessage struct {
	Role    string     `json:"role"`
	Content string     `json:"content"`
	Parts   []WirePart `json:"parts"`
}

// InputError points at the offending message field.
type InputError struct {
	Index   int
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Index < 0 {
		return e.Message
	}
	return fmt.Sprintf("messages[%d].%s: %s", e.Index, e.Field, e.Message)
}

// FromWire validates the request messages and flattens text parts.
func FromWire(in []WireMessage) ([]Message, error) {
	if len(in) == 0 {
		return nil, &InputError{Index: -1, Field: "messages", Message: "At least one message is required"}
	}
	out := make([]Message, 0, len(in))
	for i, wire := range in {
		switch wire.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return nil, &InputError{Index: i, Field: "role", Message: "Role must be system, user or assistant"}
		}
		text := wire.Content
		if text == "" {
			var parts []string
			for _, part := range wire.Parts {
				if part.Type == "text" && part.Text != "" {
					parts = append(parts, part.Text)
				}
			}
			text = strings.Join(parts, "")
		}
		if strings.TrimSpace(text) == "" {
			return nil, &InputError{Index: i, Field: "content", Message: "Message content is required"}
		}
		out = append(out, Message{Role: wire.Role, Text: text})
	}
	return out, nil
}
