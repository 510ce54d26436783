// Package junoai talks to the AI completion service that produces assistant
// turns for relayed chat messages.
package junoai

import (
	"context"
	"errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrMissingCredential = errors.New("missing ai credential")
	ErrMalformedResponse = errors.New("malformed completion response")
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request: a system prompt plus chronological turns,
// the last of which is the new user turn.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Completion is the assistant's reply.
type Completion struct {
	Content string
	Tokens  int
	Model   string
}

// Completer produces completions. Implementations report every failure as an
// error; callers decide on fallbacks.
type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// normalize drops empty turns and leading assistant turns, and merges
// consecutive turns of the same role, since the messages APIs require
// alternating roles starting with the user.
func normalize(msgs []Message) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Content == "" || (m.Role != RoleUser && m.Role != RoleAssistant) {
			continue
		}
		if len(out) == 0 && m.Role != RoleUser {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}
