package junoai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic calls the Anthropic Messages API through the official SDK.
type Anthropic struct {
	Model string

	apiKey string
	client anthropic.Client
}

// NewAnthropic builds a completer for model. opts are applied after the
// defaults, e.g. option.WithBaseURL in tests.
func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *Anthropic {
	defaults := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(25 * time.Second),
		option.WithMaxRetries(1),
	}
	return &Anthropic{
		Model:  model,
		apiKey: apiKey,
		client: anthropic.NewClient(append(defaults, opts...)...),
	}
}

func (a *Anthropic) Complete(ctx context.Context, req Request) (Completion, error) {
	if a.apiKey == "" {
		return Completion{}, ErrMissingCredential
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(maxTokens(req)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, m := range normalize(req.Messages) {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("completion request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Completion{}, fmt.Errorf("%w: no text content", ErrMalformedResponse)
	}

	model := a.Model
	if msg.Model != "" {
		model = string(msg.Model)
	}
	return Completion{
		Content: text.String(),
		Tokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		Model:   model,
	}, nil
}
