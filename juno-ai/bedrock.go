package junoai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
	"github.com/aws/aws-sdk-go/service/bedrockruntime/bedrockruntimeiface"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// messagesRequest is the Anthropic messages body Bedrock expects.
type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []Message `json:"messages"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (r messagesResponse) completion(model string) (Completion, error) {
	var text strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Completion{}, fmt.Errorf("%w: no text content", ErrMalformedResponse)
	}
	if r.Model != "" {
		model = r.Model
	}
	return Completion{
		Content: text.String(),
		Tokens:  r.Usage.InputTokens + r.Usage.OutputTokens,
		Model:   model,
	}, nil
}

// Bedrock invokes an Anthropic model hosted on Amazon Bedrock. Credentials
// come from the Lambda execution role.
type Bedrock struct {
	API     bedrockruntimeiface.BedrockRuntimeAPI
	ModelID string
}

func (b *Bedrock) Complete(ctx context.Context, req Request) (Completion, error) {
	body, err := json.Marshal(messagesRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        maxTokens(req),
		System:           req.System,
		Messages:         normalize(req.Messages),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	output, err := b.API.InvokeModelWithContext(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to invoke model %v: %w", b.ModelID, err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(output.Body, &parsed); err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return parsed.completion(b.ModelID)
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return 1024
}
