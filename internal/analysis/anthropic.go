package analysis

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider compares voices via the Claude API. It has no
// speech-to-text endpoint, so Transcribe always fails; the gateway pairs it
// with the OpenAI provider for transcription.
type AnthropicProvider struct {
	client       anthropic.Client
	compareModel string
}

func NewAnthropicProvider(apiKey, compareModel string) *AnthropicProvider {
	if compareModel == "" {
		compareModel = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		compareModel: compareModel,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Transcribe(_ context.Context, _ []byte, _ string) (*Transcription, error) {
	return nil, fmt.Errorf("anthropic does not provide speech-to-text")
}

func (p *AnthropicProvider) CompareVoices(ctx context.Context, req CompareRequest) (*Comparison, error) {
	resp, err := p.message(ctx, compareSystemPrompt, comparePrompt(req), 0.2)
	if err != nil {
		return nil, fmt.Errorf("anthropic compare: %w", err)
	}
	return parseComparison(resp)
}

func (p *AnthropicProvider) DescribeVoice(ctx context.Context, req ProfileRequest) (string, error) {
	resp, err := p.message(ctx, profileSystemPrompt, profilePrompt(req), 0.3)
	if err != nil {
		return "", fmt.Errorf("anthropic profile: %w", err)
	}
	return resp, nil
}

func (p *AnthropicProvider) message(ctx context.Context, system, user string, temperature float64) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.compareModel),
		MaxTokens:   1024,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", err
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}
