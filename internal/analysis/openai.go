package analysis

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client          *openai.Client
	transcribeModel string
	compareModel    string
}

func NewOpenAIProvider(apiKey, transcribeModel, compareModel string) *OpenAIProvider {
	if transcribeModel == "" {
		transcribeModel = openai.Whisper1
	}
	if compareModel == "" {
		compareModel = openai.GPT4o
	}
	return &OpenAIProvider{
		client:          openai.NewClient(apiKey),
		transcribeModel: transcribeModel,
		compareModel:    compareModel,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Transcribe(ctx context.Context, audio []byte, format string) (*Transcription, error) {
	if format == "" {
		format = "wav"
	}

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.transcribeModel,
		Reader:   bytes.NewReader(audio),
		FilePath: "sample." + format, // filename only; the SDK needs it for the multipart part
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	return &Transcription{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}

func (p *OpenAIProvider) CompareVoices(ctx context.Context, req CompareRequest) (*Comparison, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.compareModel,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: compareSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: comparePrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai compare: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai compare: empty response")
	}

	return parseComparison(resp.Choices[0].Message.Content)
}

func (p *OpenAIProvider) DescribeVoice(ctx context.Context, req ProfileRequest) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.compareModel,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: profileSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: profilePrompt(req)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai profile: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai profile: empty response")
	}

	return resp.Choices[0].Message.Content, nil
}
