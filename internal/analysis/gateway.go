package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicekey/voicekey/internal/config"
	"github.com/voicekey/voicekey/pkg/audiometa"
)

// Gateway routes analysis calls to the configured provider, bounds every
// call with the configured timeout, and retries transient failures. A call
// that exhausts its retries (or its deadline) surfaces as the matching
// Unavailable sentinel so callers can degrade instead of failing.
type Gateway struct {
	providers   map[string]Provider
	compareWith string
	timeout     time.Duration
	maxRetries  int
}

var _ Analyzer = (*Gateway)(nil)

func NewGateway(cfg config.AnalysisConfig) *Gateway {
	g := &Gateway{
		providers:   make(map[string]Provider),
		compareWith: cfg.Provider,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey, cfg.TranscribeModel, cfg.CompareModel)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey, cfg.CompareModel)
	}

	return g
}

// Transcribe always uses the OpenAI provider: it is the only configured
// backend with a speech-to-text endpoint.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte, format string) (*Transcription, error) {
	p, ok := g.providers["openai"]
	if !ok {
		return nil, fmt.Errorf("%w: no transcription provider configured", ErrTranscriptionUnavailable)
	}

	if format == "" {
		detected, err := audiometa.Detect(audio)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, err)
		}
		format = detected
	}

	var result *Transcription
	err := g.withRetry(ctx, "transcribe", func(ctx context.Context) error {
		t, err := p.Transcribe(ctx, audio, format)
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, err)
	}
	return result, nil
}

func (g *Gateway) CompareVoices(ctx context.Context, req CompareRequest) (*Comparison, error) {
	p, err := g.compareProvider()
	if err != nil {
		return nil, err
	}

	var result *Comparison
	err = g.withRetry(ctx, "compare", func(ctx context.Context) error {
		c, err := p.CompareVoices(ctx, req)
		if err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	return result, nil
}

func (g *Gateway) DescribeVoice(ctx context.Context, req ProfileRequest) (string, error) {
	p, err := g.compareProvider()
	if err != nil {
		return "", err
	}

	var result string
	err = g.withRetry(ctx, "describe", func(ctx context.Context) error {
		s, err := p.DescribeVoice(ctx, req)
		if err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	return result, nil
}

func (g *Gateway) compareProvider() (Provider, error) {
	p, ok := g.providers[g.compareWith]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q not configured", ErrAnalysisUnavailable, g.compareWith)
	}
	return p, nil
}

func (g *Gateway) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying analysis call", "op", op, "attempt", attempt)
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		// Parent context gone: retrying cannot help.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("all retries exhausted: %w", lastErr)
}
