// Package analysis wraps the external speech-to-text and voice-comparison
// services. The decision engine depends only on the Analyzer interface, so a
// deterministic stub can stand in for the remote services in tests.
package analysis

import (
	"context"
	"errors"

	"github.com/voicekey/voicekey/internal/feature"
)

// ErrTranscriptionUnavailable indicates the speech-to-text service could not
// be reached or returned a failure. Degraded, not fatal: callers proceed
// without a transcript.
var ErrTranscriptionUnavailable = errors.New("transcription service unavailable")

// ErrAnalysisUnavailable indicates the voice-comparison service could not be
// reached or returned an unusable result. Degraded, not fatal: the decision
// engine falls back to signal-only scoring.
var ErrAnalysisUnavailable = errors.New("voice analysis service unavailable")

// Transcription is the speech-to-text result for one audio sample.
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// CompareRequest pairs a fresh probe sample with an enrolled one.
type CompareRequest struct {
	Probe              feature.Vector
	ProbeTranscript    string
	Enrolled           feature.Vector
	EnrolledTranscript string
}

// Comparison is the AI judgement on whether two samples share a speaker.
type Comparison struct {
	// Confidence is the same-speaker probability in [0,1].
	Confidence float64 `json:"confidence"`
	// Commentary is free-text reasoning from the analysis service.
	Commentary string `json:"commentary"`
}

// ProfileRequest asks for descriptive commentary on an enrolled voice,
// generated once after enrollment completes.
type ProfileRequest struct {
	Username   string
	Vector     feature.Vector
	Transcript string
}

// Analyzer is the contract the decision engine and enrollment service
// consume. Both failure modes are surfaced as the Unavailable sentinels and
// are recoverable by the caller.
type Analyzer interface {
	Transcribe(ctx context.Context, audio []byte, format string) (*Transcription, error)
	CompareVoices(ctx context.Context, req CompareRequest) (*Comparison, error)
	DescribeVoice(ctx context.Context, req ProfileRequest) (string, error)
}

// Provider is one concrete analysis backend (OpenAI, Anthropic). Providers
// return raw errors; the gateway maps them to the Unavailable sentinels.
type Provider interface {
	Analyzer
	Name() string
}
