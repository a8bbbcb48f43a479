package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voicekey/voicekey/internal/feature"
)

const compareSystemPrompt = "You are an expert voice comparison analyst. Provide detailed, objective comparison based on the voice features provided."

const profileSystemPrompt = "You are an expert voice profiling specialist. Create detailed, accurate voice profiles for identification purposes."

// featureSummary renders a vector as the plain-text block sent to the
// analysis service.
func featureSummary(v feature.Vector) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Duration: %.2f seconds\n", v.Duration)
	fmt.Fprintf(&b, "Audio energy (RMS): %.4f\n", v.RMSEnergy)
	p := v.Prosodic
	fmt.Fprintf(&b, "Prosodic: pitch_mean=%.2f, pitch_std=%.2f, pitch_range=%.2f, energy=%.4f, speaking_rate=%.2f\n",
		p.PitchMean, p.PitchStd, p.PitchRange, p.Energy, p.SpeakingRate)
	s := v.Spectral
	fmt.Fprintf(&b, "Spectral: centroid_mean=%.2f, rolloff_mean=%.2f, bandwidth_mean=%.2f, zero_crossing_mean=%.4f\n",
		s.CentroidMean, s.RolloffMean, s.BandwidthMean, s.ZeroCrossMean)
	if len(v.MFCC) >= 8 {
		var sum float64
		for _, x := range v.MFCC[:8] {
			sum += x
		}
		fmt.Fprintf(&b, "MFCC (avg of first 8 stats): %.4f\n", sum/8)
	}
	return b.String()
}

func comparePrompt(req CompareRequest) string {
	return fmt.Sprintf(`Compare these two voice samples and determine if they are from the same speaker.

Voice Sample 1:
%s
Transcript: %q

Voice Sample 2:
%s
Transcript: %q

Respond with JSON only, in this exact structure:
{
  "same_speaker_probability": 0.0,
  "similarities": ["..."],
  "differences": ["..."],
  "analysis_notes": "..."
}
same_speaker_probability must be a number between 0.0 and 1.0.`,
		featureSummary(req.Probe), req.ProbeTranscript,
		featureSummary(req.Enrolled), req.EnrolledTranscript)
}

func profilePrompt(req ProfileRequest) string {
	return fmt.Sprintf(`Create a concise voice profile for user %q.

Voice Features:
%s
Sample Speech: %q

Describe the distinctive characteristics of this voice (pitch, tone quality,
speaking rhythm, unique identifiers) in two or three sentences of plain text
suitable for display next to the user's profile.`,
		req.Username, featureSummary(req.Vector), req.Transcript)
}

type compareResult struct {
	SameSpeakerProbability json.Number `json:"same_speaker_probability"`
	Similarities           []string    `json:"similarities"`
	Differences            []string    `json:"differences"`
	AnalysisNotes          string      `json:"analysis_notes"`
}

// parseComparison extracts the JSON object from a model response that may be
// wrapped in prose or a code fence.
func parseComparison(raw string) (*Comparison, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in analysis response")
	}

	var res compareResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}

	conf, err := res.SameSpeakerProbability.Float64()
	if err != nil {
		return nil, fmt.Errorf("parse same_speaker_probability: %w", err)
	}
	if conf < 0 || conf > 1 {
		return nil, fmt.Errorf("same_speaker_probability %g out of range", conf)
	}

	commentary := res.AnalysisNotes
	if len(res.Similarities) > 0 {
		commentary += " Similarities: " + strings.Join(res.Similarities, "; ") + "."
	}
	if len(res.Differences) > 0 {
		commentary += " Differences: " + strings.Join(res.Differences, "; ") + "."
	}

	return &Comparison{Confidence: conf, Commentary: strings.TrimSpace(commentary)}, nil
}
