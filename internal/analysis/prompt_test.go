package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicekey/voicekey/internal/feature"
)

func TestParseComparison(t *testing.T) {
	t.Run("plain JSON object", func(t *testing.T) {
		raw := `{"same_speaker_probability": 0.85, "similarities": ["similar pitch"], "differences": [], "analysis_notes": "Close match."}`

		c, err := parseComparison(raw)
		require.NoError(t, err)
		assert.InDelta(t, 0.85, c.Confidence, 1e-9)
		assert.Contains(t, c.Commentary, "Close match.")
		assert.Contains(t, c.Commentary, "Similarities: similar pitch.")
	})

	t.Run("JSON wrapped in prose and code fence", func(t *testing.T) {
		raw := "Here is my analysis:\n```json\n{\"same_speaker_probability\": 0.3, \"analysis_notes\": \"Likely different speakers.\"}\n```\nLet me know if you need more."

		c, err := parseComparison(raw)
		require.NoError(t, err)
		assert.InDelta(t, 0.3, c.Confidence, 1e-9)
		assert.Equal(t, "Likely different speakers.", c.Commentary)
	})

	t.Run("differences appended to commentary", func(t *testing.T) {
		raw := `{"same_speaker_probability": 0.1, "differences": ["pitch range", "speaking rate"], "analysis_notes": "Distinct."}`

		c, err := parseComparison(raw)
		require.NoError(t, err)
		assert.Contains(t, c.Commentary, "Differences: pitch range; speaking rate.")
	})

	t.Run("no JSON object", func(t *testing.T) {
		_, err := parseComparison("I cannot compare these samples.")
		assert.Error(t, err)
	})

	t.Run("probability out of range", func(t *testing.T) {
		_, err := parseComparison(`{"same_speaker_probability": 1.7}`)
		assert.Error(t, err)
	})

	t.Run("probability not a number", func(t *testing.T) {
		_, err := parseComparison(`{"same_speaker_probability": "high"}`)
		assert.Error(t, err)
	})
}

func TestFeatureSummary(t *testing.T) {
	mfcc := make([]float64, feature.MFCCDim)
	for i := range mfcc {
		mfcc[i] = 1
	}
	v := feature.Vector{
		MFCC:      mfcc,
		Duration:  4.2,
		RMSEnergy: 0.05,
		Prosodic:  feature.Prosodic{PitchMean: 150},
		Spectral:  feature.Spectral{CentroidMean: 2000},
	}

	summary := featureSummary(v)
	assert.Contains(t, summary, "Duration: 4.20 seconds")
	assert.Contains(t, summary, "pitch_mean=150.00")
	assert.Contains(t, summary, "centroid_mean=2000.00")
	assert.Contains(t, summary, "MFCC (avg of first 8 stats): 1.0000")
}

func TestComparePromptIncludesBothSamples(t *testing.T) {
	req := CompareRequest{
		Probe:              feature.Vector{Duration: 3.1},
		ProbeTranscript:    "open the vault",
		Enrolled:           feature.Vector{Duration: 5.9},
		EnrolledTranscript: "my voice is my passport",
	}

	prompt := comparePrompt(req)
	assert.Contains(t, prompt, "open the vault")
	assert.Contains(t, prompt, "my voice is my passport")
	assert.Contains(t, prompt, "same_speaker_probability")
}
