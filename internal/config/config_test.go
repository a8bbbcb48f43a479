package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/voicekey")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 0.8, cfg.Matching.SimilarityThreshold)
	assert.Equal(t, 0.7, cfg.Matching.MinConfidenceScore)
	assert.Equal(t, 3, cfg.Matching.MinSampleCount)
	assert.Equal(t, 0.6, cfg.Matching.SimilarityWeight)
	assert.Equal(t, 0.4, cfg.Matching.AIWeight)
	assert.Equal(t, 3*time.Second, cfg.Matching.MinSampleDuration)
	assert.Equal(t, 30*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 2, cfg.Analysis.MaxRetries)
	assert.Equal(t, "openai", cfg.Analysis.Provider)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("MIN_SAMPLE_DURATION", "5s")
	t.Setenv("ANALYSIS_PROVIDER", "anthropic")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0.9, cfg.Matching.SimilarityThreshold)
	assert.Equal(t, 5*time.Second, cfg.Matching.MinSampleDuration)
	assert.Equal(t, "anthropic", cfg.Analysis.Provider)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("missing required vars", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("weights must sum to one", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SIMILARITY_WEIGHT", "0.6")
		t.Setenv("AI_WEIGHT", "0.6")

		cfg, err := Load()
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "must sum to 1")
	})

	t.Run("threshold out of range", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SIMILARITY_THRESHOLD", "1.5")

		cfg, err := Load()
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "SIMILARITY_THRESHOLD")
	})

	t.Run("sample count floor", func(t *testing.T) {
		setRequired(t)
		t.Setenv("MIN_SAMPLE_COUNT", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "MIN_SAMPLE_COUNT")
	})
}
