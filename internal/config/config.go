package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Matching MatchingConfig
	Analysis AnalysisConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

// MatchingConfig holds the decision thresholds and fusion weights.
// SimilarityWeight and AIWeight must sum to 1.
type MatchingConfig struct {
	SimilarityThreshold float64
	MinConfidenceScore  float64
	MinSampleCount      int
	SimilarityWeight    float64
	AIWeight            float64
	MinSampleDuration   time.Duration
}

type AnalysisConfig struct {
	OpenAIKey       string
	AnthropicKey    string
	Provider        string // "openai" or "anthropic"
	TranscribeModel string
	CompareModel    string
	Timeout         time.Duration
	MaxRetries      int
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	simThreshold, err := getEnvFloat("SIMILARITY_THRESHOLD", 0.8)
	if err != nil {
		return nil, fmt.Errorf("invalid SIMILARITY_THRESHOLD: %w", err)
	}

	minConfidence, err := getEnvFloat("MIN_CONFIDENCE_SCORE", 0.7)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_CONFIDENCE_SCORE: %w", err)
	}

	minSamples, err := getEnvInt("MIN_SAMPLE_COUNT", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_SAMPLE_COUNT: %w", err)
	}

	simWeight, err := getEnvFloat("SIMILARITY_WEIGHT", 0.6)
	if err != nil {
		return nil, fmt.Errorf("invalid SIMILARITY_WEIGHT: %w", err)
	}

	aiWeight, err := getEnvFloat("AI_WEIGHT", 0.4)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_WEIGHT: %w", err)
	}

	analysisTimeout, err := getEnvDuration("ANALYSIS_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_TIMEOUT: %w", err)
	}

	minDuration, err := getEnvDuration("MIN_SAMPLE_DURATION", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_SAMPLE_DURATION: %w", err)
	}

	maxRetries, err := getEnvInt("ANALYSIS_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_MAX_RETRIES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Matching: MatchingConfig{
			SimilarityThreshold: simThreshold,
			MinConfidenceScore:  minConfidence,
			MinSampleCount:      minSamples,
			SimilarityWeight:    simWeight,
			AIWeight:            aiWeight,
			MinSampleDuration:   minDuration,
		},
		Analysis: AnalysisConfig{
			OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:    getEnv("ANTHROPIC_API_KEY", ""),
			Provider:        getEnv("ANALYSIS_PROVIDER", "openai"),
			TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),
			CompareModel:    getEnv("COMPARE_MODEL", ""),
			Timeout:         analysisTimeout,
			MaxRetries:      maxRetries,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	m := c.Matching
	if math.Abs(m.SimilarityWeight+m.AIWeight-1.0) > 1e-9 {
		return fmt.Errorf("SIMILARITY_WEIGHT + AI_WEIGHT must sum to 1, got %g", m.SimilarityWeight+m.AIWeight)
	}
	if m.SimilarityThreshold < 0 || m.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in [0,1], got %g", m.SimilarityThreshold)
	}
	if m.MinConfidenceScore < 0 || m.MinConfidenceScore > 1 {
		return fmt.Errorf("MIN_CONFIDENCE_SCORE must be in [0,1], got %g", m.MinConfidenceScore)
	}
	if m.MinSampleCount < 1 {
		return fmt.Errorf("MIN_SAMPLE_COUNT must be at least 1, got %d", m.MinSampleCount)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
