package model

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// RetryConfig is the reusable retry policy applied to enrichment requests
// and ingestion conflict retries
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per operation
	MaxAttempts int

	// BackoffBase is the initial backoff duration
	BackoffBase time.Duration

	// BackoffMultiplier is applied to the backoff on each retry
	BackoffMultiplier float64

	// MaxBackoff caps the backoff duration
	MaxBackoff time.Duration

	// Timeout bounds each single attempt
	Timeout time.Duration
}

// DefaultRetryConfig returns sensible retry defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
		Timeout:           45 * time.Second,
	}
}

// Backoff computes the exponential backoff before the given retry with
// +/- 25% jitter to prevent synchronized retries
func (c RetryConfig) Backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.BackoffBase) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// EnrichmentConfiguration holds all settings for the enrichment pipeline
type EnrichmentConfiguration struct {
	// BaseURL of the OpenAI-compatible text generation endpoint
	BaseURL string

	// Model identifier sent with each request
	Model string

	// Retry policy for model-backed enrichment calls
	Retry RetryConfig

	// Mock switches enrichment to the deterministic fallback provider only
	Mock bool

	// MaxParallel bounds concurrent chunk enrichment within a file
	MaxParallel int
}

// DefaultEnrichmentConfiguration returns defaults targeting a local Ollama
func DefaultEnrichmentConfiguration() *EnrichmentConfiguration {
	return &EnrichmentConfiguration{
		BaseURL:     "http://localhost:11434/v1",
		Model:       "deepseek-coder:1.3b",
		Retry:       DefaultRetryConfig(),
		Mock:        false,
		MaxParallel: 4,
	}
}

// NewEnrichmentConfigurationFromEnv creates a configuration from environment
// variables. A .env file is loaded if present; existing variables win.
func NewEnrichmentConfigurationFromEnv() (*EnrichmentConfiguration, error) {
	_ = godotenv.Load()

	config := DefaultEnrichmentConfiguration()

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		config.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		config.Model = v
	}
	if v := os.Getenv("LLM_RETRY_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil || attempts < 1 {
			return nil, fmt.Errorf("invalid LLM_RETRY_ATTEMPTS %q", v)
		}
		config.Retry.MaxAttempts = attempts
	}
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 1 {
			return nil, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS %q", v)
		}
		config.Retry.Timeout = time.Duration(seconds) * time.Second
	}
	if v := os.Getenv("MOCK_ENRICHMENT"); v != "" {
		mock, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MOCK_ENRICHMENT %q", v)
		}
		config.Mock = mock
	}
	if v := os.Getenv("LLM_MAX_PARALLEL"); v != "" {
		parallel, err := strconv.Atoi(v)
		if err != nil || parallel < 1 {
			return nil, fmt.Errorf("invalid LLM_MAX_PARALLEL %q", v)
		}
		config.MaxParallel = parallel
	}

	return config, nil
}
