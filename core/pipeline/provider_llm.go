package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codegraphio/codegraph/model"
)

// maxResponseSize limits the model response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// LLMProvider enriches chunks through an OpenAI-compatible chat completion
// endpoint. Transport failures, timeouts and normalization failures are
// retried with exponential backoff; when all attempts are exhausted the
// chunk falls back to the deterministic heuristic with quality=fallback, so
// an unreachable endpoint never fails a run.
type LLMProvider struct {
	config     model.EnrichmentConfiguration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLMProvider creates a model-backed enrichment provider
func NewLLMProvider(config model.EnrichmentConfiguration, logger *slog.Logger) *LLMProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Retry.Timeout,
		},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Enrich sends the chunk prompt to the model endpoint with retries.
// It only returns an error when the context is cancelled; every other
// failure path resolves to the heuristic fallback result.
func (p *LLMProvider) Enrich(ctx context.Context, chunk *Chunk) (*model.EnrichmentResult, error) {
	prompt := buildPrompt(chunk)

	var lastErr error
	for attempt := 1; attempt <= p.config.Retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.tryOnce(ctx, prompt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Only transient failures are retried
		if !IsTransient(err) {
			p.logger.Warn("Enrichment request not retryable, using fallback",
				"chunk", chunk.Node.Name,
				"path", chunk.PathKey(),
				"fatal", IsFatal(err),
				"error", err)
			break
		}

		if attempt < p.config.Retry.MaxAttempts {
			backoff := p.config.Retry.Backoff(attempt)
			p.logger.Debug("Enrichment request failed, retrying",
				"chunk", chunk.Node.Name,
				"path", chunk.PathKey(),
				"attempt", attempt,
				"max_attempts", p.config.Retry.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	p.logger.Info("Enrichment attempts exhausted, using heuristic fallback",
		"chunk", chunk.Node.Name,
		"path", chunk.PathKey(),
		"error", lastErr)

	result := heuristicEnrich(chunk)
	result.Quality = model.QualityFallback
	return result, nil
}

// tryOnce executes a single request attempt with its own timeout.
// A response that cannot be normalized counts as a failed attempt.
func (p *LLMProvider) tryOnce(ctx context.Context, prompt string) (*model.EnrichmentResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.config.Retry.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       p.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.0,
		Stream:      false,
	})
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	url := strings.TrimSuffix(p.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Network errors and timeouts are transient
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	var chatResp chatResponse
	err = json.Unmarshal(respBody, &chatResp)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("parse response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return nil, NewTransientError(fmt.Errorf("response contained no choices"))
	}

	result, err := Normalize(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, NewTransientError(err)
	}

	return result, nil
}

func buildPrompt(chunk *Chunk) string {
	var b strings.Builder

	if chunk.Kind == ChunkClass {
		fmt.Fprintf(&b, "Analyze this %s declaration from a codebase.\n\n", strings.ToLower(chunk.Node.Kind))
		fmt.Fprintf(&b, "Name: %s\n", chunk.Node.Name)
		if len(chunk.Node.BaseTypes) > 0 {
			fmt.Fprintf(&b, "Base types: %s\n", strings.Join(chunk.Node.BaseTypes, ", "))
		}
		if len(chunk.MethodNames) > 0 {
			fmt.Fprintf(&b, "Methods: %s\n", strings.Join(chunk.MethodNames, ", "))
		}
	} else {
		b.WriteString("Analyze this method from a codebase.\n\n")
		fmt.Fprintf(&b, "Signature: %s\n", chunk.Node.Signature())
		if chunk.ClassName != "" {
			fmt.Fprintf(&b, "Declared in: %s\n", chunk.ClassName)
		}
	}

	b.WriteString("\nRespond with a single JSON object and nothing else:\n")
	b.WriteString(`{"summary": "<one sentence>", "tags": ["<tag>", ...], "dependencies": ["<referenced type name>", ...]}`)

	return b.String()
}
