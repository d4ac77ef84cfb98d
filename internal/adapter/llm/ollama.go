// Package llm talks to a local Ollama server to turn prompts into answers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docrag/internal/domain"
)

const (
	DefaultURL         = "http://localhost:11434/api/generate"
	DefaultModel       = "gemma3:1b"
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultNumCtx      = 4096
	DefaultTimeout     = 60 * time.Second
)

// Config describes the generation endpoint and sampling options.
type Config struct {
	URL         string
	Model       string
	Temperature float64
	TopP        float64
	NumCtx      int
	Timeout     time.Duration
}

type OllamaGenerator struct {
	cfg    Config
	client *http.Client
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumCtx      int     `json:"num_ctx"`
}

// generateResponse covers both the native Ollama reply and the
// OpenAI-style chat completion shape some proxies return.
type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
	Choices  []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices,omitempty"`
}

func NewOllamaGenerator(cfg Config) *OllamaGenerator {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.TopP == 0 {
		cfg.TopP = DefaultTopP
	}
	if cfg.NumCtx == 0 {
		cfg.NumCtx = DefaultNumCtx
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OllamaGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *OllamaGenerator) ModelName() string {
	return g.cfg.Model
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneratorUnavailable, err)
	}
	return text, nil
}

func (g *OllamaGenerator) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:  g.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: g.cfg.Temperature,
			TopP:        g.cfg.TopP,
			NumCtx:      g.cfg.NumCtx,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned %s: %s", resp.Status, preview(body))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", genResp.Error)
	}

	text := genResp.Response
	if text == "" && len(genResp.Choices) > 0 {
		text = genResp.Choices[0].Message.Content
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", g.cfg.Model)
	}
	return text, nil
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
