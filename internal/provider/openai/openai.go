package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vnmchuo/insight-gateway/internal/provider"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, DeepSeek, Groq, OpenRouter...).
type OpenAIProvider struct {
	cfg     provider.Config
	baseURL string
	client  *http.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Choices []openAIChoice `json:"choices"`
	Model   string         `json:"model"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

func New(cfg provider.Config) provider.Provider {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.ID == "" {
		cfg.ID = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &OpenAIProvider{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	headers := map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", p.cfg.APIKey),
	}

	var openAIResp openAIResponse
	if err := provider.PostJSON(ctx, p.client, p.cfg, url, headers, p.mapRequest(prompt), &openAIResp); err != nil {
		return "", err
	}

	if len(openAIResp.Choices) == 0 {
		return "", provider.NewError(p.Name(), provider.KindShape, fmt.Errorf("api returned no choices"))
	}
	content := openAIResp.Choices[0].Message.Content
	if content == nil || strings.TrimSpace(*content) == "" {
		return "", provider.NewError(p.Name(), provider.KindShape, fmt.Errorf("api returned empty message content"))
	}

	return *content, nil
}

func (p *OpenAIProvider) mapRequest(prompt string) openAIRequest {
	return openAIRequest{
		Model: p.cfg.Model,
		Messages: []openAIMessage{
			{Role: "user", Content: &prompt},
		},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.cfg.ID
}

func (p *OpenAIProvider) Timeout() time.Duration {
	return p.cfg.Timeout
}
