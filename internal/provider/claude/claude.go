package claude

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vnmchuo/insight-gateway/internal/provider"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com/v1"
	DefaultModel     = "claude-3-5-haiku-20241022"
	defaultMaxTokens = 1024
	apiVersion       = "2023-06-01"
)

type ClaudeProvider struct {
	cfg     provider.Config
	baseURL string
	client  *http.Client
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	ID      string          `json:"id"`
	Content []claudeContent `json:"content"`
	Model   string          `json:"model"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func New(cfg provider.Config) provider.Provider {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.ID == "" {
		cfg.ID = "claude"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &ClaudeProvider{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (p *ClaudeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/messages", p.baseURL)
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	var claudeResp claudeResponse
	if err := provider.PostJSON(ctx, p.client, p.cfg, url, headers, p.mapRequest(prompt), &claudeResp); err != nil {
		return "", err
	}

	for _, block := range claudeResp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", provider.NewError(p.Name(), provider.KindShape, fmt.Errorf("api returned no text content"))
}

func (p *ClaudeProvider) mapRequest(prompt string) claudeRequest {
	maxTokens := p.cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return claudeRequest{
		Model:       p.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: p.cfg.Temperature,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}
}

func (p *ClaudeProvider) Name() string {
	return p.cfg.ID
}

func (p *ClaudeProvider) Timeout() time.Duration {
	return p.cfg.Timeout
}
