package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vnmchuo/insight-gateway/internal/provider"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"
)

type GeminiProvider struct {
	cfg     provider.Config
	baseURL string
	client  *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

func New(cfg provider.Config) provider.Provider {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.ID == "" {
		cfg.ID = "gemini"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &GeminiProvider{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	// The key travels in a header so it never shows up in url.Error messages.
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.cfg.Model)
	headers := map[string]string{
		"x-goog-api-key": p.cfg.APIKey,
	}

	var geminiResp geminiResponse
	if err := provider.PostJSON(ctx, p.client, p.cfg, url, headers, p.mapRequest(prompt), &geminiResp); err != nil {
		return "", err
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", provider.NewError(p.Name(), provider.KindShape, fmt.Errorf("api returned no candidates"))
	}

	var sb strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", provider.NewError(p.Name(), provider.KindShape, fmt.Errorf("api returned empty candidate text"))
	}

	return sb.String(), nil
}

func (p *GeminiProvider) mapRequest(prompt string) geminiRequest {
	return geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			MaxOutputTokens: p.cfg.MaxTokens,
			Temperature:     p.cfg.Temperature,
		},
	}
}

func (p *GeminiProvider) Name() string {
	return p.cfg.ID
}

func (p *GeminiProvider) Timeout() time.Duration {
	return p.cfg.Timeout
}
