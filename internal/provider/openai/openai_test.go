package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vnmchuo/insight-gateway/internal/provider"
)

func newTestProvider(url string) *OpenAIProvider {
	return New(provider.Config{
		ID:          "deepseek",
		Kind:        "openai",
		Endpoint:    url,
		APIKey:      "test-key",
		Model:       "deepseek-chat",
		Timeout:     time.Second,
		Temperature: 0.4,
	}).(*OpenAIProvider)
}

func TestGenerate_Mock(t *testing.T) {
	var got openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected bearer auth header, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"test-id","model":"deepseek-chat","choices":[{"message":{"role":"assistant","content":"Hello from OpenAI mock!"}}]}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)

	content, err := p.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if content != "Hello from OpenAI mock!" {
		t.Errorf("Expected 'Hello from OpenAI mock!', got %s", content)
	}

	if got.Model != "deepseek-chat" {
		t.Errorf("Expected model deepseek-chat, got %s", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || *got.Messages[0].Content != "hi" {
		t.Errorf("Unexpected messages: %+v", got.Messages)
	}
	if got.Temperature != 0.4 {
		t.Errorf("Expected temperature 0.4, got %v", got.Temperature)
	}
}

func TestGenerate_ShapeErrors(t *testing.T) {
	bodies := map[string]string{
		"no choices":    `{"choices":[]}`,
		"null content":  `{"choices":[{"message":{"role":"assistant","content":null}}]}`,
		"blank content": `{"choices":[{"message":{"role":"assistant","content":"   "}}]}`,
		"invalid json":  `{"choices":`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newTestProvider(server.URL).Generate(context.Background(), "hi")
			if !errors.Is(err, provider.ErrShape) {
				t.Errorf("Expected shape error, got %v", err)
			}
		})
	}
}

func TestGenerate_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Generate(context.Background(), "hi")
	if !errors.Is(err, provider.ErrTransport) {
		t.Fatalf("Expected transport error, got %v", err)
	}
	if provider.KindOf(err) != provider.KindTransport {
		t.Errorf("Expected kind transport, got %s", provider.KindOf(err))
	}
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := newTestProvider(server.URL)
	p.cfg.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := p.Generate(context.Background(), "hi")
	if !errors.Is(err, provider.ErrTimeout) {
		t.Fatalf("Expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Generate took %s, expected to be bounded by the timeout", elapsed)
	}
}

func TestGenerate_ErrorHidesCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("Expected error")
	}
	if strings.Contains(err.Error(), "test-key") {
		t.Errorf("Error leaks credential: %v", err)
	}
}

func TestName(t *testing.T) {
	if p := New(provider.Config{APIKey: "key"}); p.Name() != "openai" {
		t.Errorf("Expected 'openai', got %s", p.Name())
	}
	if p := New(provider.Config{ID: "deepseek", APIKey: "key"}); p.Name() != "deepseek" {
		t.Errorf("Expected 'deepseek', got %s", p.Name())
	}
}
