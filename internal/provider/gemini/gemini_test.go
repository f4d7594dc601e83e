package gemini

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

func newTestProvider(url string) provider.Provider {
	return New(provider.Config{
		Kind:     "gemini",
		Endpoint: url,
		APIKey:   "test-key",
		Model:    "gemini-pro",
		Timeout:  time.Second,
	})
}

func TestGenerate_Mock(t *testing.T) {
	var got geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-pro:generateContent" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("Expected no query string, got %s", r.URL.RawQuery)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("Expected api key header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)

		resp := geminiResponse{
			Candidates: []geminiCandidate{
				{
					Content: geminiContent{
						Role:  "model",
						Parts: []geminiPart{{Text: "Hello "}, {Text: "from mock!"}},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	content, err := newTestProvider(server.URL).Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if content != "Hello from mock!" {
		t.Errorf("Expected 'Hello from mock!', got %s", content)
	}
	if len(got.Contents) != 1 || got.Contents[0].Parts[0].Text != "hi" {
		t.Errorf("Unexpected request contents: %+v", got.Contents)
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Generate(context.Background(), "hi")
	if !errors.Is(err, provider.ErrShape) {
		t.Errorf("Expected shape error, got %v", err)
	}
}

func TestGenerate_BlankText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"\n"}]}}]}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Generate(context.Background(), "hi")
	if !errors.Is(err, provider.ErrShape) {
		t.Errorf("Expected shape error, got %v", err)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Generate(context.Background(), "hi")
	if !errors.Is(err, provider.ErrTransport) {
		t.Fatalf("Expected transport error, got %v", err)
	}
	if strings.Contains(err.Error(), "test-key") {
		t.Errorf("Error leaks credential: %v", err)
	}
}

func TestName(t *testing.T) {
	p := New(provider.Config{APIKey: "key"})
	if p.Name() != "gemini" {
		t.Errorf("Expected 'gemini', got %s", p.Name())
	}
}
