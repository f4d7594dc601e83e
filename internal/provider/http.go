package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

const (
	maxErrorBody     = 256
	maxErrorBodyRead = 4096
)

// PostJSON sends body to url and decodes the JSON response into out. The call
// is bounded by cfg.Timeout; the whole exchange, body read included, is
// cancelled when it expires.
func PostJSON(ctx context.Context, client *http.Client, cfg Config, url string, headers map[string]string, body, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return NewError(cfg.ID, KindTransport, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return NewError(cfg.ID, KindTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return classify(ctx, cfg.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyRead))
		return NewError(cfg.ID, KindTransport, fmt.Errorf("api error (status %d): %s", resp.StatusCode, errorBody(respBody, cfg.APIKey)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return classify(ctx, cfg.ID, err)
		}
		return NewError(cfg.ID, KindShape, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func classify(ctx context.Context, id string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(id, KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(id, KindTimeout, err)
	}
	return NewError(id, KindTransport, err)
}

// errorBody renders an upstream error body for an error message: the
// credential is redacted before the text is cut to maxErrorBody bytes.
func errorBody(raw []byte, apiKey string) string {
	s := string(raw)
	if apiKey != "" {
		s = strings.ReplaceAll(s, apiKey, "[redacted]")
	}
	if len(s) <= maxErrorBody {
		return strings.ToValidUTF8(s, "")
	}
	return strings.ToValidUTF8(s[:maxErrorBody], "") + "..."
}
