package insight

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnmchuo/insight-gateway/internal/usage"
	"github.com/vnmchuo/insight-gateway/pkg/ratelimit"
)

const (
	maxBodyBytes      = 1 << 20
	attemptLogTimeout = 5 * time.Second
)

// Generator is the insight entry point used by the HTTP surface.
type Generator interface {
	Generate(ctx context.Context, in *Input) *Output
}

type Handler struct {
	generator Generator
	usage     usage.Store        // optional
	limiter   *ratelimit.Limiter // optional
	logger    *zap.Logger
}

func NewHandler(generator Generator, store usage.Store, limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		generator: generator,
		usage:     store,
		limiter:   limiter,
		logger:    logger,
	}
}

func (h *Handler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := chimiddleware.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, clientID(r))
		if err != nil {
			// Fail open: a limiter outage must not take insights down.
			h.logger.Warn("rate limiter error", zap.String("request_id", requestID), zap.Error(err))
		} else if !allowed {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":       "rate limit exceeded",
				"retry_after": "60s",
			})
			return
		}
	}

	var in Input
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	out := h.generator.Generate(ctx, &in)

	if h.usage != nil && len(out.Attempts) > 0 {
		attempts := out.Attempts
		go func() {
			for _, a := range attempts {
				h.recordAttempt(requestID, a)
			}
		}()
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) recordAttempt(requestID string, a Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), attemptLogTimeout)
	defer cancel()

	err := h.usage.LogAttempt(ctx, &usage.AttemptLog{
		RequestID: requestID,
		Provider:  a.Provider,
		Outcome:   a.Outcome,
		LatencyMs: a.Latency.Milliseconds(),
	})
	if err != nil {
		h.logger.Warn("failed to record attempt",
			zap.String("request_id", requestID),
			zap.String("provider", a.Provider),
			zap.Error(err),
		)
	}
}

func (h *Handler) HandleAttempts(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "attempt log not configured"})
		return
	}
	ctx := r.Context()

	// Parse query parameters
	now := time.Now()
	from := now.AddDate(0, 0, -30) // Default: last 30 days
	to := now

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'from' date format (use RFC3339)"})
			return
		}
	}

	if toStr := r.URL.Query().Get("to"); toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'to' date format (use RFC3339)"})
			return
		}
	}

	logs, err := h.usage.GetAttempts(ctx, from, to)
	if err != nil {
		h.logger.Error("failed to load attempts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load attempts"})
		return
	}

	counts, err := h.usage.CountByOutcome(ctx, from, to)
	if err != nil {
		h.logger.Error("failed to count attempts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load attempts"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_attempts": len(logs),
		"by_outcome":     counts,
		"logs":           logs,
		"from":           from,
		"to":             to,
	})
}

// clientID is the caller's IP. chi's RealIP middleware has already applied
// X-Forwarded-For / X-Real-IP to RemoteAddr.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
