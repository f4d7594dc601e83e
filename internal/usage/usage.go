package usage

import (
	"context"
	"time"
)

// AttemptLog is one provider attempt made while generating an insight. Only
// the outcome kind is stored, never the generated text or error details.
type AttemptLog struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Provider  string    `json:"provider"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	LogAttempt(ctx context.Context, log *AttemptLog) error
	GetAttempts(ctx context.Context, from, to time.Time) ([]*AttemptLog, error)
	CountByOutcome(ctx context.Context, from, to time.Time) (map[string]int64, error)
}
