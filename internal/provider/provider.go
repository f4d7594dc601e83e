package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config describes one text-generation upstream. It is built once at startup
// and never mutated afterwards.
type Config struct {
	ID          string // stable provider id reported to callers, e.g. "deepseek"
	Kind        string // adapter family: "openai", "gemini", "claude"
	Endpoint    string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// Available reports whether the provider has a credential.
func (c Config) Available() bool {
	return c.APIKey != ""
}

type Provider interface {
	Name() string
	// Generate issues exactly one upstream request and returns the generated
	// text. Failures are *Error values.
	Generate(ctx context.Context, prompt string) (string, error)
}

// TimeoutProvider is implemented by adapters that carry their own per-call
// timeout. The cascade bounds each attempt with it.
type TimeoutProvider interface {
	Timeout() time.Duration
}

type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindTransport   Kind = "transport"
	KindShape       Kind = "shape"
)

var (
	ErrUnavailable = errors.New("provider unavailable")
	ErrTimeout     = errors.New("provider timeout")
	ErrTransport   = errors.New("provider transport error")
	ErrShape       = errors.New("provider response shape error")
)

// Error is the uniform failure returned by every adapter.
type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrShape:
		return e.Kind == KindShape
	}
	return false
}

func NewError(providerID string, kind Kind, err error) *Error {
	return &Error{Provider: providerID, Kind: kind, Err: err}
}

// KindOf returns the failure kind of err. Errors that did not come from an
// adapter are treated as transport failures.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}
