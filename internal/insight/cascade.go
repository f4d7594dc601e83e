package insight

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/vnmchuo/insight-gateway/internal/provider"
	"github.com/vnmchuo/insight-gateway/internal/telemetry"
)

// BreakerSettings configures the per-provider circuit breaker. Failures == 0
// disables it.
type BreakerSettings struct {
	Failures    uint32
	OpenTimeout time.Duration
}

// DefaultAttemptTimeout bounds an attempt on a provider that does not report
// its own timeout.
const DefaultAttemptTimeout = 15 * time.Second

// Cascade tries the registry's providers one at a time, in order, and returns
// the first usable text. When none succeeds it returns the rule-based
// narrative, so Generate never fails.
type Cascade struct {
	registry *Registry
	prompts  *PromptBuilder
	fallback *Fallback
	breaker  BreakerSettings
	timeout  time.Duration
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
}

type Option func(*Cascade)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cascade) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Cascade) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(c *Cascade) { c.metrics = metrics }
}

func WithPromptBuilder(b *PromptBuilder) Option {
	return func(c *Cascade) {
		if b != nil {
			c.prompts = b
		}
	}
}

func WithFallback(f *Fallback) Option {
	return func(c *Cascade) {
		if f != nil {
			c.fallback = f
		}
	}
}

// WithAttemptTimeout sets the bound used for providers that do not implement
// provider.TimeoutProvider. Zero leaves those attempts unbounded.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Cascade) { c.timeout = d }
}

func WithBreaker(settings BreakerSettings) Option {
	return func(c *Cascade) { c.breaker = settings }
}

func NewCascade(registry *Registry, opts ...Option) *Cascade {
	c := &Cascade{
		registry: registry,
		prompts:  NewPromptBuilder(language.English, DefaultMaxDataChars),
		fallback: NewFallback(language.English),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		timeout:  DefaultAttemptTimeout,
		logger:   zap.NewNop(),
		tracer:   noop.NewTracerProvider().Tracer("insight"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.breaker.Failures > 0 {
		for _, p := range registry.Configured() {
			c.breakers[p.Name()] = gobreaker.NewCircuitBreaker(c.breakerSettings(p.Name()))
		}
	}
	return c
}

func (c *Cascade) breakerSettings(name string) gobreaker.Settings {
	failures := c.breaker.Failures
	logger := c.logger
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     c.breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// The caller going away says nothing about the provider.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("provider circuit state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
}

// Generate returns the narrative for in. It never returns an error: provider
// failures are logged and the next provider, or the fallback, is used.
func (c *Cascade) Generate(ctx context.Context, in *Input) *Output {
	if in == nil {
		in = &Input{}
	}
	ctx, span := c.tracer.Start(ctx, "insight.generate")
	defer span.End()

	prompt := c.prompts.Build(in)
	providers := c.registry.Configured()
	attempts := make([]Attempt, 0, len(providers))

	for _, p := range providers {
		if ctx.Err() != nil {
			c.logger.Info("request cancelled, skipping remaining providers", zap.Error(ctx.Err()))
			break
		}

		content, attempt, err := c.attempt(ctx, p, prompt)
		attempts = append(attempts, attempt)
		if err != nil {
			continue
		}
		return c.finish(span, &Output{Provider: p.Name(), Content: content, Attempts: attempts})
	}

	if len(providers) == 0 {
		c.logger.Debug("no providers configured, using rule-based insight")
	} else {
		c.logger.Info("all providers failed, using rule-based insight", zap.Int("attempts", len(attempts)))
	}
	return c.finish(span, &Output{Provider: RuleProvider, Content: c.fallback.Generate(in), Attempts: attempts})
}

func (c *Cascade) finish(span trace.Span, out *Output) *Output {
	span.SetAttributes(
		attribute.String("insight.provider", out.Provider),
		attribute.Int("insight.attempts", len(out.Attempts)),
	)
	c.metrics.ObserveResult(out.Provider)
	return out
}

func (c *Cascade) attempt(ctx context.Context, p provider.Provider, prompt string) (string, Attempt, error) {
	ctx, span := c.tracer.Start(ctx, "insight.attempt", trace.WithAttributes(
		attribute.String("provider", p.Name()),
	))
	defer span.End()

	start := time.Now()
	content, err := c.call(ctx, p, prompt)
	latency := time.Since(start)

	outcome := OutcomeSuccess
	if err != nil {
		kind := provider.KindOf(err)
		outcome = string(kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)

		if kind == provider.KindUnavailable {
			c.logger.Info("provider skipped",
				zap.String("provider", p.Name()),
				zap.String("kind", outcome),
			)
		} else {
			c.logger.Warn("provider attempt failed",
				zap.String("provider", p.Name()),
				zap.String("kind", outcome),
				zap.Duration("latency", latency),
				zap.Error(err),
			)
		}
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	c.metrics.ObserveAttempt(p.Name(), outcome, latency)

	return content, Attempt{Provider: p.Name(), Outcome: outcome, Latency: latency}, err
}

// call runs one provider, through its breaker when there is one. Blank text
// counts as a shape failure so the breaker sees it too.
func (c *Cascade) call(ctx context.Context, p provider.Provider, prompt string) (string, error) {
	generate := func() (string, error) {
		content, err := c.bounded(ctx, p, prompt)
		if err != nil {
			return "", err
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return "", provider.NewError(p.Name(), provider.KindShape, errors.New("empty content"))
		}
		return content, nil
	}

	cb, ok := c.breakers[p.Name()]
	if !ok {
		return generate()
	}

	result, err := cb.Execute(func() (interface{}, error) {
		return generate()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", provider.NewError(p.Name(), provider.KindUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// bounded returns when p answers or the attempt deadline passes, whichever
// comes first. A provider that ignores ctx is abandoned, not waited for.
func (c *Cascade) bounded(ctx context.Context, p provider.Provider, prompt string) (string, error) {
	timeout := c.timeout
	if tp, ok := p.(provider.TimeoutProvider); ok && tp.Timeout() > 0 {
		timeout = tp.Timeout()
	}
	if timeout <= 0 {
		return p.Generate(ctx, prompt)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		content string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		content, err := p.Generate(ctx, prompt)
		done <- result{content: content, err: err}
	}()

	select {
	case r := <-done:
		return r.content, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", provider.NewError(p.Name(), provider.KindTimeout, ctx.Err())
		}
		return "", provider.NewError(p.Name(), provider.KindTransport, ctx.Err())
	}
}
