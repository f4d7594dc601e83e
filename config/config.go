package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/vnmchuo/insight-gateway/internal/provider"
)

type Config struct {
	// Server
	Port string // default: 8080

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json or console

	// Insights
	Language       language.Tag // business language of the narrative, default: en
	PromptMaxChars int          // cap on the serialized data embedded in the prompt
	Providers      []provider.Config

	// Circuit breaking
	BreakerFailures    uint32 // consecutive failures before a provider is skipped, 0 disables
	BreakerOpenTimeout time.Duration

	// Attempt log (optional)
	PostgresDSN string

	// Rate limiting (optional)
	RedisAddr    string
	RateLimitRPM int64 // requests per minute per client, default: 60

	// Observability
	OTELExporterType     string // "stdout", "otlp" or "none"
	OTELExporterEndpoint string // default: "localhost:4317"
}

// providerSpec is the static priority order of providers: cheapest and
// fastest first.
type providerSpec struct {
	id       string
	kind     string
	prefix   string
	endpoint string
	model    string
}

var providerSpecs = []providerSpec{
	{id: "gemini", kind: "gemini", prefix: "GEMINI", endpoint: "https://generativelanguage.googleapis.com", model: "gemini-1.5-flash"},
	{id: "openai", kind: "openai", prefix: "OPENAI", endpoint: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	{id: "deepseek", kind: "openai", prefix: "DEEPSEEK", endpoint: "https://api.deepseek.com/v1", model: "deepseek-chat"},
	{id: "claude", kind: "claude", prefix: "ANTHROPIC", endpoint: "https://api.anthropic.com/v1", model: "claude-3-5-haiku-20241022"},
}

const (
	defaultTimeoutMs   = 15000
	defaultTemperature = 0.4
	defaultMaxTokens   = 800
)

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds the config from lookup, which has the signature of
// os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	env := func(key, fallback string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return fallback
	}

	cfg := &Config{
		Port:                 env("PORT", "8080"),
		LogLevel:             env("LOG_LEVEL", "info"),
		LogFormat:            env("LOG_FORMAT", "json"),
		PostgresDSN:          env("POSTGRES_DSN", ""),
		RedisAddr:            env("REDIS_ADDR", ""),
		OTELExporterType:     env("OTEL_EXPORTER_TYPE", "none"),
		OTELExporterEndpoint: env("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	lang, err := language.Parse(env("INSIGHT_LANGUAGE", "en"))
	if err != nil {
		return nil, fmt.Errorf("invalid INSIGHT_LANGUAGE: %w", err)
	}
	cfg.Language = lang

	if cfg.PromptMaxChars, err = intEnv(env, "PROMPT_MAX_CHARS", 4000); err != nil {
		return nil, err
	}
	rpm, err := intEnv(env, "RATE_LIMIT_RPM", 60)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitRPM = int64(rpm)

	failures, err := intEnv(env, "BREAKER_FAILURES", 3)
	if err != nil {
		return nil, err
	}
	if failures < 0 {
		return nil, fmt.Errorf("invalid BREAKER_FAILURES: must not be negative")
	}
	cfg.BreakerFailures = uint32(failures)

	openSeconds, err := intEnv(env, "BREAKER_OPEN_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.BreakerOpenTimeout = time.Duration(openSeconds) * time.Second

	temperature, err := strconv.ParseFloat(env("INSIGHT_TEMPERATURE", strconv.FormatFloat(defaultTemperature, 'f', -1, 64)), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid INSIGHT_TEMPERATURE: %w", err)
	}
	maxTokens, err := intEnv(env, "INSIGHT_MAX_TOKENS", defaultMaxTokens)
	if err != nil {
		return nil, err
	}

	for _, spec := range providerSpecs {
		timeoutMs, err := intEnv(env, spec.prefix+"_TIMEOUT_MS", defaultTimeoutMs)
		if err != nil {
			return nil, err
		}
		if timeoutMs <= 0 {
			return nil, fmt.Errorf("invalid %s_TIMEOUT_MS: must be positive", spec.prefix)
		}
		cfg.Providers = append(cfg.Providers, provider.Config{
			ID:          spec.id,
			Kind:        spec.kind,
			Endpoint:    env(spec.prefix+"_BASE_URL", spec.endpoint),
			APIKey:      env(spec.prefix+"_API_KEY", ""),
			Model:       env(spec.prefix+"_MODEL", spec.model),
			Timeout:     time.Duration(timeoutMs) * time.Millisecond,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
	}

	return cfg, nil
}

func intEnv(env func(key, fallback string) string, key string, fallback int) (int, error) {
	value := env(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
