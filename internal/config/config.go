package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the haven chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Context store backends. DATABASE_URL selects postgres, HISTORY_DIR the
	// file-backed store; with neither set the store is in-memory.
	DatabaseURL     string
	HistoryDir      string
	SessionTTL      time.Duration
	ReaperInterval  time.Duration
	SessionMaxTurns int

	// Knowledge corpus and retrieval.
	CorpusDir       string
	RetrievalK      int
	RecencyWindow   int
	KnowledgeBudget int
	TurnClipChars   int
	EmbedTimeout    time.Duration
	EmbeddingModel  string

	// Prompt assembly.
	PromptCeiling int

	// Model provider.
	ProviderMode    string
	ProviderHTTPURL string
	ProviderTimeout time.Duration
	OpenAIAPIKey    string
	ChatModel       string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "haven"),
		AllowAnyOrigin:   false,
		DatabaseURL:      envTrimmed("DATABASE_URL"),
		HistoryDir:       envTrimmed("HISTORY_DIR"),
		CorpusDir:        envTrimmed("CORPUS_DIR"),
		ProviderMode:     envOrDefault("PROVIDER_MODE", "auto"),
		ProviderHTTPURL:  envTrimmed("PROVIDER_HTTP_URL"),
		OpenAIAPIKey:     envTrimmed("OPENAI_API_KEY"),
		ChatModel:        envOrDefault("CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel:   envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		ShutdownTimeout:  15 * time.Second,
		SessionTTL:       30 * time.Minute,
		ReaperInterval:   time.Minute,
		SessionMaxTurns:  200,
		RetrievalK:       10,
		RecencyWindow:    12,
		KnowledgeBudget:  8000,
		TurnClipChars:    200,
		PromptCeiling:    24000,
		EmbedTimeout:     10 * time.Second,
		ProviderTimeout:  90 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL, err = durationFromEnv("SESSION_TTL", cfg.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.ReaperInterval, err = durationFromEnv("REAPER_INTERVAL", cfg.ReaperInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbedTimeout, err = durationFromEnv("EMBED_TIMEOUT", cfg.EmbedTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ProviderTimeout, err = durationFromEnv("PROVIDER_TIMEOUT", cfg.ProviderTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionMaxTurns, err = intFromEnv("SESSION_MAX_TURNS", cfg.SessionMaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalK, err = intFromEnv("RETRIEVAL_K", cfg.RetrievalK)
	if err != nil {
		return Config{}, err
	}
	cfg.RecencyWindow, err = intFromEnv("RECENCY_WINDOW", cfg.RecencyWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.KnowledgeBudget, err = intFromEnv("KNOWLEDGE_BUDGET_CHARS", cfg.KnowledgeBudget)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnClipChars, err = intFromEnv("TURN_CLIP_CHARS", cfg.TurnClipChars)
	if err != nil {
		return Config{}, err
	}
	cfg.PromptCeiling, err = intFromEnv("PROMPT_CEILING_CHARS", cfg.PromptCeiling)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionTTL < 10*time.Second {
		return Config{}, fmt.Errorf("SESSION_TTL must be at least 10s")
	}
	if cfg.ReaperInterval <= 0 {
		return Config{}, fmt.Errorf("REAPER_INTERVAL must be positive")
	}
	if cfg.SessionMaxTurns <= 0 {
		return Config{}, fmt.Errorf("SESSION_MAX_TURNS must be positive")
	}
	if cfg.RetrievalK <= 0 {
		return Config{}, fmt.Errorf("RETRIEVAL_K must be positive")
	}
	if cfg.RecencyWindow <= 0 {
		return Config{}, fmt.Errorf("RECENCY_WINDOW must be positive")
	}
	if cfg.KnowledgeBudget <= 0 {
		return Config{}, fmt.Errorf("KNOWLEDGE_BUDGET_CHARS must be positive")
	}
	if cfg.TurnClipChars <= 0 {
		return Config{}, fmt.Errorf("TURN_CLIP_CHARS must be positive")
	}
	if cfg.PromptCeiling <= cfg.KnowledgeBudget {
		return Config{}, fmt.Errorf("PROMPT_CEILING_CHARS must exceed KNOWLEDGE_BUDGET_CHARS")
	}
	if cfg.DatabaseURL != "" && cfg.HistoryDir != "" {
		return Config{}, fmt.Errorf("DATABASE_URL and HISTORY_DIR are mutually exclusive")
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.ProviderMode))
	switch mode {
	case "auto", "openai", "http", "mock":
		cfg.ProviderMode = mode
	default:
		return Config{}, fmt.Errorf("invalid PROVIDER_MODE: %q (expected auto|openai|http|mock)", cfg.ProviderMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
