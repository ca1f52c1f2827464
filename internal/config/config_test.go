package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.ProviderMode != "auto" {
		t.Fatalf("ProviderMode = %q, want %q", cfg.ProviderMode, "auto")
	}
	if cfg.KnowledgeBudget != 8000 {
		t.Fatalf("KnowledgeBudget = %d, want 8000", cfg.KnowledgeBudget)
	}
	if cfg.RetrievalK != 10 {
		t.Fatalf("RetrievalK = %d, want 10", cfg.RetrievalK)
	}
}

func TestLoadUsesExplicitProviderHTTPURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PROVIDER_MODE", "http")
	t.Setenv("PROVIDER_HTTP_URL", "http://localhost:7777/chat")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProviderHTTPURL != "http://localhost:7777/chat" {
		t.Fatalf("ProviderHTTPURL = %q, want explicit value", cfg.ProviderHTTPURL)
	}
}

func TestLoadRejectsInvalidProviderMode(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PROVIDER_MODE", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want invalid PROVIDER_MODE error")
	}
}

func TestLoadRejectsConflictingBackends(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/haven")
	t.Setenv("HISTORY_DIR", "/tmp/haven-history")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want mutually exclusive backend error")
	}
}

func TestLoadRejectsTinySessionTTL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("SESSION_TTL", "2s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want SESSION_TTL floor error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"DATABASE_URL",
		"HISTORY_DIR",
		"CORPUS_DIR",
		"SESSION_TTL",
		"REAPER_INTERVAL",
		"SESSION_MAX_TURNS",
		"RETRIEVAL_K",
		"RECENCY_WINDOW",
		"KNOWLEDGE_BUDGET_CHARS",
		"TURN_CLIP_CHARS",
		"PROMPT_CEILING_CHARS",
		"EMBED_TIMEOUT",
		"EMBEDDING_MODEL",
		"PROVIDER_MODE",
		"PROVIDER_HTTP_URL",
		"PROVIDER_TIMEOUT",
		"OPENAI_API_KEY",
		"CHAT_MODEL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
