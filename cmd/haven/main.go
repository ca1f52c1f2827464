package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haven-chat/haven/internal/brain"
	"github.com/haven-chat/haven/internal/config"
	"github.com/haven-chat/haven/internal/corpus"
	"github.com/haven-chat/haven/internal/httpapi"
	"github.com/haven-chat/haven/internal/memory"
	"github.com/haven-chat/haven/internal/observability"
	"github.com/haven-chat/haven/internal/prompt"
	"github.com/haven-chat/haven/internal/reliability"
	"github.com/haven-chat/haven/internal/responder"
	"github.com/haven-chat/haven/internal/retrieval"
)

const corpusIndexAttempts = 3

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	window := observability.NewStageWindow(256)

	ctx := context.Background()
	store, err := memory.NewStore(ctx, cfg.DatabaseURL, cfg.HistoryDir, cfg.SessionMaxTurns)
	if err != nil {
		log.Fatalf("context store init failed: %v", err)
	}
	defer store.Close()

	var embedder retrieval.Embedder
	if cfg.OpenAIAPIKey != "" {
		embedder = retrieval.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbedTimeout)
		log.Printf("embedder: openai (%s)", cfg.EmbeddingModel)
	} else {
		embedder = retrieval.NewHashingEmbedder(256)
		log.Printf("embedder: local hashing (no OPENAI_API_KEY)")
	}

	knowledge, err := corpus.Load(cfg.CorpusDir)
	if err != nil {
		log.Fatalf("corpus load failed: %v", err)
	}

	index := retrieval.NewIndex(cfg.SessionMaxTurns)
	if err := indexCorpusWithRetry(ctx, embedder, index, knowledge); err != nil {
		log.Fatalf("corpus indexing failed: %v", err)
	}
	log.Printf("corpus ready: %d chunks from %d documents", index.SharedSize(), len(knowledge.Documents()))

	retriever := retrieval.NewRetriever(embedder, index, store, retrieval.Options{
		K:               cfg.RetrievalK,
		RecencyWindow:   cfg.RecencyWindow,
		KnowledgeBudget: cfg.KnowledgeBudget,
		TurnClipChars:   cfg.TurnClipChars,
	})

	adapter, err := brain.New(brain.Config{
		Mode:    cfg.ProviderMode,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.ChatModel,
		HTTPURL: cfg.ProviderHTTPURL,
		Timeout: cfg.ProviderTimeout,
	})
	if err != nil {
		log.Fatalf("provider adapter init failed: %v", err)
	}

	resp := responder.New(store, retriever, prompt.NewAssembler(cfg.PromptCeiling), adapter, responder.Options{
		RecencyWindow: cfg.RecencyWindow,
		Observer:      observability.NewStageRecorder(metrics, window),
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	reaper := memory.NewReaper(store, cfg.SessionTTL, cfg.ReaperInterval)
	reaper.SetEvictHook(func(clientID string) {
		retriever.DropClient(clientID)
		metrics.SweepEvictions.Inc()
	})
	reaper.Start(runCtx)

	api := httpapi.New(cfg, httpapi.Deps{
		Responder:    resp,
		Store:        store,
		Retriever:    retriever,
		Metrics:      metrics,
		StageWindow:  window,
		StoreMode:    storeMode(cfg),
		CorpusChunks: index.SharedSize,
	})
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

func indexCorpusWithRetry(ctx context.Context, embedder retrieval.Embedder, index *retrieval.Index, knowledge *corpus.Corpus) error {
	var err error
	for attempt := 0; attempt < corpusIndexAttempts; attempt++ {
		if attempt > 0 {
			delay := reliability.ExponentialBackoff(attempt, 500*time.Millisecond, 5*time.Second)
			log.Printf("corpus indexing attempt %d failed, retrying in %s: %v", attempt, delay, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = retrieval.IndexCorpus(ctx, embedder, index, knowledge); err == nil {
			return nil
		}
	}
	return err
}

func storeMode(cfg config.Config) string {
	switch {
	case cfg.DatabaseURL != "":
		return "postgres"
	case cfg.HistoryDir != "":
		return "file"
	default:
		return "in-memory"
	}
}
