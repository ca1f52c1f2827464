package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/haven-chat/haven/internal/config"
	"github.com/haven-chat/haven/internal/identity"
	"github.com/haven-chat/haven/internal/memory"
	"github.com/haven-chat/haven/internal/observability"
	"github.com/haven-chat/haven/internal/protocol"
	"github.com/haven-chat/haven/internal/reliability"
	"github.com/haven-chat/haven/internal/responder"
	"github.com/haven-chat/haven/internal/retrieval"
)

// Deps wires the server to the chat runtime.
type Deps struct {
	Responder    *responder.Responder
	Store        memory.Store
	Retriever    *retrieval.Retriever
	Metrics      *observability.Metrics
	StageWindow  *observability.StageWindow
	StoreMode    string
	CorpusChunks func() int
}

type Server struct {
	cfg      config.Config
	deps     Deps
	upgrader websocket.Upgrader
}

func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:  cfg,
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a user's chat
				// session if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/client", s.handleClient)
	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Post("/v1/chat/reset", s.handleReset)
	r.Get("/v1/chat/history", s.handleHistory)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.deps.StoreMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	chunks := 0
	if s.deps.CorpusChunks != nil {
		chunks = s.deps.CorpusChunks()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"store_mode":    s.deps.StoreMode,
		"corpus_chunks": chunks,
	})
}

// handleClient returns the caller's stable identity, issuing a fresh
// cookie token when none exists yet.
func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(identity.CookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		respondJSON(w, http.StatusOK, map[string]any{"client_id": c.Value, "issued": false})
		return
	}
	token := identity.Issue()
	http.SetCookie(w, identity.NewCookie(token, r.TLS != nil))
	respondJSON(w, http.StatusOK, map[string]any{"client_id": token, "issued": true})
}

type ssePayload struct {
	Content string `json:"content"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support flushing")
		return
	}

	clientID, issued := identity.Resolve(r, req.ClientID)
	if issued {
		http.SetCookie(w, identity.NewCookie(clientID, r.TLS != nil))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s.deps.Metrics.ActiveStreams.Inc()
	defer s.deps.Metrics.ActiveStreams.Dec()

	res, err := s.deps.Responder.Respond(r.Context(), clientID, req, func(delta string) error {
		return writeSSE(w, flusher, ssePayload{Content: delta})
	})
	if err != nil {
		s.deps.Metrics.ChatRequests.WithLabelValues("sse", "error").Inc()
		code, retryable := classifyStreamError(err)
		s.deps.Metrics.ProviderErrors.WithLabelValues(code).Inc()
		_ = writeSSE(w, flusher, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			ClientID:  clientID,
			Code:      code,
			Retryable: retryable,
			Detail:    err.Error(),
		})
		return
	}

	s.deps.Metrics.ChatRequests.WithLabelValues("sse", "ok").Inc()
	_ = writeSSE(w, flusher, protocol.AssistantTurnEnd{
		Type:     protocol.TypeAssistantTurnEnd,
		ClientID: clientID,
		TurnID:   res.TurnID,
		Reason:   "completed",
		Skills:   res.SkillTags,
	})
	fmt.Fprintf(w, "data: %s\n\n", protocol.DoneSentinel)
	flusher.Flush()
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"client_id"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	clientID, _ := identity.Resolve(r, req.ClientID)
	if err := s.deps.Store.Reset(r.Context(), clientID); err != nil {
		respondError(w, http.StatusInternalServerError, "reset_failed", err.Error())
		return
	}
	s.deps.Retriever.DropClient(clientID)
	respondJSON(w, http.StatusOK, map[string]any{"status": "reset", "client_id": clientID})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	clientID, _ := identity.Resolve(r, r.URL.Query().Get("client_id"))

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	turns, err := s.deps.Store.Recent(r.Context(), clientID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	if turns == nil {
		turns = []memory.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"client_id": clientID, "turns": turns})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.deps.StageWindow == nil {
		respondJSON(w, http.StatusOK, observability.StageSnapshot{})
		return
	}
	respondJSON(w, http.StatusOK, s.deps.StageWindow.Snapshot())
}

func classifyStreamError(err error) (code string, retryable bool) {
	if errors.Is(err, responder.ErrEmptyUserText) {
		return "invalid_request", false
	}
	return "provider_error", reliability.IsRetryableStreamError(err)
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
