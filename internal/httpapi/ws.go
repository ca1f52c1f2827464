package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haven-chat/haven/internal/identity"
	"github.com/haven-chat/haven/internal/protocol"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
	wsReadLimit    = 1 << 20
)

// handleChatWS serves the websocket chat surface. Turns on one
// connection run sequentially; deltas, turn ends, and errors go out as
// typed envelopes through a single writer goroutine.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	connClientID, issued := identity.Resolve(r, r.URL.Query().Get("client_id"))
	if issued {
		http.SetCookie(w, identity.NewCookie(connClientID, r.TLS != nil))
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	send := func(msg any) bool {
		select {
		case <-ctx.Done():
			return false
		case outbound <- msg:
			return true
		}
	}

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				ClientID:  connClientID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ClientChat:
			clientID := connClientID
			if id := strings.TrimSpace(msg.ClientID); id != "" {
				clientID = id
			}
			s.runWSTurn(ctx, clientID, msg.ChatRequest, send)
		case protocol.ClientControl:
			s.handleWSControl(ctx, connClientID, msg, send)
		}
	}

	cancel()
	<-writerDone
}

func (s *Server) runWSTurn(ctx context.Context, clientID string, req protocol.ChatRequest, send func(any) bool) {
	s.deps.Metrics.ActiveStreams.Inc()
	defer s.deps.Metrics.ActiveStreams.Dec()

	res, err := s.deps.Responder.Respond(ctx, clientID, req, func(delta string) error {
		if !send(protocol.AssistantTextDelta{
			Type:     protocol.TypeAssistantTextDelta,
			ClientID: clientID,
			Content:  delta,
		}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		s.deps.Metrics.ChatRequests.WithLabelValues("ws", "error").Inc()
		code, retryable := classifyStreamError(err)
		s.deps.Metrics.ProviderErrors.WithLabelValues(code).Inc()
		send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			ClientID:  clientID,
			Code:      code,
			Retryable: retryable,
			Detail:    err.Error(),
		})
		return
	}

	s.deps.Metrics.ChatRequests.WithLabelValues("ws", "ok").Inc()
	send(protocol.AssistantTurnEnd{
		Type:     protocol.TypeAssistantTurnEnd,
		ClientID: clientID,
		TurnID:   res.TurnID,
		Reason:   "completed",
		Skills:   res.SkillTags,
	})
}

func (s *Server) handleWSControl(ctx context.Context, connClientID string, msg protocol.ClientControl, send func(any) bool) {
	clientID := connClientID
	if id := strings.TrimSpace(msg.ClientID); id != "" {
		clientID = id
	}

	switch msg.Action {
	case "reset":
		if err := s.deps.Store.Reset(ctx, clientID); err != nil {
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				ClientID:  clientID,
				Code:      "reset_failed",
				Retryable: true,
				Detail:    err.Error(),
			})
			return
		}
		s.deps.Retriever.DropClient(clientID)
		send(protocol.SystemEvent{
			Type:     protocol.TypeSystemEvent,
			ClientID: clientID,
			Code:     "reset_done",
		})
	default:
		send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			ClientID:  clientID,
			Code:      "unknown_action",
			Retryable: false,
			Detail:    "unsupported control action " + msg.Action,
		})
	}
}
