// Package api exposes the engine over HTTP: conversational messages
// (streamed), provider status and switching, and lead creation. The general
// admission controller fronts the API routes; the fail-closed endpoint
// classes are exported from pkg/ratelimit for the auth flows that live
// outside this service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/chat"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/llm"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/observability/logging"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/ratelimit"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/store"
)

// Server holds the HTTP handler state.
type Server struct {
	chat    *chat.Service
	orch    *llm.Orchestrator
	store   *store.Store
	limiter *ratelimit.Limiter
}

// NewServer wires the HTTP surface.
func NewServer(chatSvc *chat.Service, orch *llm.Orchestrator, st *store.Store, limiter *ratelimit.Limiter) *Server {
	return &Server{chat: chatSvc, orch: orch, store: st, limiter: limiter}
}

// Handler builds the route table. API routes sit behind the general
// fail-open admission check keyed by client IP; /health is unguarded.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/leads", s.handleCreateLead)
	api.HandleFunc("POST /v1/conversations/{id}/messages", s.handleMessage)
	api.HandleFunc("GET /v1/providers", s.handleProviderStatus)
	api.HandleFunc("POST /v1/providers/switch", s.handleProviderSwitch)

	guard := ratelimit.Middleware(s.limiter, ratelimit.GeneralAPIConfig, ratelimit.ClientIP)

	root := http.NewServeMux()
	root.Handle("/v1/", guard(api))
	root.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return root
}

type createLeadRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Company string `json:"company"`
}

type createLeadResponse struct {
	LeadID         string `json:"lead_id"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	lead, err := s.store.CreateLead(r.Context(), req.Email, req.Name, req.Company)
	if err != nil {
		logging.Errorf("Create lead failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create lead")
		return
	}
	conv, err := s.store.CreateConversation(r.Context(), lead.ID)
	if err != nil {
		logging.Errorf("Create conversation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, createLeadResponse{LeadID: lead.ID, ConversationID: conv.ID})
}

type messageRequest struct {
	Message string `json:"message"`
}

// handleMessage appends the user message and streams the assistant reply as
// chunked plain text. Scoring runs behind the scenes at its own cadence and
// never affects this response.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if _, err := s.store.GetConversation(r.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		logging.Errorf("Load conversation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	_, err := s.chat.Respond(r.Context(), conversationID, req.Message, func(chunk string) error {
		if _, err := fmt.Fprint(w, chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are already sent; all we can do is log.
		logging.Warnf("Reply stream to client aborted: %v", err)
	}
}

func (s *Server) handleProviderStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.orch.Status()})
}

type switchRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleProviderSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !s.orch.SwitchTo(req.Name) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown provider %q", req.Name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.orch.Status()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorf("Encode response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
