package serve

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatRequest is the body of POST /team/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the reply to POST /team/chat.
type ChatResponse struct {
	Response       string   `json:"response"`
	Orchestrator   string   `json:"orchestrator"`
	Roles          []string `json:"roles,omitempty"`
	Failed         []string `json:"failed,omitempty"`
	ConversationID string   `json:"conversation_id"`
}

// BuildAgentRequest is the body of POST /build-agent.
type BuildAgentRequest struct {
	Description string `json:"description"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleTeamStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Status())
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	templates := make([]any, 0)
	for summary := range s.builder.Registry().List() {
		templates = append(templates, summary)
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "message is required"})
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	s.insertMessage(StoredMessage{
		ConversationID: req.ConversationID,
		Role:           "user",
		Content:        req.Message,
	})

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	result, err := s.orch.Chat(ctx, req.Message)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	s.insertMessage(StoredMessage{
		ConversationID: req.ConversationID,
		Role:           "agent",
		Content:        result.Response,
		Origin:         result.Orchestrator,
	})
	s.persistCounters()

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:       result.Response,
		Orchestrator:   result.Orchestrator,
		Roles:          result.Roles,
		Failed:         result.Failed,
		ConversationID: req.ConversationID,
	})
}

func (s *Server) handleBuildAgent(w http.ResponseWriter, r *http.Request) {
	var req BuildAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Description == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "description is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	rec, err := s.builder.Recommend(ctx, req.Description)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListConversations(50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := s.store.ListMessages(id, 200)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if len(msgs) == 0 {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// insertMessage persists a message; store failures are logged, never
// surfaced to the chat client.
func (s *Server) insertMessage(m StoredMessage) {
	if err := s.store.InsertMessage(m); err != nil {
		slog.Error("persist message failed", "conversation", m.ConversationID, "role", m.Role, "error", err)
	}
}

// persistCounters snapshots the roster's task counters after each chat.
func (s *Server) persistCounters() {
	status := s.orch.Status()
	for role, member := range status.Members {
		if err := s.store.UpsertMemberStats(role, member.TasksCompleted); err != nil {
			slog.Error("persist member stats failed", "role", role, "error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
