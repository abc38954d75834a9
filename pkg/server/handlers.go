package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nstogner/pocketagent/pkg/agent"
	"github.com/nstogner/pocketagent/pkg/models"
)

// conversationSummary is the list-view shape; the full transcript is only
// returned by the per-id endpoint.
type conversationSummary struct {
	ID           string `json:"id"`
	FileName     string `json:"fileName"`
	Title        string `json:"title"`
	StartTime    int64  `json:"startTime"`
	EndTime      *int64 `json:"endTime,omitempty"`
	IsComplete   bool   `json:"isComplete"`
	MessageCount int    `json:"messageCount"`
}

func summarize(c *agent.Conversation) conversationSummary {
	return conversationSummary{
		ID:           c.ID,
		FileName:     c.FileName,
		Title:        agent.ConversationTitle(c),
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		IsComplete:   c.IsComplete,
		MessageCount: len(c.Messages),
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations := s.manager.List()
	summaries := make([]conversationSummary, 0, len(conversations))
	for _, c := range conversations {
		summaries = append(summaries, summarize(c))
	}
	s.jsonResponse(w, http.StatusOK, summaries)
}

func (s *Server) handleRecentConversations(w http.ResponseWriter, r *http.Request) {
	conversations := s.manager.Recent()
	summaries := make([]conversationSummary, 0, len(conversations))
	for _, c := range conversations {
		summaries = append(summaries, summarize(c))
	}
	s.jsonResponse(w, http.StatusOK, summaries)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv := s.manager.Get(id)
	if conv == nil {
		s.errorResponse(w, http.StatusNotFound, fmt.Errorf("conversation not found: %s", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.Delete(id); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePostMessage accepts a user message and drives the loop in the
// background; observers follow progress over the watch socket.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string `json:"conversation_id"`
		Content        string `json:"content"`
		ImageURL       string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Content == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("content is required"))
		return
	}

	conv := s.manager.Get(req.ConversationID)
	if conv == nil && req.ConversationID != "" {
		s.errorResponse(w, http.StatusNotFound, fmt.Errorf("conversation not found: %s", req.ConversationID))
		return
	}
	if conv == nil {
		var err error
		if conv, err = s.runner.NewConversation(req.Content); err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err)
			return
		}
	}

	// The loop outlives this request; detach it from the request context.
	go func() {
		if _, err := s.runner.ProcessMessage(context.Background(), conv, req.Content, req.ImageURL); err != nil {
			slog.Error("Message processing failed", "conversationID", conv.ID, "error", err)
		}
	}()

	s.jsonResponse(w, http.StatusAccepted, map[string]string{"id": conv.ID})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, models.Catalog)
}
