package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/go-go-golems/parley/pkg/conversation"
)

type conversationRequest struct {
	Name   *string              `json:"name"`
	Params *conversation.Params `json:"params"`
}

type queryMessage struct {
	Role    *string `json:"role"`
	Content *string `json:"content"`
}

type queryRequest struct {
	ID      string        `json:"id"`
	Message *queryMessage `json:"message"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	req, err := decodeConversationRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	conv, err := s.lifecycle.Create(r.Context(), *req.Name, paramsOrEmpty(req.Params))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.lifecycle.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	conv, err := s.lifecycle.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	req, err := decodeConversationRequest(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	conv, err := s.lifecycle.Update(r.Context(), id, *req.Name, paramsOrEmpty(req.Params))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	deleted, err := s.lifecycle.Delete(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !deleted {
		s.respondError(w, conversation.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, conversation.NewValidationError("invalid request body: %v", err))
		return
	}
	if req.Message == nil || req.Message.Role == nil || req.Message.Content == nil {
		s.respondError(w, conversation.NewValidationError("message role and content are required"))
		return
	}

	id, err := primitive.ObjectIDFromHex(req.ID)
	if err != nil {
		s.respondError(w, conversation.NewValidationError("invalid conversation id %q", req.ID))
		return
	}

	result, err := s.orchestrator.ProcessQuery(r.Context(), id, conversation.Message{
		Role:    conversation.Role(*req.Message.Role),
		Content: *req.Message.Content,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeConversationRequest(r *http.Request) (*conversationRequest, error) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, conversation.NewValidationError("invalid request body: %v", err)
	}
	if req.Name == nil {
		return nil, conversation.NewValidationError("name is required")
	}
	return &req, nil
}

func paramsOrEmpty(p *conversation.Params) conversation.Params {
	if p == nil {
		return conversation.Params{}
	}
	return *p
}

func pathID(r *http.Request) (primitive.ObjectID, error) {
	raw := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, conversation.NewValidationError("invalid conversation id %q", raw)
	}
	return id, nil
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError maps the error taxonomy onto status codes. Internal causes are
// logged with full context but only a summary message crosses the wire.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch {
	case conversation.IsValidationError(err):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, conversation.ErrNotFound):
		status = http.StatusNotFound
		message = conversation.ErrNotFound.Error()
	case errors.Is(err, conversation.ErrConflict):
		status = http.StatusConflict
		message = conversation.ErrConflict.Error()
	case errors.Is(err, conversation.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		message = conversation.ErrStoreUnavailable.Error()
	case conversation.IsModelCallError(err):
		status = http.StatusBadGateway
		message = "model call failed"
	default:
		status = http.StatusInternalServerError
		message = "internal server error"
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}

	respondJSON(w, status, map[string]string{"error": message})
}
