package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/MazarSayed/stock-platform/agent/assistant"
	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

type handler struct {
	chat ChatService
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": ServiceName,
		"version": ServiceVersion,
	})
}

func (h *handler) postChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req assistant.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Detail: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Invalid request body"})
		return
	}

	resp, err := h.chat.Chat(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, contractx.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Message is required"})
	default:
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("chat failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Error processing chat"})
	}
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	msgs, err := h.chat.History(r.Context(), sessionID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, msgs)
	case errors.Is(err, contractx.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Session not found"})
	default:
		log.Error().Err(err).Str("session_id", sessionID).Msg("history lookup failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Error retrieving history"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}
