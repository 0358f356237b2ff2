package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/revu/internal/service"
	"github.com/utafrali/revu/pkg/httputil"
)

// ChatHandler handles the product chat endpoint.
type ChatHandler struct {
	service *service.ChatService
	logger  *slog.Logger
}

// NewChatHandler creates a new chat HTTP handler.
func NewChatHandler(svc *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  logger,
	}
}

// ChatRequest is the JSON request body for a chat turn.
type ChatRequest struct {
	Message string                `json:"message" validate:"required,max=2000"`
	History []service.ChatMessage `json:"history" validate:"omitempty,max=50,dive"`
}

// Chat handles POST /api/v1/products/{id}/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req ChatRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	reply, err := h.service.Chat(r.Context(), id.String(), service.ChatInput{
		Message: req.Message,
		History: req.History,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, reply)
}
