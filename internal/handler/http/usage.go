package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/revu/internal/service"
	"github.com/utafrali/revu/pkg/httputil"
)

// UsageHandler reports metered API consumption.
type UsageHandler struct {
	service *service.UsageService
	logger  *slog.Logger
}

// NewUsageHandler creates a new usage HTTP handler.
func NewUsageHandler(svc *service.UsageService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		service: svc,
		logger:  logger,
	}
}

// GetUsage handles GET /api/v1/usage
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, stats)
}
