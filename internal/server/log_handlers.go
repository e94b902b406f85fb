package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/brizzai/auth-gateway/internal/audit"
	"github.com/brizzai/auth-gateway/internal/logger"
	"github.com/brizzai/auth-gateway/internal/store"
	"github.com/brizzai/auth-gateway/internal/utils"
	"go.uber.org/zap"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 200
)

// HandleListLogs returns recent audit rows, newest first.
// ?limit caps the page size; ?url_contains=a,b,c filters to rows whose URL
// matches any pattern.
func (h *ResourceHandler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	var patterns []string
	if raw := r.URL.Query().Get("url_contains"); raw != "" {
		for _, pattern := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(pattern); trimmed != "" {
				patterns = append(patterns, trimmed)
			}
		}
	}

	logs, err := h.rowStore.ListRequestLogs(r.Context(), store.RequestLogFilter{
		URLContains: patterns,
		Limit:       limit,
	})
	if err != nil {
		logger.Error("Failed to list request logs", zap.Error(err))
		audit.CaptureError(r.Context(), err.Error())
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list logs")
		return
	}
	if logs == nil {
		logs = []store.RequestLogRow{}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}
