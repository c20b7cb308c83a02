package conversation

import (
	"log/slog"
	"net/http"

	"github.com/cupid-copilot/backend/internal/api"
)

// Handler exposes the debug conversation listing.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// ListConversations handles GET /api/v1/debug/conversations. SCAN-based, so
// it is for debugging only, not a hot path.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	memories, err := h.store.ScanConversations(r.Context())
	if err != nil {
		h.logger.Error("failed to scan conversations", slog.String("error", err.Error()))
		api.HandleError(w, err)
		return
	}

	summaries := make([]map[string]any, 0, len(memories))
	for _, m := range memories {
		summaries = append(summaries, map[string]any{
			"conversationId": m.ConversationID,
			"deviceId":       m.DeviceID,
			"messages":       len(m.Messages),
			"notifications":  len(m.Notifications),
			"currentState":   m.Patterns.CurrentState,
			"lastUpdatedAt":  m.LastUpdatedAt,
			"summary":        m.Summary(),
		})
	}

	api.JSONRaw(w, http.StatusOK, map[string]any{
		"count":         len(summaries),
		"conversations": summaries,
	})
}
