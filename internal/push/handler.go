package push

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/cupid-copilot/backend/internal/api"
	"github.com/cupid-copilot/backend/internal/identity"
)

// Handler exposes the push token and notification HTTP surface.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterToken handles POST /api/v1/push-tokens.
func (h *Handler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid JSON payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError("token is required"))
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = identity.ResolveDeviceID(r.Header, identity.DefaultDeviceID)
	}

	token, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to register push token", slog.String("error", err.Error()))
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}
	api.JSON(w, http.StatusCreated, token)
}

// ListTokens handles GET /api/v1/push-tokens.
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.service.ListTokens(r.Context())
	if err != nil {
		h.logger.Error("failed to list push tokens", slog.String("error", err.Error()))
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"count":  len(tokens),
		"tokens": tokens,
	})
}

// SendNotification handles POST /api/v1/notifications/send. The "to" field
// accepts a single token, a token list, or "all".
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid JSON payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError("title and body are required"))
		return
	}

	result, err := h.dispatch(r, req)
	if err != nil {
		h.logger.Error("manual notification send failed", slog.String("error", err.Error()))
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	api.JSONRaw(w, http.StatusOK, result)
}

func (h *Handler) dispatch(r *http.Request, req SendRequest) (SendResult, error) {
	switch to := req.To.(type) {
	case nil:
		return h.service.SendToAll(r.Context(), req.Title, req.Body)
	case string:
		if to == "" || to == "all" {
			return h.service.SendToAll(r.Context(), req.Title, req.Body)
		}
		return h.service.SendTo(r.Context(), []string{to}, req.Title, req.Body)
	case []any:
		recipients := make([]string, 0, len(to))
		for _, entry := range to {
			token, ok := entry.(string)
			if !ok {
				return SendResult{}, fmt.Errorf("recipient list must contain only strings")
			}
			recipients = append(recipients, token)
		}
		return h.service.SendTo(r.Context(), recipients, req.Title, req.Body)
	default:
		return SendResult{}, fmt.Errorf(`"to" must be a token, a token list, or "all"`)
	}
}

// DeviceNotifications handles GET /api/v1/notifications?deviceId=.
func (h *Handler) DeviceNotifications(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		deviceID = identity.ResolveDeviceID(r.Header, identity.DefaultDeviceID)
	}

	history, err := h.service.DeviceNotifications(r.Context(), deviceID)
	if err != nil {
		h.logger.Error("failed to load device notifications",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()))
		api.HandleError(w, err)
		return
	}
	if history == nil {
		history = []DeviceNotification{}
	}
	api.JSONRaw(w, http.StatusOK, map[string]any{
		"deviceId":      deviceID,
		"count":         len(history),
		"notifications": history,
	})
}
