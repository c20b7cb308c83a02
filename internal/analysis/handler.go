package analysis

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cupid-copilot/backend/internal/api"
	"github.com/cupid-copilot/backend/internal/identity"
	"github.com/cupid-copilot/backend/internal/middleware"
)

// maxFrameBytes bounds the multipart form held in memory per request.
const maxFrameBytes = 32 << 20

// Handler exposes the frame analysis endpoint.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// AnalyzeFrame handles POST /api/v1/frames: a multipart form with the
// screenshot under "frame" plus optional timestamp, frameNumber,
// conversationId and deviceId fields.
func (h *Handler) AnalyzeFrame(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
		api.HandleError(w, api.ErrNoFrame)
		return
	}

	file, header, err := r.FormFile("frame")
	if err != nil {
		api.HandleError(w, api.ErrNoFrame)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read frame upload", slog.String("error", err.Error()))
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	timestamp, _ := strconv.ParseInt(r.FormValue("timestamp"), 10, 64)
	frameNumber, _ := strconv.Atoi(r.FormValue("frameNumber"))

	deviceID := r.FormValue("deviceId")
	if deviceID == "" {
		deviceID = identity.ResolveDeviceID(r.Header, identity.DefaultDeviceID)
	}

	h.logger.Info("frame received",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.Int("frame_number", frameNumber),
		slog.Int("size", len(image)),
		slog.String("mime_type", mimeType))

	result, err := h.service.Analyze(r.Context(), AnalyzeRequest{
		Image:          image,
		MimeType:       mimeType,
		Timestamp:      timestamp,
		FrameNumber:    frameNumber,
		ConversationID: r.FormValue("conversationId"),
		DeviceID:       deviceID,
	})
	if err != nil {
		h.logger.Error("frame analysis failed",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()))
		api.JSONRaw(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Failed to process request",
			"error":   err.Error(),
		})
		return
	}

	api.JSONRaw(w, http.StatusOK, result)
}
