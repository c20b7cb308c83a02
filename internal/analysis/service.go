package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cupid-copilot/backend/internal/conversation"
	"github.com/cupid-copilot/backend/internal/identity"
	"github.com/cupid-copilot/backend/internal/llm"
	"github.com/cupid-copilot/backend/internal/metrics"
)

const skipReasonDuplicate = "Duplicate screenshot already analyzed"

// Invoker runs one image analysis against the model.
type Invoker interface {
	Analyze(ctx context.Context, req llm.InvokeRequest) (llm.InvokeResult, error)
}

// AnalyzeRequest is one screenshot frame plus its request metadata.
// ConversationID and DeviceID are optional client overrides.
type AnalyzeRequest struct {
	Image          []byte
	MimeType       string
	Timestamp      int64
	FrameNumber    int
	ConversationID string
	DeviceID       string
}

// ToolCallInfo mirrors the tool-call echo the mobile client expects.
type ToolCallInfo struct {
	Tool string `json:"tool"`
}

// AnalyzeResult is the flat frame-analysis response.
type AnalyzeResult struct {
	Success        bool           `json:"success"`
	Skipped        bool           `json:"skipped,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	ConversationID string         `json:"conversationId"`
	DeviceID       string         `json:"deviceId"`
	FrameNumber    int            `json:"frameNumber"`
	Timestamp      int64          `json:"timestamp"`
	ReceivedSize   int            `json:"receivedSize"`
	Description    string         `json:"description,omitempty"`
	ToolCalls      []ToolCallInfo `json:"toolCalls,omitempty"`
	ReceivedAt     string         `json:"receivedAt"`
}

// Service drives a frame through duplicate detection, the model, and memory.
type Service struct {
	store   *conversation.Store
	invoker Invoker
	sender  Sender
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store *conversation.Store, invoker Invoker, sender Sender, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		invoker: invoker,
		sender:  sender,
		logger:  logger,
		now:     time.Now,
	}
}

var sendNotificationSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"title": {
			"type": "string",
			"description": "The notification title (short and attention-grabbing)"
		},
		"body": {
			"type": "string",
			"description": "The notification message body (clear and concise)"
		}
	},
	"required": ["title", "body"]
}`)

// Analyze processes one frame. Exact duplicates short-circuit before any
// model call or write; otherwise the model sees the memory-aware prompt and
// a rate-guarded sendPushNotification tool, and the outcome is persisted.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	now := s.now()
	frameTime := now
	if req.Timestamp > 0 {
		frameTime = time.UnixMilli(req.Timestamp)
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = identity.DefaultDeviceID
	}
	conversationID := identity.ResolveConversationID(req.ConversationID, deviceID, frameTime)

	result := AnalyzeResult{
		ConversationID: conversationID,
		DeviceID:       deviceID,
		FrameNumber:    req.FrameNumber,
		Timestamp:      req.Timestamp,
		ReceivedSize:   len(req.Image),
		ReceivedAt:     now.UTC().Format(time.RFC3339),
	}

	memory := s.store.Load(ctx, conversationID, deviceID)
	hash := conversation.ScreenshotHash(req.Image)

	if conversation.IsScreenshotDuplicate(memory, hash) {
		metrics.DuplicateFramesTotal.Inc()
		s.logger.Info("skipping duplicate screenshot",
			slog.String("conversation_id", conversationID),
			slog.Int("frame_number", req.FrameNumber))
		result.Success = true
		result.Skipped = true
		result.Reason = skipReasonDuplicate
		return result, nil
	}

	guard := NewNotificationGuard(memory, s.sender, s.now, s.logger)
	tool := llm.Tool{
		Name:        "sendPushNotification",
		Description: "Sends a push notification to all registered users. Use this when you need to alert or notify all users about important information, updates, or events.",
		Parameters:  sendNotificationSchema,
		Handle: func(ctx context.Context, args json.RawMessage) (any, error) {
			var params struct {
				Title string `json:"title"`
				Body  string `json:"body"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return nil, fmt.Errorf("invalid sendPushNotification arguments: %w", err)
			}
			return guard.Send(ctx, params.Title, params.Body)
		},
	}

	invoked, err := s.invoker.Analyze(ctx, llm.InvokeRequest{
		SystemPrompt: conversation.RenderWithMemory(SystemPrompt, memory, now),
		Prompt:       framePrompt,
		ImageData:    req.Image,
		ImageMIME:    req.MimeType,
		Tools:        []llm.Tool{tool},
	})
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("model analysis failed: %w", err)
	}
	metrics.FramesAnalyzedTotal.Inc()

	delivered := guard.Delivered()
	err = s.store.Update(ctx, conversationID, deviceID, func(m *conversation.Memory) {
		m.Messages = append(m.Messages, conversation.Message{
			Timestamp:      frameTime.UnixMilli(),
			FrameNumber:    req.FrameNumber,
			AIAnalysis:     invoked.Text,
			ScreenshotHash: hash,
		})
		for _, rec := range delivered {
			rec.TriggerReason = invoked.Text
			m.Notifications = append(m.Notifications, rec)
		}
	})
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("failed to persist conversation memory: %w", err)
	}

	result.Success = true
	result.Description = invoked.Text
	for _, call := range invoked.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCallInfo{Tool: call.Name})
	}
	return result, nil
}
