package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cupid-copilot/backend/internal/conversation"
	"github.com/cupid-copilot/backend/internal/metrics"
	"github.com/cupid-copilot/backend/internal/push"
)

// Sender fans a notification out to every registered device.
type Sender interface {
	SendToAll(ctx context.Context, title, body string) (push.SendResult, error)
}

// SendOutcome is what the model reads back from a sendPushNotification call.
// Blocked and validation results are ordinary outcomes, not errors, so the
// model can see why its notification was refused and move on.
type SendOutcome struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Sent          int    `json:"sent,omitempty"`
	Total         int    `json:"total,omitempty"`
	InvalidTokens int    `json:"invalidTokens,omitempty"`
	Blocked       bool   `json:"blocked,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Error         string `json:"error,omitempty"`
}

// NotificationGuard enforces the anti-spam policy for a single frame: at most
// one notification per request, and none whose type is still inside the
// cooldown window of the loaded conversation. Built fresh per request; holds
// no state beyond it.
type NotificationGuard struct {
	memory    *conversation.Memory
	sender    Sender
	now       func() time.Time
	logger    *slog.Logger
	sent      int
	delivered []conversation.NotificationRecord
}

func NewNotificationGuard(m *conversation.Memory, sender Sender, now func() time.Time, logger *slog.Logger) *NotificationGuard {
	return &NotificationGuard{memory: m, sender: sender, now: now, logger: logger}
}

// Send runs the policy checks and, if they pass, delivers to all devices.
// The returned error is reserved for transport failures.
func (g *NotificationGuard) Send(ctx context.Context, title, body string) (SendOutcome, error) {
	if title == "" || body == "" {
		return SendOutcome{
			Success: false,
			Error:   "notification title and body are required",
		}, nil
	}

	if g.sent >= 1 {
		metrics.NotificationsBlockedTotal.WithLabelValues("request_cap").Inc()
		g.logger.Info("notification blocked: per-frame cap reached",
			slog.String("conversation_id", g.memory.ConversationID))
		return SendOutcome{
			Success: false,
			Blocked: true,
			Reason:  "already sent a notification for this frame",
		}, nil
	}

	notificationType := conversation.ClassifyNotificationType(body)
	if check := conversation.CheckDuplicateRules(g.memory, notificationType, g.now()); check.IsDuplicate {
		metrics.NotificationsBlockedTotal.WithLabelValues("cooldown").Inc()
		g.logger.Info("notification blocked: cooldown",
			slog.String("conversation_id", g.memory.ConversationID),
			slog.String("type", notificationType),
			slog.String("reason", check.Reason))
		return SendOutcome{
			Success: false,
			Blocked: true,
			Reason:  check.Reason,
		}, nil
	}

	result, err := g.sender.SendToAll(ctx, title, body)
	if err != nil {
		return SendOutcome{}, fmt.Errorf("notification delivery failed: %w", err)
	}
	if !result.Success {
		return SendOutcome{
			Success: false,
			Error:   "Failed to send notifications",
		}, nil
	}

	g.sent++
	g.delivered = append(g.delivered, conversation.NotificationRecord{
		Type:   notificationType,
		Title:  title,
		Body:   body,
		SentAt: g.now().UnixMilli(),
	})
	metrics.NotificationsSentTotal.WithLabelValues(notificationType).Inc()
	g.logger.Info("notification sent",
		slog.String("conversation_id", g.memory.ConversationID),
		slog.String("type", notificationType),
		slog.Int("recipients", result.Sent))

	return SendOutcome{
		Success:       true,
		Message:       fmt.Sprintf("Successfully sent push notification to %d users", result.Sent),
		Sent:          result.Sent,
		Total:         result.Total,
		InvalidTokens: len(result.InvalidTokens),
	}, nil
}

// Delivered returns the notifications that actually went out during this
// frame, for the caller to persist into conversation memory.
func (g *NotificationGuard) Delivered() []conversation.NotificationRecord {
	return g.delivered
}
