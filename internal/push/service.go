package push

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cupid-copilot/backend/internal/conversation"
)

// TokenStore persists registered device tokens.
type TokenStore interface {
	Upsert(ctx context.Context, t Token) error
	List(ctx context.Context) ([]Token, error)
	Delete(ctx context.Context, token string) error
}

// Deliverer fans one notification out to a recipient list.
type Deliverer interface {
	SendToTokens(ctx context.Context, tokens []string, title, body string) (SendResult, error)
}

// ConversationSource provides per-device notification history.
type ConversationSource interface {
	ListDeviceConversations(ctx context.Context, deviceID string) ([]string, error)
	Load(ctx context.Context, conversationID, deviceID string) *conversation.Memory
}

// DeviceNotification is one delivered notification with its conversation
// attribution, for history listings.
type DeviceNotification struct {
	ConversationID string `json:"conversationId"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	SentAt         int64  `json:"sentAt"`
	TriggerReason  string `json:"triggerReason"`
}

// Service registers tokens and fans notifications out to every device.
type Service struct {
	repo          TokenStore
	expo          Deliverer
	conversations ConversationSource
	logger        *slog.Logger
}

func NewService(repo TokenStore, expo Deliverer, conversations ConversationSource, logger *slog.Logger) *Service {
	return &Service{repo: repo, expo: expo, conversations: conversations, logger: logger}
}

// Register stores a device token, rejecting tokens that do not look like
// Expo push tokens.
func (s *Service) Register(ctx context.Context, req RegisterTokenRequest) (Token, error) {
	if !IsExpoToken(req.Token) {
		return Token{}, fmt.Errorf("token %q is not a valid expo push token", req.Token)
	}
	t := Token{
		Token:      req.Token,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		Platform:   req.Platform,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, t); err != nil {
		return Token{}, err
	}
	s.logger.Info("registered push token",
		slog.String("device_id", t.DeviceID),
		slog.String("platform", t.Platform))
	return t, nil
}

// ListTokens returns every registered token.
func (s *Service) ListTokens(ctx context.Context) ([]Token, error) {
	return s.repo.List(ctx)
}

// SendToAll delivers one notification to every registered device.
func (s *Service) SendToAll(ctx context.Context, title, body string) (SendResult, error) {
	tokens, err := s.repo.List(ctx)
	if err != nil {
		return SendResult{}, err
	}
	if len(tokens) == 0 {
		return SendResult{}, fmt.Errorf("no push tokens registered")
	}
	recipients := make([]string, len(tokens))
	for i, t := range tokens {
		recipients[i] = t.Token
	}
	result, err := s.expo.SendToTokens(ctx, recipients, title, body)
	if err != nil {
		return result, err
	}
	s.pruneUnregistered(ctx, result)
	return result, nil
}

// pruneUnregistered drops tokens Expo reported as DeviceNotRegistered so dead
// devices stop counting against future sends. Best effort: a failed delete is
// logged and retried naturally on the next send.
func (s *Service) pruneUnregistered(ctx context.Context, result SendResult) {
	for _, delivery := range result.Errors {
		if delivery.Token == "" || !strings.Contains(delivery.Message, "DeviceNotRegistered") {
			continue
		}
		if err := s.repo.Delete(ctx, delivery.Token); err != nil {
			s.logger.Warn("failed to prune unregistered push token",
				slog.String("token", delivery.Token),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.Info("pruned unregistered push token", slog.String("token", delivery.Token))
	}
}

// SendTo delivers one notification to an explicit recipient list.
func (s *Service) SendTo(ctx context.Context, recipients []string, title, body string) (SendResult, error) {
	if len(recipients) == 0 {
		return SendResult{}, fmt.Errorf("no recipients given")
	}
	return s.expo.SendToTokens(ctx, recipients, title, body)
}

// DeviceNotifications flattens the notification history across every
// conversation the device has, newest first.
func (s *Service) DeviceNotifications(ctx context.Context, deviceID string) ([]DeviceNotification, error) {
	ids, err := s.conversations.ListDeviceConversations(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	var history []DeviceNotification
	for _, id := range ids {
		m := s.conversations.Load(ctx, id, deviceID)
		for _, rec := range m.Notifications {
			history = append(history, DeviceNotification{
				ConversationID: id,
				Type:           rec.Type,
				Title:          rec.Title,
				Body:           rec.Body,
				SentAt:         rec.SentAt,
				TriggerReason:  rec.TriggerReason,
			})
		}
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].SentAt > history[j].SentAt
	})
	return history, nil
}
