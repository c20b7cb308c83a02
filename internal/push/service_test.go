package push

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupid-copilot/backend/internal/conversation"
)

type fakeTokenStore struct {
	tokens    []Token
	deleted   []string
	upsertErr error
}

func (f *fakeTokenStore) Upsert(_ context.Context, t Token) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.tokens = append(f.tokens, t)
	return nil
}

func (f *fakeTokenStore) List(_ context.Context) ([]Token, error) {
	return f.tokens, nil
}

func (f *fakeTokenStore) Delete(_ context.Context, token string) error {
	f.deleted = append(f.deleted, token)
	kept := f.tokens[:0]
	for _, t := range f.tokens {
		if t.Token != token {
			kept = append(kept, t)
		}
	}
	f.tokens = kept
	return nil
}

type fakeDeliverer struct {
	recipients []string
	title      string
	body       string
	result     SendResult
}

func (f *fakeDeliverer) SendToTokens(_ context.Context, tokens []string, title, body string) (SendResult, error) {
	f.recipients = tokens
	f.title = title
	f.body = body
	return f.result, nil
}

type fakeConversations struct {
	ids      []string
	memories map[string]*conversation.Memory
}

func (f *fakeConversations) ListDeviceConversations(_ context.Context, _ string) ([]string, error) {
	return f.ids, nil
}

func (f *fakeConversations) Load(_ context.Context, id, deviceID string) *conversation.Memory {
	if m, ok := f.memories[id]; ok {
		return m
	}
	return conversation.NewMemory(id, deviceID, time.Now().UnixMilli())
}

func TestService_Register(t *testing.T) {
	store := &fakeTokenStore{}
	svc := NewService(store, &fakeDeliverer{}, &fakeConversations{}, discardLogger())

	token, err := svc.Register(context.Background(), RegisterTokenRequest{
		Token:    "ExpoPushToken[abc]",
		DeviceID: "device-1",
		Platform: "ios",
	})

	require.NoError(t, err)
	assert.Equal(t, "ExpoPushToken[abc]", token.Token)
	assert.False(t, token.UpdatedAt.IsZero())
	require.Len(t, store.tokens, 1)
}

func TestService_Register_RejectsMalformedToken(t *testing.T) {
	store := &fakeTokenStore{}
	svc := NewService(store, &fakeDeliverer{}, &fakeConversations{}, discardLogger())

	_, err := svc.Register(context.Background(), RegisterTokenRequest{Token: "junk"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid expo push token")
	assert.Empty(t, store.tokens)
}

func TestService_SendToAll(t *testing.T) {
	store := &fakeTokenStore{tokens: []Token{
		{Token: "ExpoPushToken[a]"},
		{Token: "ExpoPushToken[b]"},
	}}
	deliverer := &fakeDeliverer{result: SendResult{Success: true, Sent: 2, Total: 2}}
	svc := NewService(store, deliverer, &fakeConversations{}, discardLogger())

	result, err := svc.SendToAll(context.Background(), "heads up", "she went quiet")

	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, []string{"ExpoPushToken[a]", "ExpoPushToken[b]"}, deliverer.recipients)
	assert.Equal(t, "heads up", deliverer.title)
	assert.Equal(t, "she went quiet", deliverer.body)
}

func TestService_SendToAll_PrunesUnregisteredTokens(t *testing.T) {
	store := &fakeTokenStore{tokens: []Token{
		{Token: "ExpoPushToken[alive]"},
		{Token: "ExpoPushToken[dead]"},
	}}
	deliverer := &fakeDeliverer{result: SendResult{
		Success: true,
		Sent:    1,
		Total:   2,
		Errors: []DeliveryError{
			{Token: "ExpoPushToken[dead]", Message: "DeviceNotRegistered"},
		},
	}}
	svc := NewService(store, deliverer, &fakeConversations{}, discardLogger())

	_, err := svc.SendToAll(context.Background(), "t", "b")

	require.NoError(t, err)
	assert.Equal(t, []string{"ExpoPushToken[dead]"}, store.deleted)

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "ExpoPushToken[alive]", remaining[0].Token)
}

func TestService_SendToAll_KeepsTokensOnTransientErrors(t *testing.T) {
	store := &fakeTokenStore{tokens: []Token{{Token: "ExpoPushToken[alive]"}}}
	deliverer := &fakeDeliverer{result: SendResult{
		Success: true,
		Sent:    0,
		Total:   1,
		Errors: []DeliveryError{
			{Message: "expo returned status 502"},
			{Token: "ExpoPushToken[alive]", Message: "MessageRateExceeded"},
		},
	}}
	svc := NewService(store, deliverer, &fakeConversations{}, discardLogger())

	_, err := svc.SendToAll(context.Background(), "t", "b")

	require.NoError(t, err)
	assert.Empty(t, store.deleted, "only DeviceNotRegistered tickets prune tokens")
}

func TestService_SendToAll_NoTokensRegistered(t *testing.T) {
	svc := NewService(&fakeTokenStore{}, &fakeDeliverer{}, &fakeConversations{}, discardLogger())

	_, err := svc.SendToAll(context.Background(), "t", "b")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no push tokens registered")
}

func TestService_DeviceNotifications_SortedNewestFirst(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()

	older := conversation.NewMemory("conv_aaa", "device-1", base)
	older.Notifications = append(older.Notifications, conversation.NotificationRecord{
		Type: conversation.TypeFriendzone, Title: "old", SentAt: base,
	})
	newer := conversation.NewMemory("conv_bbb", "device-1", base)
	newer.Notifications = append(newer.Notifications,
		conversation.NotificationRecord{Type: conversation.TypeSmallTalk, Title: "mid", SentAt: base + 10*60*1000},
		conversation.NotificationRecord{Type: conversation.TypeDumbMessage, Title: "new", SentAt: base + 20*60*1000},
	)

	svc := NewService(&fakeTokenStore{}, &fakeDeliverer{}, &fakeConversations{
		ids: []string{"conv_aaa", "conv_bbb"},
		memories: map[string]*conversation.Memory{
			"conv_aaa": older,
			"conv_bbb": newer,
		},
	}, discardLogger())

	history, err := svc.DeviceNotifications(context.Background(), "device-1")

	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "new", history[0].Title)
	assert.Equal(t, "mid", history[1].Title)
	assert.Equal(t, "old", history[2].Title)
	assert.Equal(t, "conv_bbb", history[0].ConversationID)
}

func TestService_DeviceNotifications_EmptyDevice(t *testing.T) {
	svc := NewService(&fakeTokenStore{}, &fakeDeliverer{}, &fakeConversations{}, discardLogger())

	history, err := svc.DeviceNotifications(context.Background(), "device-unknown")

	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_Register_PropagatesStoreError(t *testing.T) {
	store := &fakeTokenStore{upsertErr: fmt.Errorf("connection refused")}
	svc := NewService(store, &fakeDeliverer{}, &fakeConversations{}, discardLogger())

	_, err := svc.Register(context.Background(), RegisterTokenRequest{Token: "ExpoPushToken[abc]"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
