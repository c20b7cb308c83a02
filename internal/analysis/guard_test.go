package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupid-copilot/backend/internal/conversation"
	"github.com/cupid-copilot/backend/internal/push"
)

type fakeSender struct {
	calls  int
	titles []string
	result push.SendResult
	err    error
}

func (f *fakeSender) SendToAll(_ context.Context, title, _ string) (push.SendResult, error) {
	f.calls++
	f.titles = append(f.titles, title)
	if f.err != nil {
		return push.SendResult{}, f.err
	}
	return f.result, nil
}

func okSender() *fakeSender {
	return &fakeSender{result: push.SendResult{Success: true, Sent: 3, Total: 3}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGuard_SendDelivers(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := conversation.NewMemory("conv_abc", "device-1", now.UnixMilli())
	sender := okSender()
	guard := NewNotificationGuard(m, sender, fixedNow(now), discardLogger())

	outcome, err := guard.Send(context.Background(), "🚨 friendzone alert 🚨", "this chat is so tame")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "Successfully sent push notification to 3 users", outcome.Message)
	assert.Equal(t, 3, outcome.Sent)
	assert.Equal(t, 1, sender.calls)

	delivered := guard.Delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, conversation.TypeFriendzone, delivered[0].Type)
	assert.Equal(t, now.UnixMilli(), delivered[0].SentAt)
}

func TestGuard_SendValidatesTitleAndBody(t *testing.T) {
	now := time.Now()
	m := conversation.NewMemory("conv_abc", "device-1", now.UnixMilli())
	sender := okSender()
	guard := NewNotificationGuard(m, sender, time.Now, discardLogger())

	for _, tc := range []struct{ title, body string }{
		{"", "body"},
		{"title", ""},
		{"", ""},
	} {
		outcome, err := guard.Send(context.Background(), tc.title, tc.body)
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Equal(t, "notification title and body are required", outcome.Error)
	}
	assert.Zero(t, sender.calls)
	assert.Empty(t, guard.Delivered())
}

func TestGuard_SecondSendBlockedByFrameCap(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := conversation.NewMemory("conv_abc", "device-1", now.UnixMilli())
	sender := okSender()
	guard := NewNotificationGuard(m, sender, fixedNow(now), discardLogger())

	first, err := guard.Send(context.Background(), "friendzone alert", "this chat is tame")
	require.NoError(t, err)
	require.True(t, first.Success)

	// A different type is still blocked: the cap is per frame, not per type.
	second, err := guard.Send(context.Background(), "quit the small talk", "stop beating around the bush")
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.True(t, second.Blocked)
	assert.Equal(t, "already sent a notification for this frame", second.Reason)
	assert.Equal(t, 1, sender.calls)
	assert.Len(t, guard.Delivered(), 1)
}

func TestGuard_CooldownBlocksSameType(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := conversation.NewMemory("conv_abc", "device-1", now.UnixMilli())
	m.Notifications = append(m.Notifications, conversation.NotificationRecord{
		Type:   conversation.TypeFriendzone,
		SentAt: now.Add(-3 * time.Minute).UnixMilli(),
	})
	sender := okSender()
	guard := NewNotificationGuard(m, sender, fixedNow(now), discardLogger())

	outcome, err := guard.Send(context.Background(), "friendzone alert", "this chat is so tame")

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.True(t, outcome.Blocked)
	assert.Equal(t, `Same notification type "friendzone-alert" sent 3 minutes ago`, outcome.Reason)
	assert.Zero(t, sender.calls)
}

func TestGuard_CooldownExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := conversation.NewMemory("conv_abc", "device-1", now.UnixMilli())
	m.Notifications = append(m.Notifications, conversation.NotificationRecord{
		Type:   conversation.TypeFriendzone,
		SentAt: now.Add(-6 * time.Minute).UnixMilli(),
	})
	sender := okSender()
	guard := NewNotificationGuard(m, sender, fixedNow(now), discardLogger())

	outcome, err := guard.Send(context.Background(), "friendzone alert", "this chat is so tame")

	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 1, sender.calls)
}

func TestGuard_TransportFailureIsError(t *testing.T) {
	now := time.Now()
	m := conversation.NewMemory("conv_abc", "device-1", now.UnixMilli())
	sender := &fakeSender{err: fmt.Errorf("expo unreachable")}
	guard := NewNotificationGuard(m, sender, time.Now, discardLogger())

	_, err := guard.Send(context.Background(), "t", "b")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expo unreachable")
	assert.Empty(t, guard.Delivered())
}

func TestGuard_DeliveryFailureNotRecorded(t *testing.T) {
	now := time.Now()
	m := conversation.NewMemory("conv_abc", "device-1", now.UnixMilli())
	sender := &fakeSender{result: push.SendResult{Success: false}}
	guard := NewNotificationGuard(m, sender, time.Now, discardLogger())

	outcome, err := guard.Send(context.Background(), "t", "b")

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "Failed to send notifications", outcome.Error)
	assert.Empty(t, guard.Delivered())

	// The failed attempt does not count against the per-frame cap.
	sender.result = push.SendResult{Success: true, Sent: 1, Total: 1}
	retry, err := guard.Send(context.Background(), "t", "b")
	require.NoError(t, err)
	assert.True(t, retry.Success)
}
