package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScreenshotHash_Deterministic(t *testing.T) {
	h1 := ScreenshotHash([]byte("frame-bytes"))
	h2 := ScreenshotHash([]byte("frame-bytes"))
	h3 := ScreenshotHash([]byte("other-bytes"))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestIsScreenshotDuplicate(t *testing.T) {
	m := NewMemory("conv", "dev", 0)
	m.Messages = append(m.Messages, Message{ScreenshotHash: "h1"}, Message{ScreenshotHash: "h2"})

	assert.True(t, IsScreenshotDuplicate(m, "h1"))
	assert.True(t, IsScreenshotDuplicate(m, "h2"))
	assert.False(t, IsScreenshotDuplicate(m, "h3"))

	// same check twice against the same snapshot agrees with itself
	assert.Equal(t, IsScreenshotDuplicate(m, "h1"), IsScreenshotDuplicate(m, "h1"))
}

func TestIsScreenshotDuplicate_EmptyHashNeverMatches(t *testing.T) {
	m := NewMemory("conv", "dev", 0)
	m.Messages = append(m.Messages, Message{ScreenshotHash: ""})

	assert.False(t, IsScreenshotDuplicate(m, ""))
}

func TestCheckDuplicateRules_InsideCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory("conv", "dev", 0)
	m.Notifications = append(m.Notifications, NotificationRecord{
		Type:   TypeFriendzone,
		SentAt: now.Add(-4*time.Minute - 59*time.Second).UnixMilli(),
	})

	check := CheckDuplicateRules(m, TypeFriendzone, now)

	assert.True(t, check.IsDuplicate)
	assert.Contains(t, check.Reason, `"friendzone-alert"`)
	assert.Contains(t, check.Reason, "4 minutes ago")
	assert.Equal(t, m.Notifications[0].SentAt, check.LastSentAt)
}

func TestCheckDuplicateRules_OutsideCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory("conv", "dev", 0)
	m.Notifications = append(m.Notifications, NotificationRecord{
		Type:   TypeFriendzone,
		SentAt: now.Add(-5*time.Minute - time.Second).UnixMilli(),
	})

	check := CheckDuplicateRules(m, TypeFriendzone, now)

	assert.False(t, check.IsDuplicate)
	assert.Empty(t, check.Reason)
}

func TestCheckDuplicateRules_DifferentTypeAllowed(t *testing.T) {
	now := time.Now()
	m := NewMemory("conv", "dev", 0)
	m.Notifications = append(m.Notifications, NotificationRecord{
		Type:   TypeSmallTalk,
		SentAt: now.UnixMilli(),
	})

	assert.False(t, CheckDuplicateRules(m, TypeFriendzone, now).IsDuplicate)
}

func TestClassifyNotificationType(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"small talk keyword", "yo quit beating around the bush", TypeSmallTalk},
		{"case insensitive", "that's endless Small Talk", TypeSmallTalk},
		{"you pick", "stop. 'you pick' is weak. pick a place and time.", TypePassivePlanning},
		{"decisiveness", "decisiveness is hot", TypePassivePlanning},
		{"friendzone", "friendzone alert, this chat is so tame", TypeFriendzone},
		{"tame alone", "this chat is tame", TypeFriendzone},
		{"dumb message", "do not hit send on that", TypeDumbMessage},
		{"boring message", "that's the most boring message i've ever seen", TypeDumbMessage},
		{"fallback", "just say hey", TypeGeneralAdvice},
		{"empty body", "", TypeGeneralAdvice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyNotificationType(tt.body))
		})
	}
}

func TestClassifyNotificationType_PriorityOrder(t *testing.T) {
	// Matches both small-talk and friendzone keywords; small talk is checked
	// first, so it wins.
	body := "quit the small talk, this is friendzone territory"
	assert.Equal(t, TypeSmallTalk, ClassifyNotificationType(body))

	// Passive-planning beats dumb-message.
	body = "'you pick' is a dumb move"
	assert.Equal(t, TypePassivePlanning, ClassifyNotificationType(body))
}
