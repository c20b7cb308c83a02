package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NotificationCooldown is the hard anti-spam rule: the same notification type
// is never sent twice within this window.
const NotificationCooldown = 5 * time.Minute

// Notification type tags. The cooldown is keyed on these, so the classifier
// below must stay stable: changing a keyword changes which past sends count
// as duplicates.
const (
	TypeSmallTalk       = "endless-small-talk"
	TypePassivePlanning = "passive-planning"
	TypeFriendzone      = "friendzone-alert"
	TypeDumbMessage     = "dumb-message"
	TypeGeneralAdvice   = "general-advice"
)

// DuplicateCheck is the outcome of the cooldown rule.
type DuplicateCheck struct {
	IsDuplicate bool
	Reason      string
	LastSentAt  int64
}

// ScreenshotHash returns the content hash used for exact-duplicate detection.
// Byte-exact only: a frame that differs by one pixel is a different hash.
func ScreenshotHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsScreenshotDuplicate reports whether the hash was already analyzed in this
// conversation.
func IsScreenshotDuplicate(m *Memory, screenshotHash string) bool {
	if screenshotHash == "" {
		return false
	}
	for _, msg := range m.Messages {
		if msg.ScreenshotHash == screenshotHash {
			return true
		}
	}
	return false
}

// CheckDuplicateRules reports whether a notification of the given type is
// still inside the cooldown window at now. Pure over the loaded record.
func CheckDuplicateRules(m *Memory, notificationType string, now time.Time) DuplicateCheck {
	nowMs := now.UnixMilli()
	for _, n := range m.Notifications {
		if n.Type == notificationType && nowMs-n.SentAt < NotificationCooldown.Milliseconds() {
			minutesAgo := (nowMs - n.SentAt) / 1000 / 60
			return DuplicateCheck{
				IsDuplicate: true,
				Reason:      fmt.Sprintf("Same notification type %q sent %d minutes ago", notificationType, minutesAgo),
				LastSentAt:  n.SentAt,
			}
		}
	}
	return DuplicateCheck{}
}

// ClassifyNotificationType maps a free-text notification body onto a fixed
// tag set by case-insensitive keyword match. Categories are checked in a
// fixed priority order and the first match wins, which keeps the result
// deterministic even when a body matches several categories.
func ClassifyNotificationType(body string) string {
	lower := strings.ToLower(body)

	switch {
	case containsAny(lower, "small talk", "beating around the bush"):
		return TypeSmallTalk
	case containsAny(lower, "you pick", "passive", "decisiveness"):
		return TypePassivePlanning
	case containsAny(lower, "friendzone", "tame"):
		return TypeFriendzone
	case containsAny(lower, "dumb", "boring message", "do not hit send"):
		return TypeDumbMessage
	default:
		return TypeGeneralAdvice
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
