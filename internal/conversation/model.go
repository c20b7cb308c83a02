package conversation

import "fmt"

// Memory is the durable per-conversation record. JSON field names match the
// records the mobile clients already have in flight, so they must not change.
type Memory struct {
	ConversationID string               `json:"conversationId"`
	DeviceID       string               `json:"deviceId"`
	StartedAt      int64                `json:"startedAt"`
	LastUpdatedAt  int64                `json:"lastUpdatedAt"`
	Messages       []Message            `json:"messages"`
	Notifications  []NotificationRecord `json:"notifications"`
	Patterns       UserPatterns         `json:"patterns"`
}

// Message is one analyzed screenshot frame.
type Message struct {
	Timestamp      int64  `json:"timestamp"`
	FrameNumber    int    `json:"frameNumber"`
	AIAnalysis     string `json:"aiAnalysis"`
	ScreenshotHash string `json:"screenshotHash,omitempty"`
}

// NotificationRecord is one coaching notification that was actually delivered.
type NotificationRecord struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Body          string `json:"body"`
	SentAt        int64  `json:"sentAt"`
	TriggerReason string `json:"triggerReason"`
}

// UserPatterns is a coarse summary of how the user is doing across frames.
type UserPatterns struct {
	CommonMistakes []string `json:"commonMistakes"`
	Improvements   []string `json:"improvements"`
	CurrentState   string   `json:"currentState"` // "new", "improving", "regressing", "stagnant"
}

// NewMemory returns a fresh record for a conversation with no stored state.
func NewMemory(conversationID, deviceID string, nowMs int64) *Memory {
	return &Memory{
		ConversationID: conversationID,
		DeviceID:       deviceID,
		StartedAt:      nowMs,
		LastUpdatedAt:  nowMs,
		Messages:       []Message{},
		Notifications:  []NotificationRecord{},
		Patterns: UserPatterns{
			CommonMistakes: []string{},
			Improvements:   []string{},
			CurrentState:   "new",
		},
	}
}

// Summary returns a one-line description of the record for debug listings.
func (m *Memory) Summary() string {
	last := "none"
	if n := len(m.Notifications); n > 0 {
		last = m.Notifications[n-1].Type
	}
	return fmt.Sprintf("Conversation %s: %d messages, %d notifications. Current state: %s. Last notification: %s",
		m.ConversationID, len(m.Messages), len(m.Notifications), m.Patterns.CurrentState, last)
}
