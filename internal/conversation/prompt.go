package conversation

import (
	"fmt"
	"strings"
	"time"
)

// promptRecentMessages caps how many prior analyses are rendered into the prompt.
const promptRecentMessages = 5

// RenderWithMemory appends the conversation's history to basePrompt so the
// model can judge the new frame in context. A conversation with no prior
// messages gets basePrompt unchanged. The rendered block is pure templating
// over the record; the instructions at the end restate the anti-spam rules
// the guard enforces anyway, so the model fails closed either way.
func RenderWithMemory(basePrompt string, m *Memory, now time.Time) string {
	if len(m.Messages) == 0 {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nconversation memory (what you've seen from this user so far):\n")

	b.WriteString("\nrecent analyses:\n")
	start := len(m.Messages) - promptRecentMessages
	if start < 0 {
		start = 0
	}
	for _, msg := range m.Messages[start:] {
		b.WriteString(fmt.Sprintf("- [%s] %s\n", elapsed(msg.Timestamp, now), msg.AIAnalysis))
	}

	if len(m.Notifications) > 0 {
		b.WriteString("\nnotifications you already sent:\n")
		for _, n := range m.Notifications {
			b.WriteString(fmt.Sprintf("- [%s] %s: %q (trigger: %s)\n",
				elapsed(n.SentAt, now), n.Type, n.Body, n.TriggerReason))
		}
	}

	b.WriteString(fmt.Sprintf("\nuser patterns: state=%s", m.Patterns.CurrentState))
	if len(m.Patterns.CommonMistakes) > 0 {
		b.WriteString(fmt.Sprintf(", mistakes=[%s]", strings.Join(m.Patterns.CommonMistakes, ", ")))
	}
	if len(m.Patterns.Improvements) > 0 {
		b.WriteString(fmt.Sprintf(", improvements=[%s]", strings.Join(m.Patterns.Improvements, ", ")))
	}
	b.WriteString("\n")

	b.WriteString(`
how to use this memory:
- default to silence. a notification you don't send costs nothing; a spammy one gets you muted.
- if the user is already fixing the thing you'd nag them about (see improvements above), stay silent.
- if the screen shows them mid-composition, let them finish: judge the sent message, not the draft in progress.
- never repeat a notification type you sent within the last few minutes; it's in the list above, they saw it.
- examples:
  - you sent a friendzone-alert 2 minutes ago and the chat is still tame: STAY SILENT, they got the memo.
  - last analysis said "opener was lazy" and this frame shows a rewritten, specific opener: STAY SILENT, they're improving.
  - the user typed "you pick" for the third time and you've never flagged it: SEND, that's the moment.
`)

	return b.String()
}

func elapsed(tsMs int64, now time.Time) string {
	d := now.Sub(time.UnixMilli(tsMs))
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%dm ago", int(d.Hours()), int(d.Minutes())%60)
}
