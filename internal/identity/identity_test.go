package identity

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveDeviceID_HeaderPriority(t *testing.T) {
	h := http.Header{}
	h.Set("User-Agent", "ios-app/1.0")
	h.Set("X-Client-Id", "client-42")
	h.Set("X-Device-Id", "device-7")

	assert.Equal(t, "device-7", ResolveDeviceID(h, DefaultDeviceID))

	h.Del("X-Device-Id")
	assert.Equal(t, "client-42", ResolveDeviceID(h, DefaultDeviceID))

	h.Del("X-Client-Id")
	assert.Equal(t, "ios-app/1.0", ResolveDeviceID(h, DefaultDeviceID))
}

func TestResolveDeviceID_Fallback(t *testing.T) {
	assert.Equal(t, DefaultDeviceID, ResolveDeviceID(http.Header{}, DefaultDeviceID))
}

func TestConversationID_SameBucketSameID(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id1 := ConversationID("device-1", base)
	id2 := ConversationID("device-1", base.Add(90*time.Minute))

	// 10:00 and 11:30 share the 10:00–12:00 bucket
	assert.Equal(t, id1, id2)
}

func TestConversationID_AdjacentBucketsDiffer(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id1 := ConversationID("device-1", base)
	id2 := ConversationID("device-1", base.Add(2*time.Hour))

	assert.NotEqual(t, id1, id2)
}

func TestConversationID_DevicesIsolated(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.NotEqual(t, ConversationID("device-1", ts), ConversationID("device-2", ts))
}

func TestConversationID_Format(t *testing.T) {
	id := ConversationID("device-1", time.Now())

	assert.True(t, strings.HasPrefix(id, "conv_"))
	assert.Len(t, id, len("conv_")+16)
}

func TestResolveConversationID_ProvidedWins(t *testing.T) {
	got := ResolveConversationID("  conv_custom  ", "device-1", time.Now())
	assert.Equal(t, "conv_custom", got)
}

func TestResolveConversationID_BlankDerives(t *testing.T) {
	ts := time.Now()
	assert.Equal(t, ConversationID("device-1", ts), ResolveConversationID("   ", "device-1", ts))
}
