// Package identity derives stable device and conversation identifiers from
// request metadata. It holds no state; both identifiers are computed
// deterministically so that no lookup is needed to cluster screenshots.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultDeviceID is the fallback used when no identity hint is present.
const DefaultDeviceID = "unknown-device"

// conversationWindow is the clustering window: screenshots from the same
// device within one window collapse onto the same conversation id.
const conversationWindow = 2 * time.Hour

// deviceHeaders is the priority order of transport hints for a device id.
// User-Agent is a weak, potentially colliding signal; it is acceptable only
// because conversation clustering already tolerates bucket-boundary merges.
var deviceHeaders = []string{"X-Device-Id", "X-Client-Id", "User-Agent"}

// ResolveDeviceID returns the first non-empty device hint from header, or
// fallback. It never fails.
func ResolveDeviceID(header http.Header, fallback string) string {
	for _, h := range deviceHeaders {
		if v := header.Get(h); v != "" {
			return v
		}
	}
	return fallback
}

// ConversationID derives a conversation id by bucketing ts into fixed
// 2-hour windows and hashing the device id with the bucket index. Two
// screenshots in the same bucket always map to the same id; a real
// conversation that straddles a bucket boundary splits into two ids, and two
// unrelated sessions in one bucket merge. Both are accepted trade-offs of
// lookup-free clustering.
func ConversationID(deviceID string, ts time.Time) string {
	bucket := ts.UnixMilli() / conversationWindow.Milliseconds()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", deviceID, bucket)))
	return "conv_" + hex.EncodeToString(sum[:])[:16]
}

// ResolveConversationID trusts a non-blank client-provided id verbatim (no
// existence check); otherwise it derives one from the device and timestamp.
func ResolveConversationID(provided, deviceID string, ts time.Time) string {
	if trimmed := strings.TrimSpace(provided); trimmed != "" {
		return trimmed
	}
	return ConversationID(deviceID, ts)
}
