package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// retention is how long a conversation survives without activity.
	// Expired records are indistinguishable from records that never existed.
	retention = 7 * 24 * time.Hour

	maxMessages      = 20
	maxNotifications = 10
)

func conversationKey(conversationID string) string {
	return "conversations:" + conversationID
}

func deviceConversationsKey(deviceID string) string {
	return fmt.Sprintf("user:%s:conversations", deviceID)
}

// Store owns conversation persistence: it is the only component that commits
// memory records, enforces the message/notification bounds and refreshes the
// device index.
type Store struct {
	client redis.Cmdable

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a conversation store on the given Redis client.
func NewStore(client redis.Cmdable) *Store {
	return &Store{
		client: client,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Load returns the stored record for the conversation, or a fresh unsaved one
// when none exists. Read errors and malformed payloads also degrade to a
// fresh record: a failed read must not fail the request, it only loses
// dedup/cooldown history for this cycle.
func (s *Store) Load(ctx context.Context, conversationID, deviceID string) *Memory {
	data, err := s.client.Get(ctx, conversationKey(conversationID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("loading conversation, starting fresh", "error", err, "conversation_id", conversationID)
		}
		return NewMemory(conversationID, deviceID, time.Now().UnixMilli())
	}

	var m Memory
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		slog.Error("decoding conversation, starting fresh", "error", err, "conversation_id", conversationID)
		return NewMemory(conversationID, deviceID, time.Now().UnixMilli())
	}
	return &m
}

// Save rewrites lastUpdatedAt, trims the bounded lists (oldest entries
// dropped, order preserved) and writes the record plus the device index with
// the retention TTL. Write errors propagate: a silently lost write would
// break the dedup guarantees for every following request.
func (s *Store) Save(ctx context.Context, m *Memory) error {
	m.LastUpdatedAt = time.Now().UnixMilli()

	if len(m.Messages) > maxMessages {
		m.Messages = m.Messages[len(m.Messages)-maxMessages:]
	}
	if len(m.Notifications) > maxNotifications {
		m.Notifications = m.Notifications[len(m.Notifications)-maxNotifications:]
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling conversation: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, conversationKey(m.ConversationID), string(data), retention)
	userKey := deviceConversationsKey(m.DeviceID)
	pipe.SAdd(ctx, userKey, m.ConversationID)
	pipe.Expire(ctx, userKey, retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving conversation %s: %w", m.ConversationID, err)
	}
	return nil
}

// Update runs fn inside a load-mutate-save cycle serialized per conversation,
// so concurrent requests in this process cannot lose each other's appends.
// Writers in other processes still race last-writer-wins.
func (s *Store) Update(ctx context.Context, conversationID, deviceID string, fn func(*Memory)) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	m := s.Load(ctx, conversationID, deviceID)
	fn(m)
	return s.Save(ctx, m)
}

// AppendMessage appends one analyzed frame as a load-mutate-save unit.
func (s *Store) AppendMessage(ctx context.Context, conversationID, deviceID string, msg Message) error {
	return s.Update(ctx, conversationID, deviceID, func(m *Memory) {
		m.Messages = append(m.Messages, msg)
	})
}

// AppendNotification appends one delivered notification as a load-mutate-save unit.
func (s *Store) AppendNotification(ctx context.Context, conversationID, deviceID string, rec NotificationRecord) error {
	return s.Update(ctx, conversationID, deviceID, func(m *Memory) {
		m.Notifications = append(m.Notifications, rec)
	})
}

// UpdatePatterns merges non-zero fields of patterns into the stored summary.
func (s *Store) UpdatePatterns(ctx context.Context, conversationID, deviceID string, patterns UserPatterns) error {
	return s.Update(ctx, conversationID, deviceID, func(m *Memory) {
		if len(patterns.CommonMistakes) > 0 {
			m.Patterns.CommonMistakes = patterns.CommonMistakes
		}
		if len(patterns.Improvements) > 0 {
			m.Patterns.Improvements = patterns.Improvements
		}
		if patterns.CurrentState != "" {
			m.Patterns.CurrentState = patterns.CurrentState
		}
	})
}

// ListDeviceConversations returns the conversation ids recorded for a device.
func (s *Store) ListDeviceConversations(ctx context.Context, deviceID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, deviceConversationsKey(deviceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing conversations for device %s: %w", deviceID, err)
	}
	return ids, nil
}

// ScanConversations walks every stored conversation. Debug listings only; the
// request path never scans.
func (s *Store) ScanConversations(ctx context.Context) ([]*Memory, error) {
	var memories []*Memory
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, conversationKey("*"), 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning conversations: %w", err)
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Result()
			if err != nil {
				continue // expired between SCAN and GET
			}
			var m Memory
			if err := json.Unmarshal([]byte(data), &m); err != nil {
				continue
			}
			memories = append(memories, &m)
		}
		cursor = next
		if cursor == 0 {
			return memories, nil
		}
	}
}

func (s *Store) lockFor(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}
