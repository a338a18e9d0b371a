package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EditState is a step of the date-change confirmation flow. A record being
// edited has no session; one is created in the pending state.
type EditState string

const (
	StatePendingDateConfirmation EditState = "pending_date_confirmation"
	StateApplied                 EditState = "applied"
	StateCancelled               EditState = "cancelled"
)

// EditSession holds a computed change set that waits for the user to
// acknowledge a date change. Nothing is written while it is pending.
type EditSession struct {
	ID              string     `json:"id"`
	AttendanceID    string     `json:"attendance_id"`
	State           EditState  `json:"state"`
	Changes         Changes    `json:"changes"`
	Original        Attendance `json:"original"`
	ExpectedVersion int        `json:"expected_version"`
	CreatedAt       time.Time  `json:"created_at"`
}

// SessionStore keeps pending edit sessions. Get returns nil, nil for
// unknown or expired sessions.
type SessionStore interface {
	Save(ctx context.Context, s EditSession) error
	Get(ctx context.Context, id string) (*EditSession, error)
	Delete(ctx context.Context, id string) error
}

// MemorySessionStore is an in-process SessionStore for dev and tests.
type MemorySessionStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]EditSession
}

// NewMemorySessionStore creates a store whose sessions expire after ttl.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, now: time.Now, items: make(map[string]EditSession)}
}

func (m *MemorySessionStore) Save(_ context.Context, s EditSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = s
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*EditSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && m.now().Sub(s.CreatedAt) > m.ttl {
		delete(m.items, id)
		return nil, nil
	}
	return &s, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// RedisSessionStore keeps sessions as JSON values with a TTL so abandoned
// confirmations disappear on their own.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore stores sessions under prefix+id.
func NewRedisSessionStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	if prefix == "" {
		prefix = "courtside:edit:"
	}
	return &RedisSessionStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSessionStore) Save(ctx context.Context, s EditSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+s.ID, data, r.ttl).Err()
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (*EditSession, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var s EditSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.prefix+id).Err()
}
