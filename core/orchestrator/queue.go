package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueueMirror durably mirrors in-flight TaskQueueItems so an orchestration
// can be reconstructed after a process restart. The in-memory
// implementation satisfies every orchestrator invariant within one process
// lifetime; the Redis-backed implementation additionally survives a process
// restart, at the cost of a network round trip per mutation.
type QueueMirror interface {
	Enqueue(ctx context.Context, item *TaskQueueItem) error
	MarkStarted(ctx context.Context, queueID string, startedAt time.Time) error
	MarkStatus(ctx context.Context, queueID string, status SubTaskStatus) error
	Remove(ctx context.Context, queueID string) error
	ListByCommander(ctx context.Context, commanderID string) ([]*TaskQueueItem, error)
}

// MemoryQueueMirror is the default QueueMirror: a process-local map. It is
// always correct but offers no durability across restarts.
type MemoryQueueMirror struct {
	mu    sync.Mutex
	items map[string]*TaskQueueItem
}

// NewMemoryQueueMirror creates an empty MemoryQueueMirror.
func NewMemoryQueueMirror() *MemoryQueueMirror {
	return &MemoryQueueMirror{items: make(map[string]*TaskQueueItem)}
}

func (m *MemoryQueueMirror) Enqueue(_ context.Context, item *TaskQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.QueueID] = item
	return nil
}

func (m *MemoryQueueMirror) MarkStarted(_ context.Context, queueID string, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[queueID]; ok {
		item.StartedAt = startedAt
		item.Status = SubTaskInProgress
	}
	return nil
}

func (m *MemoryQueueMirror) MarkStatus(_ context.Context, queueID string, status SubTaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[queueID]; ok {
		item.Status = status
	}
	return nil
}

func (m *MemoryQueueMirror) Remove(_ context.Context, queueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, queueID)
	return nil
}

func (m *MemoryQueueMirror) ListByCommander(_ context.Context, commanderID string) ([]*TaskQueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*TaskQueueItem
	for _, item := range m.items {
		if item.CommanderID == commanderID {
			out = append(out, item)
		}
	}
	return out, nil
}

// RedisQueueMirror mirrors TaskQueueItems into Redis as JSON string values
// keyed by queue ID, with a commander-scoped set index for ListByCommander. Enabled only
// when config.RedisConfig.Enabled is set; otherwise the orchestrator falls
// back to MemoryQueueMirror.
type RedisQueueMirror struct {
	client *redis.Client
	prefix string
}

// NewRedisQueueMirror wraps an already-connected redis.Client. The caller
// owns the client's lifecycle (including Close).
func NewRedisQueueMirror(client *redis.Client) *RedisQueueMirror {
	return &RedisQueueMirror{client: client, prefix: "swarmctl:queue:"}
}

func (r *RedisQueueMirror) itemKey(queueID string) string {
	return r.prefix + queueID
}

func (r *RedisQueueMirror) commanderKey(commanderID string) string {
	return r.prefix + "by-commander:" + commanderID
}

func (r *RedisQueueMirror) Enqueue(ctx context.Context, item *TaskQueueItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.itemKey(item.QueueID), payload, 0)
	pipe.SAdd(ctx, r.commanderKey(item.CommanderID), item.QueueID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisQueueMirror) load(ctx context.Context, queueID string) (*TaskQueueItem, error) {
	raw, err := r.client.Get(ctx, r.itemKey(queueID)).Bytes()
	if err != nil {
		return nil, err
	}
	var item TaskQueueItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *RedisQueueMirror) save(ctx context.Context, item *TaskQueueItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.itemKey(item.QueueID), payload, 0).Err()
}

func (r *RedisQueueMirror) MarkStarted(ctx context.Context, queueID string, startedAt time.Time) error {
	item, err := r.load(ctx, queueID)
	if err != nil {
		return err
	}
	item.StartedAt = startedAt
	item.Status = SubTaskInProgress
	return r.save(ctx, item)
}

func (r *RedisQueueMirror) MarkStatus(ctx context.Context, queueID string, status SubTaskStatus) error {
	item, err := r.load(ctx, queueID)
	if err != nil {
		return err
	}
	item.Status = status
	return r.save(ctx, item)
}

func (r *RedisQueueMirror) Remove(ctx context.Context, queueID string) error {
	item, err := r.load(ctx, queueID)
	if err == nil {
		r.client.SRem(ctx, r.commanderKey(item.CommanderID), queueID)
	}
	return r.client.Del(ctx, r.itemKey(queueID)).Err()
}

func (r *RedisQueueMirror) ListByCommander(ctx context.Context, commanderID string) ([]*TaskQueueItem, error) {
	ids, err := r.client.SMembers(ctx, r.commanderKey(commanderID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*TaskQueueItem, 0, len(ids))
	for _, id := range ids {
		item, err := r.load(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
