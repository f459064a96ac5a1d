package negotiation

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"meetsync/models"
	"meetsync/utils"
)

// Deduper remembers processed event IDs so at-least-once delivery collapses
// to at-most-one processing per event.
type Deduper interface {
	// FirstSeen marks the event ID and reports whether this is its first
	// delivery.
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}

// RedisDeduper implements Deduper with SETNX and a TTL, shared across
// replicas.
type RedisDeduper struct {
	Client *redis.Client
	TTL    time.Duration
}

const dedupKeyPrefix = "negotiation:event:"

func NewRedisDeduper() *RedisDeduper {
	return &RedisDeduper{
		Client: utils.GetDedupCacheClient(),
		TTL:    24 * time.Hour,
	}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	return d.Client.SetNX(ctx, dedupKeyPrefix+eventID, 1, d.TTL).Result()
}

// MemoryDeduper is a process-local Deduper for tests and single-node runs.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]bool)}
}

func (d *MemoryDeduper) FirstSeen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

// Dispatcher serializes event processing per thread and drops duplicate
// deliveries before they reach the engine. Events for different threads
// proceed concurrently.
type Dispatcher struct {
	Engine  Engine
	Deduper Deduper

	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func NewDispatcher(engine Engine, deduper Deduper) *Dispatcher {
	return &Dispatcher{
		Engine:  engine,
		Deduper: deduper,
		locks:   make(map[string]*threadLock),
	}
}

// Dispatch runs one event through the engine under the thread's lock. A
// duplicate delivery returns (nil, nil) without touching the engine.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.InboundEvent) (*StepResult, error) {
	logger := utils.GetLogger()

	first, err := d.Deduper.FirstSeen(ctx, ev.EventID)
	if err != nil {
		// On a dedup outage processing continues; session idempotency and
		// terminal short-circuiting absorb the occasional replay.
		logger.Warn("dedup check failed, processing anyway",
			zap.String("eventID", ev.EventID), zap.Error(err))
	} else if !first {
		logger.Info("duplicate event dropped", zap.String("eventID", ev.EventID))
		return nil, nil
	}

	lock := d.acquire(ev.ThreadID)
	defer d.release(ev.ThreadID)

	lock.mu.Lock()
	defer lock.mu.Unlock()

	return d.Engine.HandleInboundEvent(ctx, ev)
}

func (d *Dispatcher) acquire(threadID string) *threadLock {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[threadID]
	if !ok {
		lock = &threadLock{}
		d.locks[threadID] = lock
	}
	lock.refs++
	return lock
}

func (d *Dispatcher) release(threadID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[threadID]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs == 0 {
		delete(d.locks, threadID)
	}
}
