package sessionRepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meetsync/models"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "negotiation:session:"

// casScript swaps the stored session only when its embedded version still
// matches the expected one. The check and the write must be atomic; a plain
// GET/SET pair would race with a concurrent step.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return -1
end
local stored = cjson.decode(cur)
if tonumber(stored['version']) ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'EX', tonumber(ARGV[3]))
return 1
`)

// RedisSessionRepo implements SessionRepository on Redis. Sessions live for
// ActiveTTL while non-terminal; MarkTerminal shortens retention so duplicate
// deliveries still find the outcome for a while.
type RedisSessionRepo struct {
	client      *redis.Client
	ActiveTTL   time.Duration
	TerminalTTL time.Duration
}

// NewRedisSessionRepo creates a session repository on the given Redis client.
func NewRedisSessionRepo(client *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{
		client:      client,
		ActiveTTL:   30 * 24 * time.Hour,
		TerminalTTL: 7 * 24 * time.Hour,
	}
}

func sessionKey(threadID string) string {
	return sessionKeyPrefix + threadID
}

// LoadOrCreate returns the stored session, atomically seeding a fresh one when
// the thread has none.
func (r *RedisSessionRepo) LoadOrCreate(ctx context.Context, threadID string, create func() *models.NegotiationSession) (*models.NegotiationSession, error) {
	fresh := create()
	fresh.ThreadID = threadID
	if fresh.Version == 0 {
		fresh.Version = 1
	}
	now := time.Now()
	if fresh.CreatedAt.IsZero() {
		fresh.CreatedAt = now
	}
	fresh.UpdatedAt = now

	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", threadID, err)
	}

	created, err := r.client.SetNX(ctx, sessionKey(threadID), data, r.ActiveTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", threadID, err)
	}
	if created {
		return fresh, nil
	}
	return r.Load(ctx, threadID)
}

// Load fetches and decodes the session for the thread.
func (r *RedisSessionRepo) Load(ctx context.Context, threadID string) (*models.NegotiationSession, error) {
	data, err := r.client.Get(ctx, sessionKey(threadID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", threadID, err)
	}
	var sess models.NegotiationSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", threadID, err)
	}
	return &sess, nil
}

// CompareAndSwap commits the session guarded by its version.
func (r *RedisSessionRepo) CompareAndSwap(ctx context.Context, sess *models.NegotiationSession) error {
	expected := sess.Version
	sess.Version = expected + 1
	sess.UpdatedAt = time.Now()

	ttl := r.ActiveTTL
	if sess.State.IsTerminal() {
		ttl = r.TerminalTTL
	}

	data, err := json.Marshal(sess)
	if err != nil {
		sess.Version = expected
		return fmt.Errorf("failed to marshal session %s: %w", sess.ThreadID, err)
	}

	res, err := casScript.Run(ctx, r.client,
		[]string{sessionKey(sess.ThreadID)},
		expected, data, int(ttl.Seconds()),
	).Int()
	if err != nil {
		sess.Version = expected
		return fmt.Errorf("failed to swap session %s: %w", sess.ThreadID, err)
	}
	switch res {
	case -1:
		sess.Version = expected
		return ErrNotFound
	case 0:
		sess.Version = expected
		return ErrVersionConflict
	}
	return nil
}

// MarkTerminal shortens retention for a finished session. The outcome is
// committed through CompareAndSwap before this runs, so only the TTL moves; a
// GET/SET rewrite here would race with any concurrent writer.
func (r *RedisSessionRepo) MarkTerminal(ctx context.Context, threadID string) error {
	ok, err := r.client.Expire(ctx, sessionKey(threadID), r.TerminalTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to mark session %s terminal: %w", threadID, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ActiveThreadIDs scans for stored sessions still in a non-terminal state.
func (r *RedisSessionRepo) ActiveThreadIDs(ctx context.Context) ([]string, error) {
	var threads []string
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		threadID := iter.Val()[len(sessionKeyPrefix):]
		sess, err := r.Load(ctx, threadID)
		if err != nil {
			continue
		}
		if !sess.State.IsTerminal() {
			threads = append(threads, threadID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return threads, nil
}
