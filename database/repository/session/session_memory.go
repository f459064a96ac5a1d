package sessionRepo

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"meetsync/models"
)

// MemorySessionRepo is an in-process SessionRepository for local development
// and tests. It applies the same version discipline as the Redis
// implementation.
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

// NewMemorySessionRepo creates an empty in-memory session repository.
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{sessions: make(map[string][]byte)}
}

func (r *MemorySessionRepo) LoadOrCreate(_ context.Context, threadID string, create func() *models.NegotiationSession) (*models.NegotiationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.sessions[threadID]; ok {
		return decodeSession(data)
	}

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
		return nil, err
	}
	r.sessions[threadID] = data
	return fresh, nil
}

func (r *MemorySessionRepo) Load(_ context.Context, threadID string) (*models.NegotiationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.sessions[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeSession(data)
}

func (r *MemorySessionRepo) CompareAndSwap(_ context.Context, sess *models.NegotiationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.sessions[sess.ThreadID]
	if !ok {
		return ErrNotFound
	}
	stored, err := decodeSession(data)
	if err != nil {
		return err
	}
	if stored.Version != sess.Version {
		return ErrVersionConflict
	}

	sess.Version++
	sess.UpdatedAt = time.Now()
	updated, err := json.Marshal(sess)
	if err != nil {
		sess.Version--
		return err
	}
	r.sessions[sess.ThreadID] = updated
	return nil
}

// MarkTerminal has no retention to shorten in memory; it only checks the
// session exists, matching the Redis implementation's error contract.
func (r *MemorySessionRepo) MarkTerminal(_ context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[threadID]; !ok {
		return ErrNotFound
	}
	return nil
}

func (r *MemorySessionRepo) ActiveThreadIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var threads []string
	for threadID, data := range r.sessions {
		sess, err := decodeSession(data)
		if err != nil {
			continue
		}
		if !sess.State.IsTerminal() {
			threads = append(threads, threadID)
		}
	}
	return threads, nil
}

func decodeSession(data []byte) (*models.NegotiationSession, error) {
	var sess models.NegotiationSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}
