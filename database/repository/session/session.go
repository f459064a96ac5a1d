package sessionRepo

import (
	"context"
	"errors"

	"meetsync/models"
)

var (
	// ErrNotFound indicates no session exists for the thread.
	ErrNotFound = errors.New("negotiation session not found")
	// ErrVersionConflict indicates another step committed first; the caller
	// must reload and re-evaluate rather than overwrite.
	ErrVersionConflict = errors.New("negotiation session version conflict")
)

// SessionRepository is the durable store for in-flight negotiations, keyed by
// conversation thread. It exclusively owns persisted session state; the
// negotiation engine holds only a transient in-memory view per step.
type SessionRepository interface {
	// LoadOrCreate returns the session for the thread, seeding a new one via
	// create when none exists. Creation is atomic: concurrent callers observe
	// the same stored session.
	LoadOrCreate(ctx context.Context, threadID string, create func() *models.NegotiationSession) (*models.NegotiationSession, error)
	// Load returns the session or ErrNotFound.
	Load(ctx context.Context, threadID string) (*models.NegotiationSession, error)
	// CompareAndSwap commits the session iff the stored version still equals
	// sess.Version. On success the stored and in-memory versions are
	// incremented; otherwise ErrVersionConflict is returned.
	CompareAndSwap(ctx context.Context, sess *models.NegotiationSession) error
	// MarkTerminal shortens retention for a finished session. The terminal
	// state and outcome themselves are committed through CompareAndSwap; this
	// never rewrites session data.
	MarkTerminal(ctx context.Context, threadID string) error
	// ActiveThreadIDs lists threads with a stored non-terminal session.
	ActiveThreadIDs(ctx context.Context) ([]string, error)
}
