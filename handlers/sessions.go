package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	archiveRepo "meetsync/database/repository/archive"
	sessionRepo "meetsync/database/repository/session"
)

// SessionHandler exposes read-only negotiation state for operators.
type SessionHandler struct {
	Sessions sessionRepo.SessionRepository
	Archive  archiveRepo.ArchiveRepository
}

func NewSessionHandler(sessions sessionRepo.SessionRepository, archive archiveRepo.ArchiveRepository) *SessionHandler {
	return &SessionHandler{Sessions: sessions, Archive: archive}
}

// GetSessionHandler returns the live session for a thread, falling back to
// the archive for finished negotiations that already expired from the store.
func (h *SessionHandler) GetSessionHandler(c *gin.Context) {
	threadID := c.Param("threadID")
	if threadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing threadID"})
		return
	}

	sess, err := h.Sessions.Load(c.Request.Context(), threadID)
	if errors.Is(err, sessionRepo.ErrNotFound) && h.Archive != nil {
		sess, err = h.Archive.FindByThread(c.Request.Context(), threadID)
	}
	if err != nil && !errors.Is(err, sessionRepo.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session", "details": err.Error()})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// ListSessionsHandler returns the thread IDs with an active negotiation.
func (h *SessionHandler) ListSessionsHandler(c *gin.Context) {
	threadIDs, err := h.Sessions.ActiveThreadIDs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threadIds": threadIDs})
}
