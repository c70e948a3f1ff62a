// Package session implements the Session Manager: issuance, lookup and
// sliding-TTL expiry of resume tokens that let a client reconnect under its
// original (streamId, userId) after a transient disconnect.
package session

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
	"github.com/google/uuid"
)

// TTL is the sliding window a session stays valid for.
const TTL = 5 * time.Minute

// Record is a resume-able session.
type Record struct {
	Token         string
	UserID        types.UserID
	StreamID      types.StreamID
	Role          types.RoleType
	QueuePosition int // -1 when not queued
	ExpiresAt     time.Time
}

func (r Record) expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Manager owns the resume-token table. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	byToken  map[string]*Record
	now      func() time.Time
	randomID func() string
}

// NewManager creates an empty Session Manager.
func NewManager() *Manager {
	return &Manager{
		byToken:  make(map[string]*Record),
		now:      time.Now,
		randomID: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// newToken formats "sess_" + millis + "_" + random, per 4.D.
func (m *Manager) newToken(now time.Time) string {
	return "sess_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + m.randomID()
}

// CreateSession issues a new resume token for (userId, streamId, role).
func (m *Manager) CreateSession(userID types.UserID, streamID types.StreamID, role types.RoleType) *Record {
	now := m.now()
	rec := &Record{
		Token:         m.newToken(now),
		UserID:        userID,
		StreamID:      streamID,
		Role:          role,
		QueuePosition: -1,
		ExpiresAt:     now.Add(TTL),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byToken[rec.Token] = rec
	return rec
}

// GetSession returns the record for token if it exists and is unexpired.
// Expired records are evicted lazily on lookup.
func (m *Manager) GetSession(token string) (*Record, bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byToken[token]
	if !ok {
		return nil, false
	}
	if rec.expired(now) {
		delete(m.byToken, token)
		return nil, false
	}

	cp := *rec
	return &cp, true
}

// Patch describes the mutable fields of a Record that UpdateSession may
// change; a nil field means "leave unchanged".
type Patch struct {
	Role          *types.RoleType
	QueuePosition *int
}

// UpdateSession applies patch to the record for token and slides its
// expiry forward by TTL from now. Returns false if the token is unknown or
// already expired.
func (m *Manager) UpdateSession(token string, patch Patch) bool {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byToken[token]
	if !ok || rec.expired(now) {
		delete(m.byToken, token)
		return false
	}

	if patch.Role != nil {
		rec.Role = *patch.Role
	}
	if patch.QueuePosition != nil {
		rec.QueuePosition = *patch.QueuePosition
	}
	rec.ExpiresAt = now.Add(TTL)
	return true
}

// Sweep evicts every expired record. Intended to be called from the
// Lifecycle Manager's 30s sweep tick.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for token, rec := range m.byToken {
		if rec.expired(now) {
			delete(m.byToken, token)
			evicted++
		}
	}
	return evicted
}

// Count reports the number of live (possibly stale-but-not-yet-swept)
// entries. Test hook.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}
