package session

import (
	"strings"
	"testing"
	"time"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession_TokenFormat(t *testing.T) {
	m := NewManager()
	rec := m.CreateSession("u1", "r1", types.RoleHost)

	assert.True(t, strings.HasPrefix(rec.Token, "sess_"))
	parts := strings.Split(rec.Token, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, types.UserID("u1"), rec.UserID)
	assert.Equal(t, types.RoleHost, rec.Role)
}

func TestGetSession_ValidWithinTTL(t *testing.T) {
	m := NewManager()
	rec := m.CreateSession("u1", "r1", types.RoleHost)

	got, ok := m.GetSession(rec.Token)
	require.True(t, ok)
	assert.Equal(t, rec.UserID, got.UserID)
}

func TestGetSession_UnknownToken(t *testing.T) {
	m := NewManager()
	_, ok := m.GetSession("sess_0_nope")
	assert.False(t, ok)
}

func TestGetSession_ExpiredAfterTTL(t *testing.T) {
	m := NewManager()
	base := time.Now()
	m.now = func() time.Time { return base }
	rec := m.CreateSession("u1", "r1", types.RoleHost)

	m.now = func() time.Time { return base.Add(6 * time.Minute) }
	_, ok := m.GetSession(rec.Token)
	assert.False(t, ok)
}

func TestGetSession_WithinFourMinutesStillValid(t *testing.T) {
	m := NewManager()
	base := time.Now()
	m.now = func() time.Time { return base }
	rec := m.CreateSession("u1", "r1", types.RoleHost)

	m.now = func() time.Time { return base.Add(4 * time.Minute) }
	_, ok := m.GetSession(rec.Token)
	assert.True(t, ok)
}

func TestUpdateSession_SlidesExpiry(t *testing.T) {
	m := NewManager()
	base := time.Now()
	m.now = func() time.Time { return base }
	rec := m.CreateSession("u1", "r1", types.RoleViewer)

	m.now = func() time.Time { return base.Add(4 * time.Minute) }
	guest := types.RoleGuest
	ok := m.UpdateSession(rec.Token, Patch{Role: &guest})
	require.True(t, ok)

	// Without the slide, the original 5-minute TTL from creation would have
	// expired by now (4m + 2m = 6m from creation).
	m.now = func() time.Time { return base.Add(6 * time.Minute) }
	got, ok := m.GetSession(rec.Token)
	require.True(t, ok)
	assert.Equal(t, types.RoleGuest, got.Role)
}

func TestUpdateSession_UnknownTokenFails(t *testing.T) {
	m := NewManager()
	assert.False(t, m.UpdateSession("sess_0_nope", Patch{}))
}

func TestSweep_EvictsOnlyExpired(t *testing.T) {
	m := NewManager()
	base := time.Now()
	m.now = func() time.Time { return base }
	live := m.CreateSession("live", "r1", types.RoleHost)
	dead := m.CreateSession("dead", "r1", types.RoleViewer)

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	// refresh "live" so it survives past the next expiry check
	fresh := types.RoleHost
	m.UpdateSession(live.Token, Patch{Role: &fresh})

	m.now = func() time.Time { return base.Add(6 * time.Minute) }
	evicted := m.Sweep()

	assert.Equal(t, 1, evicted)
	_, ok := m.GetSession(dead.Token)
	assert.False(t, ok)
	_, ok = m.GetSession(live.Token)
	assert.True(t, ok)
}

func TestCreateSession_TokensAreUnique(t *testing.T) {
	m := NewManager()
	a := m.CreateSession("u1", "r1", types.RoleHost)
	b := m.CreateSession("u2", "r1", types.RoleViewer)
	assert.NotEqual(t, a.Token, b.Token)
}
