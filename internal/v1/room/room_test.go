package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToken(types.RoleType) string { return "sess_test" }

type fakeConn struct {
	sent []types.Outbound
}

func (f *fakeConn) Send(msg types.Outbound) { f.sent = append(f.sent, msg) }

func (f *fakeConn) last() types.Outbound {
	if len(f.sent) == 0 {
		return types.Outbound{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeConn) types() []string {
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Type
	}
	return out
}

func TestJoinStream_FirstJoinerIsHost(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	role, err := r.JoinStream(host, "room1", "u1", testToken)
	require.NoError(t, err)
	assert.Equal(t, types.RoleHost, role)
	assert.Contains(t, host.types(), "join_confirmed")
}

func TestJoinStream_SecondJoinerIsViewerAndHostNotified(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	viewer := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "u1", testToken)
	role, err := r.JoinStream(viewer, "room1", "u2", testToken)
	require.NoError(t, err)
	assert.Equal(t, types.RoleViewer, role)
	assert.Contains(t, host.types(), "joined_stream")
}

func TestJoinStream_RoomFullRejectsNewUser(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxParticipants; i++ {
		conn := &fakeConn{}
		_, err := r.JoinStream(conn, "room1", types.UserID(fmt.Sprintf("u%d", i)), testToken)
		require.NoError(t, err)
	}
	_, err := r.JoinStream(&fakeConn{}, "room1", "overflow", testToken)
	require.Error(t, err)
	assert.Equal(t, types.ErrRoomFull, err.(*OpError).Code)
}

func TestJoinStream_ExistingUserAllowedEvenWhenFull(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	_, err := r.JoinStream(conn, "room1", "u1", testToken)
	require.NoError(t, err)
	// Re-join the same user: must never be rejected as room_full regardless
	// of capacity.
	_, err = r.JoinStream(conn, "room1", "u1", testToken)
	require.NoError(t, err)
}

func TestLeaveStream_EmptyRoomIsDestroyed(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	_, _ = r.JoinStream(conn, "room1", "u1", testToken)
	r.LeaveStream("room1", "u1")
	_, ok := r.GetRoom("room1")
	assert.False(t, ok)
}

func TestLeaveStream_GuestLeavingNotifiesHost(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	viewer := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	_, _ = r.JoinStream(viewer, "room1", "guest1", testToken)
	require.NoError(t, r.CohostAccept("room1", "host1", "guest1"))

	r.LeaveStream("room1", "guest1")
	assert.Contains(t, host.types(), "cohost_ended")
}

func TestCohostRequest_AutoDeclinesWhenGuestActive(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	viewer1 := &fakeConn{}
	viewer2 := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	_, _ = r.JoinStream(viewer1, "room1", "v1", testToken)
	_, _ = r.JoinStream(viewer2, "room1", "v2", testToken)

	require.NoError(t, r.CohostRequest("room1", "v1"))
	require.NoError(t, r.CohostAccept("room1", "host1", "v1"))

	require.NoError(t, r.CohostRequest("room1", "v2"))
	assert.Contains(t, viewer2.types(), "cohost_declined")
}

func TestCohostAccept_RejectsNonHostActor(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	viewer := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	_, _ = r.JoinStream(viewer, "room1", "v1", testToken)

	err := r.CohostAccept("room1", "v1", "v1")
	require.Error(t, err)
	assert.Equal(t, types.ErrNotHost, err.(*OpError).Code)
}

func TestCohostEnd_DemotesGuestAndNotifiesBoth(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	guest := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	_, _ = r.JoinStream(guest, "room1", "g1", testToken)
	require.NoError(t, r.CohostAccept("room1", "host1", "g1"))

	require.NoError(t, r.CohostEnd("room1", "host1", "host"))
	assert.Contains(t, guest.types(), "cohost_ended")

	rm, _ := r.GetRoom("room1")
	p := rm.Snapshot()
	for _, part := range p {
		if part.UserID == "g1" {
			assert.Equal(t, types.RoleViewer, part.Role)
		}
	}
}

func TestResolveTarget_HostLiteralResolvesToActualHostUserID(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "realHostId", testToken)

	resolved := r.ResolveTarget("room1", types.UserID("host"))
	assert.Equal(t, types.UserID("realHostId"), resolved)
}

func TestResolveTarget_NonHostLiteralPassesThrough(t *testing.T) {
	r := NewRegistry()
	resolved := r.ResolveTarget("room1", types.UserID("someone"))
	assert.Equal(t, types.UserID("someone"), resolved)
}

func TestGameInit_OnlyHostMaySetState(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	viewer := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	_, _ = r.JoinStream(viewer, "room1", "v1", testToken)

	err := r.GameInit("room1", "v1", "tictactoe", nil, nil)
	require.Error(t, err)

	require.NoError(t, r.GameInit("room1", "host1", "tictactoe", nil, nil))
	assert.Contains(t, viewer.types(), "game_init")
}

func TestGameStateUpdate_FullReplacesData(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	require.NoError(t, r.GameInit("room1", "host1", "g1", nil, nil))

	msg, err := r.GameStateUpdate("room1", "host1", nil, true, map[string]any{"score": 1})
	require.NoError(t, err)
	assert.Equal(t, "game_state", msg.Type)
	assert.Equal(t, map[string]any{"score": 1}, msg.Fields["patch"])
}

func TestGameStateUpdate_PatchMerges(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	require.NoError(t, r.GameInit("room1", "host1", "g1", nil, nil))

	_, err := r.GameStateUpdate("room1", "host1", nil, true, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	msg, err := r.GameStateUpdate("room1", "host1", nil, false, map[string]any{"b": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 3}, msg.Fields["patch"])
}

func TestGameEvent_DroppedSilentlyWithoutHost(t *testing.T) {
	r := NewRegistry()
	// No host ever joined, just exercise the no-op path directly.
	r.GameEvent("room1", "u1", "move", map[string]any{"x": 1})
}

func TestGameEvent_ForwardedToHost(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	r.GameEvent("room1", "u1", "move", map[string]any{"x": 1})
	assert.Contains(t, host.types(), "game_event")
}

func TestReapIdle_DestroysRoomWithNoHostPastTimeout(t *testing.T) {
	r := NewRegistry()
	base := time.Now()
	r.now = func() time.Time { return base }

	host := &fakeConn{}
	viewer := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	_, _ = r.JoinStream(viewer, "room1", "v1", testToken)
	r.LeaveStream("room1", "host1")

	r.now = func() time.Time { return base.Add(3 * time.Minute) }
	reaped := r.ReapIdle(2 * time.Minute)
	require.Len(t, reaped, 1)
	assert.Contains(t, viewer.types(), "room_closed")
}

func TestReapIdle_LeavesRoomWithHostAlone(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	reaped := r.ReapIdle(2 * time.Minute)
	assert.Empty(t, reaped)
}

func TestFindParticipant_FindsAcrossRooms(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	_, _ = r.JoinStream(conn, "room1", "u1", testToken)
	p, ok := r.FindParticipant("u1")
	require.True(t, ok)
	assert.Equal(t, types.StreamID("room1"), p.StreamID)
}

func TestBroadcastToRoom_ReachesAllParticipants(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{}
	b := &fakeConn{}
	_, _ = r.JoinStream(a, "room1", "u1", testToken)
	_, _ = r.JoinStream(b, "room1", "u2", testToken)

	r.BroadcastToRoom("room1", types.Msg("server_shutdown"))
	assert.Contains(t, a.types(), "server_shutdown")
	assert.Contains(t, b.types(), "server_shutdown")
}

func TestCohostCancel_RemovesFromQueueAndNotifiesHost(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	viewer := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	_, _ = r.JoinStream(viewer, "room1", "v1", testToken)
	require.NoError(t, r.CohostRequest("room1", "v1"))
	host.sent = nil

	r.CohostCancel("room1", "v1")
	assert.Contains(t, host.types(), "cohost_queue_updated")

	// Re-requesting after a cancel is accepted normally (no auto-decline).
	viewer.sent = nil
	require.NoError(t, r.CohostRequest("room1", "v1"))
	assert.NotContains(t, viewer.types(), "cohost_declined")
}

func TestRestore_OverwritesExistingParticipant(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)

	newConn := &fakeConn{}
	r.Restore("room1", newConn, "host1", types.RoleHost)

	rm, ok := r.GetRoom("room1")
	require.True(t, ok)
	found := false
	for _, p := range rm.Snapshot() {
		if p.UserID == "host1" {
			found = true
			assert.Same(t, newConn, p.Conn)
		}
	}
	assert.True(t, found)
}

func TestHasActiveGame_AndSnapshot(t *testing.T) {
	r := NewRegistry()
	host := &fakeConn{}
	_, _ = r.JoinStream(host, "room1", "host1", testToken)
	rm, _ := r.GetRoom("room1")
	assert.False(t, rm.HasActiveGame())

	require.NoError(t, r.GameInit("room1", "host1", "g1", nil, nil))
	assert.True(t, rm.HasActiveGame())
	assert.Equal(t, "game_state", rm.GameStateSnapshot().Type)
}
