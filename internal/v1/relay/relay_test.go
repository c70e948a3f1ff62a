package relay

import (
	"testing"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/room"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToken(types.RoleType) string { return "sess_test" }

type fakeConn struct {
	sent        []types.Outbound
	queuedBytes int
}

func (f *fakeConn) Send(msg types.Outbound) { f.sent = append(f.sent, msg) }
func (f *fakeConn) QueuedBytes() int        { return f.queuedBytes }

func TestRelayToUser_DeliversToFoundParticipant(t *testing.T) {
	reg := room.NewRegistry()
	conn := &fakeConn{}
	_, err := reg.JoinStream(conn, "room1", "u1", testToken)
	require.NoError(t, err)

	ok := RelayToUser(reg, "u1", types.Msg("webrtc_offer", "sdp", "v=0"))
	assert.True(t, ok)

	found := false
	for _, m := range conn.sent {
		if m.Type == "webrtc_offer" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRelayToUser_NotFoundReturnsFalse(t *testing.T) {
	reg := room.NewRegistry()
	ok := RelayToUser(reg, "ghost", types.Msg("ice_candidate"))
	assert.False(t, ok)
}

func TestRelayToUser_DropsNonCriticalUnderCriticalBackpressure(t *testing.T) {
	reg := room.NewRegistry()
	conn := &fakeConn{queuedBytes: 2 * 1024 * 1024}
	_, err := reg.JoinStream(conn, "room1", "u1", testToken)
	require.NoError(t, err)
	conn.sent = nil // clear join_confirmed noise

	ok := RelayToUser(reg, "u1", types.Msg("ice_candidate"))
	assert.False(t, ok)
	assert.Empty(t, conn.sent)
}

func TestRelayToUser_CriticalMessageAlwaysDelivered(t *testing.T) {
	reg := room.NewRegistry()
	conn := &fakeConn{queuedBytes: 2 * 1024 * 1024}
	_, err := reg.JoinStream(conn, "room1", "u1", testToken)
	require.NoError(t, err)
	conn.sent = nil

	msg := types.Msg("webrtc_offer")
	msg.Critical = true
	ok := RelayToUser(reg, "u1", msg)
	assert.True(t, ok)
	assert.Len(t, conn.sent, 1)
}

func TestBroadcastToRoom_FiltersbyRole(t *testing.T) {
	reg := room.NewRegistry()
	host := &fakeConn{}
	viewer := &fakeConn{}
	_, _ = reg.JoinStream(host, "room1", "host1", testToken)
	_, _ = reg.JoinStream(viewer, "room1", "v1", testToken)
	host.sent, viewer.sent = nil, nil

	BroadcastToRoom(reg, "room1", types.Msg("cohost_queue_updated"), types.RoleHost)
	assert.Len(t, host.sent, 1)
	assert.Empty(t, viewer.sent)
}

func TestBroadcastToRoom_NoRoleFilterReachesEveryone(t *testing.T) {
	reg := room.NewRegistry()
	host := &fakeConn{}
	viewer := &fakeConn{}
	_, _ = reg.JoinStream(host, "room1", "host1", testToken)
	_, _ = reg.JoinStream(viewer, "room1", "v1", testToken)
	host.sent, viewer.sent = nil, nil

	BroadcastToRoom(reg, "room1", types.Msg("server_shutdown"))
	assert.Len(t, host.sent, 1)
	assert.Len(t, viewer.sent, 1)
}
