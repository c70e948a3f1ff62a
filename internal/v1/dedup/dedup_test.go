package dedup

import (
	"fmt"
	"testing"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicate_FirstSeenIsNotDuplicate(t *testing.T) {
	d := New()
	assert.False(t, d.IsDuplicate(types.SocketID(1), "m1"))
}

func TestIsDuplicate_RepeatIsDuplicate(t *testing.T) {
	d := New()
	require.False(t, d.IsDuplicate(types.SocketID(1), "m1"))
	assert.True(t, d.IsDuplicate(types.SocketID(1), "m1"))
	assert.True(t, d.IsDuplicate(types.SocketID(1), "m1"))
}

func TestIsDuplicate_ScopedPerSocket(t *testing.T) {
	d := New()
	require.False(t, d.IsDuplicate(types.SocketID(1), "m1"))
	assert.False(t, d.IsDuplicate(types.SocketID(2), "m1"))
}

func TestIsDuplicate_EmptyMsgIDNeverDuplicate(t *testing.T) {
	d := New()
	assert.False(t, d.IsDuplicate(types.SocketID(1), ""))
	assert.False(t, d.IsDuplicate(types.SocketID(1), ""))
}

func TestIsDuplicate_EvictsOldestBeyondCap(t *testing.T) {
	d := New()
	sock := types.SocketID(1)
	for i := 0; i < Cap+10; i++ {
		require.False(t, d.IsDuplicate(sock, fmt.Sprintf("m%d", i)))
	}
	assert.Equal(t, Cap, d.Len(sock))

	// earliest ids evicted: re-sending m0 looks like a fresh id again.
	assert.False(t, d.IsDuplicate(sock, "m0"))
	// recent ids are still remembered.
	assert.True(t, d.IsDuplicate(sock, fmt.Sprintf("m%d", Cap+9)))
}

func TestForget_DropsSocketState(t *testing.T) {
	d := New()
	sock := types.SocketID(1)
	require.False(t, d.IsDuplicate(sock, "m1"))
	d.Forget(sock)
	assert.Equal(t, 0, d.Len(sock))
	assert.False(t, d.IsDuplicate(sock, "m1"))
}
