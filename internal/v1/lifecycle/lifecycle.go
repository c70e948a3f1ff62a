// Package lifecycle implements the Lifecycle Manager (4.L): periodic idle
// room reaping, session sweeping, and graceful drain on shutdown signal.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/relay"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/room"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/session"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// TickInterval is the cadence for both the idle-room reaper and the session
// sweeper.
const TickInterval = 30 * time.Second

// IdleTimeout is how long a room may go without a host before it is reaped.
const IdleTimeout = 2 * time.Minute

// ShutdownDrain is how long connected clients get to receive and act on the
// server_shutdown broadcast before the process exits.
const ShutdownDrain = 5 * time.Second

// Manager runs the background maintenance loops for a Room Registry and
// Session Manager, and coordinates graceful shutdown across them.
type Manager struct {
	rooms    *room.Registry
	sessions *session.Manager
}

// New constructs a Manager bound to rooms and sessions.
func New(rooms *room.Registry, sessions *session.Manager) *Manager {
	return &Manager{rooms: rooms, sessions: sessions}
}

// Run blocks, ticking the reaper and sweeper until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *Manager) sweepOnce(ctx context.Context) {
	reaped := m.rooms.ReapIdle(IdleTimeout)
	for _, id := range reaped {
		logging.Info(ctx, "reaped idle room", zap.String("stream_id", string(id)))
	}
	metrics.RoomsActive.Set(float64(m.rooms.RoomCount()))

	evicted := m.sessions.Sweep()
	if evicted > 0 {
		logging.Info(ctx, "swept expired sessions", zap.Int("count", evicted))
	}
}

// Shutdown notifies every connected participant across every room that the
// server is going away, then waits out the drain window so in-flight sends
// have a chance to land before the caller proceeds to close listeners.
func (m *Manager) Shutdown(ctx context.Context) {
	msg := types.Msg("server_shutdown", "reason", "maintenance")
	msg.Critical = true
	for _, id := range m.rooms.StreamIDs() {
		relay.BroadcastToRoom(m.rooms, id, msg)
	}
	logging.Info(ctx, "broadcast server_shutdown, draining", zap.Duration("drain", ShutdownDrain))

	timer := time.NewTimer(ShutdownDrain)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
