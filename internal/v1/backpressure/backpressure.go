// Package backpressure implements the Backpressure Monitor (4.F): it
// classifies a connection's outbound queue depth and decides which message
// kinds may be dropped to relieve pressure.
package backpressure

// Status is the classification of a connection's outbound queue depth.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

const (
	warningThresholdBytes  = 512 * 1024
	criticalThresholdBytes = 1024 * 1024
)

// Classify maps a queue's current byte size to a Status.
func Classify(queuedBytes int) Status {
	switch {
	case queuedBytes >= criticalThresholdBytes:
		return StatusCritical
	case queuedBytes >= warningThresholdBytes:
		return StatusWarning
	default:
		return StatusOK
	}
}

// droppable is the set of message kinds the monitor is ever allowed to
// shed under pressure. Every other kind is always delivered.
var droppable = map[string]bool{
	"ice_candidate":             true,
	"participant_count_update":  true,
	"game_state":                true,
}

// ShouldDrop reports whether a message of the given kind should be dropped
// given the connection's current backpressure status. Critical-kind
// messages (acks, errors, resume confirmations, offers/answers, join
// confirmations, cohost events) are never dropped regardless of status.
func ShouldDrop(status Status, kind string) bool {
	if status != StatusCritical {
		return false
	}
	return droppable[kind]
}

// Monitor tracks the current status per socket and exposes it to the
// metrics gauge (signaling_backpressure_level).
type Monitor struct {
	onChange func(status Status)
}

// NewMonitor creates a Monitor. onChange, if non-nil, is invoked whenever
// Update computes a new Status for a socket (used to drive the Prometheus
// gauge without importing metrics from this package directly).
func NewMonitor(onChange func(status Status)) *Monitor {
	return &Monitor{onChange: onChange}
}

// Update classifies queuedBytes and reports the resulting status via
// onChange, returning it for the caller's own branching.
func (m *Monitor) Update(queuedBytes int) Status {
	status := Classify(queuedBytes)
	if m.onChange != nil {
		m.onChange(status)
	}
	return status
}
