package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Signaling-specific metrics (4.E). Namespaced separately from the
// video_conference_* series above so the two generations of metric names
// can coexist during the transition.
var (
	MsgsDuplicateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Name:      "msgs_duplicate_total",
		Help:      "Inbound messages absorbed as duplicates, by type.",
	}, []string{"type"})

	MsgsOutOfOrderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Name:      "msgs_out_of_order_total",
		Help:      "Inbound messages whose seq did not exceed the sender's lastSeq.",
	}, []string{"type"})

	MsgsHandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Name:      "msgs_handled_total",
		Help:      "Messages successfully dispatched to a handler, by type.",
	}, []string{"type"})

	MsgsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Name:      "msgs_dropped_total",
		Help:      "Outbound messages dropped by the backpressure monitor, by type.",
	}, []string{"type"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Name:      "rate_limited_total",
		Help:      "Messages rejected by the per-(kind,user) token bucket, by kind.",
	}, []string{"kind"})

	WSRejectedOrigin = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signaling",
		Name:      "ws_rejected_origin_total",
		Help:      "WebSocket upgrade attempts rejected by the origin check.",
	})

	InvalidRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Name:      "invalid_request_total",
		Help:      "Envelope/schema validation failures, by error code.",
	}, []string{"code"})

	MessageProcessingSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signaling",
		Name:      "message_processing_seconds",
		Help:      "Router processing duration per message type.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"type"})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaling",
		Name:      "rooms_active",
		Help:      "Current number of rooms.",
	})

	ParticipantsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaling",
		Name:      "participants_active",
		Help:      "Current number of connected participants across all rooms.",
	})

	BackpressureLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signaling",
		Name:      "backpressure_level",
		Help:      "Current backpressure classification per socket (0=ok,1=warning,2=critical), last value wins across sockets sharing a label.",
	}, []string{"status"})
)

// RecordInvalidRequest increments InvalidRequestTotal and additionally feeds
// the bounded reservoir used by the /readyz error-rate check.
func RecordInvalidRequest(code string) {
	InvalidRequestTotal.WithLabelValues(code).Inc()
	ErrorReservoir.record(code)
}

// reservoir is a bounded ring (<=1000 samples) of recent error codes, used by
// /readyz's "error-rate-ok" check without re-deriving it from the Prometheus
// counters (which are cumulative, not windowed).
type reservoir struct {
	mu      sync.Mutex
	samples []string
	cap     int
}

func newReservoir(cap int) *reservoir {
	return &reservoir{cap: cap}
}

func (r *reservoir) record(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, code)
	if len(r.samples) > r.cap {
		r.samples = r.samples[len(r.samples)-r.cap:]
	}
}

// CountRecent returns how many of the last Cap samples matched any of codes.
func (r *reservoir) CountRecent(codes ...string) int {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.samples {
		if set[s] {
			n++
		}
	}
	return n
}

// ErrorReservoir backs the readyz error-rate-ok check (invalid_request +
// payload_too_large < 5, per 4.E / §6).
var ErrorReservoir = newReservoir(1000)
