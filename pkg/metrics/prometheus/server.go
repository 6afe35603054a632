// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces. Constructors return nil when the metrics registry
// was never initialized, which callers treat as collection disabled.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agonych/udp-chat/pkg/metrics"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	packetsProcessed *prometheus.CounterVec
	packetDuration   *prometheus.HistogramVec
	activeSessions   prometheus.Gauge
	activeUsers      prometheus.Gauge
	activeRooms      prometheus.Gauge
	userLogins       prometheus.Counter
	userLogouts      prometheus.Counter
	roomsCreated     prometheus.Counter
	roomsDeleted     prometheus.Counter
	roomJoins        prometheus.Counter
	roomLeaves       prometheus.Counter
	messagesSent     prometheus.Counter
	aiMessagesSent   prometheus.Counter
	aiDuration       *prometheus.HistogramVec
	aiFailures       *prometheus.CounterVec
	retrySends       prometheus.Counter
	retryDrops       prometheus.Counter
}

// NewServerMetrics creates a new Prometheus-backed ServerMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewServerMetrics() metrics.ServerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newServerMetrics(metrics.GetRegistry())
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	return &serverMetrics{
		packetsProcessed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "udpchat_udp_packets_processed_total",
				Help: "Total number of dispatched packets by inner type and outcome",
			},
			[]string{"packet_type", "status"}, // status: "ok" or a failure label
		),
		packetDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "udpchat_packet_processing_seconds",
				Help: "Time spent processing packets from decode to reply enqueue",
				Buckets: []float64{
					0.0005, // handlers that never touch the database
					0.001,
					0.0025,
					0.005,
					0.01,
					0.025,
					0.05,
					0.1,
					0.25,
					0.5,
					1, // AI-bound packets
					2.5,
				},
			},
			[]string{"packet_type"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "udpchat_active_sessions",
				Help: "Current number of live client sessions",
			},
		),
		activeUsers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "udpchat_active_users",
				Help: "Current number of distinct authenticated users across live sessions",
			},
		),
		activeRooms: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "udpchat_active_rooms",
				Help: "Current number of rooms",
			},
		),
		userLogins: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_user_logins_total",
				Help: "Total number of successful logins",
			},
		),
		userLogouts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_user_logouts_total",
				Help: "Total number of logouts",
			},
		),
		roomsCreated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_rooms_created_total",
				Help: "Total number of rooms created",
			},
		),
		roomsDeleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_rooms_deleted_total",
				Help: "Total number of rooms deleted, including auto-destroyed empty rooms",
			},
		),
		roomJoins: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_room_joins_total",
				Help: "Total number of room memberships created",
			},
		),
		roomLeaves: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_room_leaves_total",
				Help: "Total number of room memberships removed",
			},
		),
		messagesSent: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_messages_sent_total",
				Help: "Total number of user messages persisted and broadcast",
			},
		),
		aiMessagesSent: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_ai_messages_sent_total",
				Help: "Total number of AI-generated messages persisted and broadcast",
			},
		),
		aiDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "udpchat_ai_generation_seconds",
				Help: "Duration of AI provider calls by backend and model",
				Buckets: []float64{
					0.1,
					0.25,
					0.5,
					1,
					2.5,
					5,
					10,
					20,
					30, // provider client timeout
					60,
				},
			},
			[]string{"mode", "model"},
		),
		aiFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "udpchat_ai_failures_total",
				Help: "Total number of failed AI provider calls by backend and model",
			},
			[]string{"mode", "model"},
		),
		retrySends: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_retry_sends_total",
				Help: "Total number of retransmissions by the retry dispatcher",
			},
		),
		retryDrops: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "udpchat_retry_drops_total",
				Help: "Total number of deliveries abandoned after exhausting retries or overflowing the queue",
			},
		),
	}
}

func (m *serverMetrics) RecordPacket(packetType string, duration time.Duration, errorCode string) {
	if m == nil {
		return
	}

	status := "ok"
	if errorCode != "" {
		status = errorCode
	}
	m.packetsProcessed.WithLabelValues(packetType, status).Inc()
	m.packetDuration.WithLabelValues(packetType).Observe(duration.Seconds())
}

func (m *serverMetrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

func (m *serverMetrics) SetActiveUsers(count int) {
	if m == nil {
		return
	}
	m.activeUsers.Set(float64(count))
}

func (m *serverMetrics) SetActiveRooms(count int) {
	if m == nil {
		return
	}
	m.activeRooms.Set(float64(count))
}

func (m *serverMetrics) RecordLogin() {
	if m == nil {
		return
	}
	m.userLogins.Inc()
}

func (m *serverMetrics) RecordLogout() {
	if m == nil {
		return
	}
	m.userLogouts.Inc()
}

func (m *serverMetrics) RecordRoomCreated() {
	if m == nil {
		return
	}
	m.roomsCreated.Inc()
}

func (m *serverMetrics) RecordRoomDeleted() {
	if m == nil {
		return
	}
	m.roomsDeleted.Inc()
}

func (m *serverMetrics) RecordRoomJoin() {
	if m == nil {
		return
	}
	m.roomJoins.Inc()
}

func (m *serverMetrics) RecordRoomLeave() {
	if m == nil {
		return
	}
	m.roomLeaves.Inc()
}

func (m *serverMetrics) RecordMessage(announcement bool) {
	if m == nil {
		return
	}
	if announcement {
		m.aiMessagesSent.Inc()
	} else {
		m.messagesSent.Inc()
	}
}

func (m *serverMetrics) RecordAIGeneration(mode string, model string, duration time.Duration, errorCode string) {
	if m == nil {
		return
	}
	m.aiDuration.WithLabelValues(mode, model).Observe(duration.Seconds())
	if errorCode != "" {
		m.aiFailures.WithLabelValues(mode, model).Inc()
	}
}

func (m *serverMetrics) RecordRetrySend() {
	if m == nil {
		return
	}
	m.retrySends.Inc()
}

func (m *serverMetrics) RecordRetryDrop() {
	if m == nil {
		return
	}
	m.retryDrops.Inc()
}
