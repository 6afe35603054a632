package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/internal/telemetry"
	"github.com/agonych/udp-chat/pkg/config"
	"github.com/agonych/udp-chat/pkg/crypto"
	"github.com/agonych/udp-chat/pkg/metrics"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// Retry defaults, applied when the configuration leaves them zero.
const (
	defaultRetryInterval = 2 * time.Second
	defaultMaxRetries    = 5
	defaultQueueSize     = 4096
)

// retryTask is one sealed packet awaiting acknowledgement. The session
// row and address are snapshotted at enqueue time so a resend does not
// depend on the session still being live.
type retryTask struct {
	msgID      string
	sessionID  string
	session    *models.Session
	addr       *net.UDPAddr
	packet     *protocol.Packet
	retryCount int
	lastSent   time.Time
}

// retryDispatcher delivers every sealed server-to-client packet and
// resends it until the client acknowledges the stamped msg_id or the
// retry budget runs out. Plaintext transport errors and the handshake
// response are the only server sends that bypass it.
type retryDispatcher struct {
	mu    sync.Mutex
	tasks []*retryTask

	interval   time.Duration
	maxRetries int
	capacity   int

	sessions *sessionTable
	transmit func(*retryTask) error
	metrics  metrics.ServerMetrics

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newRetryDispatcher(cfg config.ServerConfig, sessions *sessionTable, transmit func(*retryTask) error, m metrics.ServerMetrics) *retryDispatcher {
	d := &retryDispatcher{
		interval:   cfg.RetryInterval,
		maxRetries: cfg.MaxRetries,
		capacity:   cfg.QueueSize,
		sessions:   sessions,
		transmit:   transmit,
		metrics:    m,
		stop:       make(chan struct{}),
	}
	if d.interval <= 0 {
		d.interval = defaultRetryInterval
	}
	if d.maxRetries <= 0 {
		d.maxRetries = defaultMaxRetries
	}
	if d.capacity <= 0 {
		d.capacity = defaultQueueSize
	}
	return d
}

// Start launches the rescan goroutine.
func (d *retryDispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop halts the rescan goroutine and waits for it. Safe to call more
// than once, and before Start.
func (d *retryDispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
}

func (d *retryDispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case now := <-ticker.C:
			d.flush(now)
		}
	}
}

// Enqueue stamps a fresh msg_id into a copy of the packet, transmits it
// immediately and queues it for redelivery. Packets for sessions that
// are not live are skipped silently; at capacity the oldest pending
// task is dropped to make room.
func (d *retryDispatcher) Enqueue(sessionID string, p *protocol.Packet) {
	live, ok := d.sessions.Get(sessionID)
	if !ok {
		logger.Debug("Dropping packet for offline session",
			logger.SessionID(sessionID),
			logger.PacketType(p.Type))
		return
	}

	// Broadcasts share one packet across sessions; each delivery gets
	// its own copy and its own msg_id.
	clone := *p
	clone.MsgID = crypto.NewID()

	task := &retryTask{
		msgID:     clone.MsgID,
		sessionID: sessionID,
		session:   live.row,
		addr:      live.addr,
		packet:    &clone,
	}

	if err := d.transmit(task); err != nil {
		logger.Warn("Initial send failed, queued for retry",
			logger.SessionID(sessionID),
			logger.PacketType(clone.Type),
			logger.MsgID(task.msgID),
			logger.Err(err))
	}
	task.retryCount = 1
	task.lastSent = time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.tasks) >= d.capacity {
		dropped := d.tasks[0]
		d.tasks = d.tasks[1:]
		logger.Warn("Retry queue full, dropping oldest task",
			logger.SessionID(dropped.sessionID),
			logger.MsgID(dropped.msgID),
			logger.QueueLen(len(d.tasks)))
		if d.metrics != nil {
			d.metrics.RecordRetryDrop()
		}
	}
	d.tasks = append(d.tasks, task)
}

// Acknowledge removes the task matching the session and msg_id.
// Unknown ids are ignored.
func (d *retryDispatcher) Acknowledge(sessionID, msgID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.tasks[:0]
	for _, task := range d.tasks {
		if task.sessionID == sessionID && task.msgID == msgID {
			logger.Debug("Delivery acknowledged",
				logger.SessionID(sessionID),
				logger.MsgID(msgID),
				logger.Attempt(task.retryCount))
			continue
		}
		kept = append(kept, task)
	}
	d.tasks = kept
}

// Len returns the number of pending tasks.
func (d *retryDispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// flush drops exhausted tasks and resends stale ones. Each resend is
// sealed with a fresh nonce; the snapshotted address is used even if
// the session has since moved.
func (d *retryDispatcher) flush(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.tasks) == 0 {
		return
	}

	_, span := telemetry.StartSpan(context.Background(), telemetry.SpanRetryFlush)
	defer span.End()

	kept := d.tasks[:0]
	for _, task := range d.tasks {
		if task.retryCount >= d.maxRetries {
			logger.Warn("Delivery abandoned after max retries",
				logger.SessionID(task.sessionID),
				logger.PacketType(task.packet.Type),
				logger.MsgID(task.msgID),
				logger.MaxRetries(d.maxRetries))
			if d.metrics != nil {
				d.metrics.RecordRetryDrop()
			}
			continue
		}
		if now.Sub(task.lastSent) >= d.interval {
			if err := d.transmit(task); err != nil {
				logger.Debug("Resend failed",
					logger.SessionID(task.sessionID),
					logger.MsgID(task.msgID),
					logger.Err(err))
			}
			task.retryCount++
			task.lastSent = now
			if d.metrics != nil {
				d.metrics.RecordRetrySend()
			}
		}
		kept = append(kept, task)
	}
	d.tasks = kept
}
