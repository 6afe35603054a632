package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/agonych/udp-chat/pkg/config"
	"github.com/agonych/udp-chat/pkg/protocol"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// recordingTransmit stands in for the socket. It snapshots each task at
// send time because the dispatcher mutates tasks after transmit.
type recordingTransmit struct {
	mu    sync.Mutex
	sends []retryTask
	err   error
}

func (r *recordingTransmit) send(task *retryTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, *task)
	return r.err
}

func (r *recordingTransmit) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

func (r *recordingTransmit) sent(i int) retryTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sends[i]
}

func newTestDispatcher(cfg config.ServerConfig) (*retryDispatcher, *sessionTable, *recordingTransmit) {
	sessions := newSessionTable()
	tx := &recordingTransmit{}
	return newRetryDispatcher(cfg, sessions, tx.send, nil), sessions, tx
}

func putLiveSession(sessions *sessionTable, id string) *models.Session {
	row := &models.Session{
		ID:         1,
		SessionID:  id,
		SessionKey: "97a3e1c2d4b5f60718293a4b5c6d7e8f97a3e1c2d4b5f60718293a4b5c6d7e8f",
	}
	sessions.Put(row, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000})
	return row
}

func helloPacket(t *testing.T) *protocol.Packet {
	t.Helper()
	p, err := protocol.NewPacket(protocol.PacketHello, nil)
	if err != nil {
		t.Fatalf("Failed to build packet: %v", err)
	}
	return p
}

func TestRetryDispatcherEnqueue(t *testing.T) {
	t.Run("transmits immediately with a fresh msg_id", func(t *testing.T) {
		d, sessions, tx := newTestDispatcher(config.ServerConfig{})
		putLiveSession(sessions, "s1")

		packet := helloPacket(t)
		d.Enqueue("s1", packet)

		if tx.count() != 1 {
			t.Fatalf("Expected 1 transmit, got %d", tx.count())
		}
		sent := tx.sent(0)
		if sent.msgID == "" {
			t.Error("Expected a msg_id to be stamped")
		}
		if sent.packet.MsgID != sent.msgID {
			t.Errorf("Expected packet msg_id %q, got %q", sent.msgID, sent.packet.MsgID)
		}
		if packet.MsgID != "" {
			t.Errorf("Expected the shared packet to stay unstamped, got %q", packet.MsgID)
		}
		if d.Len() != 1 {
			t.Errorf("Expected 1 pending task, got %d", d.Len())
		}
	})

	t.Run("skips sessions that are not live", func(t *testing.T) {
		d, _, tx := newTestDispatcher(config.ServerConfig{})

		d.Enqueue("ghost", helloPacket(t))

		if tx.count() != 0 {
			t.Errorf("Expected no transmits, got %d", tx.count())
		}
		if d.Len() != 0 {
			t.Errorf("Expected no pending tasks, got %d", d.Len())
		}
	})

	t.Run("keeps the task when the first send fails", func(t *testing.T) {
		d, sessions, tx := newTestDispatcher(config.ServerConfig{})
		putLiveSession(sessions, "s1")
		tx.err = errors.New("network down")

		d.Enqueue("s1", helloPacket(t))

		if d.Len() != 1 {
			t.Errorf("Expected the task to stay queued, got %d", d.Len())
		}
	})

	t.Run("stamps distinct msg_ids per session", func(t *testing.T) {
		d, sessions, tx := newTestDispatcher(config.ServerConfig{})
		putLiveSession(sessions, "s1")
		row2 := &models.Session{ID: 2, SessionID: "s2", SessionKey: "00"}
		sessions.Put(row2, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40001})

		shared := helloPacket(t)
		d.Enqueue("s1", shared)
		d.Enqueue("s2", shared)

		if tx.count() != 2 {
			t.Fatalf("Expected 2 transmits, got %d", tx.count())
		}
		if tx.sent(0).msgID == tx.sent(1).msgID {
			t.Errorf("Expected distinct msg_ids, both were %q", tx.sent(0).msgID)
		}
	})

	t.Run("drops the oldest task at capacity", func(t *testing.T) {
		d, sessions, tx := newTestDispatcher(config.ServerConfig{QueueSize: 2})
		putLiveSession(sessions, "s1")

		d.Enqueue("s1", helloPacket(t))
		d.Enqueue("s1", helloPacket(t))
		d.Enqueue("s1", helloPacket(t))

		if d.Len() != 2 {
			t.Fatalf("Expected queue capped at 2, got %d", d.Len())
		}
		oldest := tx.sent(0).msgID
		d.mu.Lock()
		for _, task := range d.tasks {
			if task.msgID == oldest {
				t.Errorf("Expected oldest task %q to be dropped", oldest)
			}
		}
		d.mu.Unlock()
	})
}

func TestRetryDispatcherAcknowledge(t *testing.T) {
	d, sessions, tx := newTestDispatcher(config.ServerConfig{})
	putLiveSession(sessions, "s1")

	d.Enqueue("s1", helloPacket(t))
	msgID := tx.sent(0).msgID

	t.Run("wrong msg_id leaves the task pending", func(t *testing.T) {
		d.Acknowledge("s1", "nope")
		if d.Len() != 1 {
			t.Errorf("Expected 1 pending task, got %d", d.Len())
		}
	})

	t.Run("wrong session leaves the task pending", func(t *testing.T) {
		d.Acknowledge("s2", msgID)
		if d.Len() != 1 {
			t.Errorf("Expected 1 pending task, got %d", d.Len())
		}
	})

	t.Run("matching ack retires the task", func(t *testing.T) {
		d.Acknowledge("s1", msgID)
		if d.Len() != 0 {
			t.Errorf("Expected no pending tasks, got %d", d.Len())
		}
	})
}

func TestRetryDispatcherFlush(t *testing.T) {
	t.Run("resends stale tasks", func(t *testing.T) {
		d, sessions, tx := newTestDispatcher(config.ServerConfig{RetryInterval: time.Minute})
		putLiveSession(sessions, "s1")

		d.Enqueue("s1", helloPacket(t))
		d.flush(time.Now().Add(2 * time.Minute))

		if tx.count() != 2 {
			t.Fatalf("Expected a resend, got %d transmits", tx.count())
		}
		if tx.sent(1).msgID != tx.sent(0).msgID {
			t.Errorf("Expected the resend to keep msg_id %q, got %q",
				tx.sent(0).msgID, tx.sent(1).msgID)
		}
		if got := tx.sent(1).retryCount; got != 1 {
			t.Errorf("Expected retry count 1 at resend time, got %d", got)
		}
	})

	t.Run("leaves fresh tasks alone", func(t *testing.T) {
		d, sessions, tx := newTestDispatcher(config.ServerConfig{RetryInterval: time.Minute})
		putLiveSession(sessions, "s1")

		d.Enqueue("s1", helloPacket(t))
		d.flush(time.Now())

		if tx.count() != 1 {
			t.Errorf("Expected no resend, got %d transmits", tx.count())
		}
		if d.Len() != 1 {
			t.Errorf("Expected the task to stay pending, got %d", d.Len())
		}
	})

	t.Run("drops tasks after the retry budget", func(t *testing.T) {
		d, sessions, tx := newTestDispatcher(config.ServerConfig{
			RetryInterval: time.Minute,
			MaxRetries:    2,
		})
		putLiveSession(sessions, "s1")

		d.Enqueue("s1", helloPacket(t))
		now := time.Now()
		d.flush(now.Add(2 * time.Minute)) // second transmission
		d.flush(now.Add(4 * time.Minute)) // budget spent, dropped

		if tx.count() != 2 {
			t.Errorf("Expected 2 transmissions total, got %d", tx.count())
		}
		if d.Len() != 0 {
			t.Errorf("Expected the task to be dropped, got %d pending", d.Len())
		}
	})
}

func TestRetryDispatcherStartStop(t *testing.T) {
	d, _, _ := newTestDispatcher(config.ServerConfig{})
	d.Start()
	d.Stop()
	d.Stop() // idempotent

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestWriteQueue(t *testing.T) {
	t.Run("drains pushed writes in order", func(t *testing.T) {
		q := newWriteQueue()
		var got []int
		for i := 0; i <= 2; i++ {
			i := i
			q.Push(func(ctx context.Context) { got = append(got, i) })
		}
		if q.Len() != 3 {
			t.Fatalf("Expected 3 pending writes, got %d", q.Len())
		}

		q.Drain(context.Background())

		if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
			t.Errorf("Expected writes in push order, got %v", got)
		}
		if q.Len() != 0 {
			t.Errorf("Expected empty queue after drain, got %d", q.Len())
		}
	})

	t.Run("drain on empty queue is a no-op", func(t *testing.T) {
		q := newWriteQueue()
		q.Drain(context.Background())
		if q.Len() != 0 {
			t.Errorf("Expected empty queue, got %d", q.Len())
		}
	})
}
