package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/pkg/store/models"
)

// liveSession is the in-memory view of an established session: the
// persisted row plus the peer's current address and the time of the
// last authentic packet.
type liveSession struct {
	row      *models.Session
	addr     *net.UDPAddr
	lastSeen time.Time
}

// sessionTable tracks the sessions the server is actively exchanging
// datagrams with. The receive loop writes on every packet; the sweeper
// and the retry dispatcher read. Entries evicted here are not gone:
// the repository row survives until the purger removes it, and any
// later SECURE_MSG re-creates the live entry from that row.
type sessionTable struct {
	mu      sync.RWMutex
	entries map[string]*liveSession
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		entries: make(map[string]*liveSession),
	}
}

// Put inserts or refreshes the entry for the session, stamping the last
// seen time. The address of the latest authentic packet wins, which is
// what lets clients survive NAT rebinds.
func (t *sessionTable) Put(row *models.Session, addr *net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[row.SessionID]
	if !ok {
		t.entries[row.SessionID] = &liveSession{row: row, addr: addr, lastSeen: time.Now()}
		return
	}
	entry.row = row
	entry.addr = addr
	entry.lastSeen = time.Now()
}

// Get returns a snapshot of the live entry for the session id.
func (t *sessionTable) Get(id string) (liveSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[id]
	if !ok {
		return liveSession{}, false
	}
	return *entry, true
}

// Delete removes the live entry, if any.
func (t *sessionTable) Delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// IDs returns the ids of all live sessions.
func (t *sessionTable) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live sessions.
func (t *sessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// CountUsers returns the number of distinct users bound to live
// sessions.
func (t *sessionTable) CountUsers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make(map[uint]struct{})
	for _, entry := range t.entries {
		if entry.row.UserID != nil {
			users[*entry.row.UserID] = struct{}{}
		}
	}
	return len(users)
}

// Evict removes entries whose last activity predates the cutoff and
// returns their session ids.
func (t *sessionTable) Evict(olderThan time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []string
	for id, entry := range t.entries {
		if entry.lastSeen.Before(olderThan) {
			delete(t.entries, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// runSweeper evicts idle sessions on a fixed interval and periodically
// raises the cleanup flag so the receive loop purges expired repository
// rows between datagrams. It also refreshes the liveness gauges, so
// they stay honest even when no packets arrive.
func (s *Server) runSweeper(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
		}

		evicted := s.sessions.Evict(time.Now().Add(-s.config.SessionTimeout))
		if len(evicted) > 0 {
			logger.Debug("Evicted idle sessions",
				logger.Count(len(evicted)),
				logger.Component("sweeper"))
		}

		if s.metrics != nil {
			s.metrics.SetActiveSessions(s.sessions.Len())
			s.metrics.SetActiveUsers(s.sessions.CountUsers())
			if rooms, err := s.store.ListPublicRooms(ctx); err == nil {
				s.metrics.SetActiveRooms(len(rooms))
			}
		}

		cycle++
		if cycle >= s.config.CleanupCycles {
			cycle = 0
			s.cleanup.Store(true)
		}
	}
}

// purgeExpiredSessions removes repository sessions idle past the
// session timeout, together with their nonce ledgers. Runs on the
// receive goroutine when the sweeper raises the cleanup flag.
func (s *Server) purgeExpiredSessions(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.SessionTimeout).Unix()
	purged, err := s.store.PurgeIdleSessions(ctx, cutoff)
	if err != nil {
		logger.Warn("Failed to purge expired sessions", logger.Err(err))
		return
	}
	if purged > 0 {
		logger.Info("Purged expired sessions", logger.Count(int(purged)))
	}
}
