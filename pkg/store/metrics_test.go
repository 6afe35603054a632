//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agonych/udp-chat/pkg/store/models"
)

// recordingStoreMetrics captures ObserveQuery calls for assertions.
type recordingStoreMetrics struct {
	mu           sync.Mutex
	observations []queryObservation
}

type queryObservation struct {
	operation string
	table     string
	duration  time.Duration
}

func (r *recordingStoreMetrics) ObserveQuery(operation string, table string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = append(r.observations, queryObservation{operation, table, duration})
}

func (r *recordingStoreMetrics) find(operation, table string) []queryObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matches []queryObservation
	for _, o := range r.observations {
		if o.operation == operation && o.table == table {
			matches = append(matches, o)
		}
	}
	return matches
}

func TestInstrumentMetrics(t *testing.T) {
	t.Run("nil metrics is a no-op", func(t *testing.T) {
		store := createTestStore(t)
		defer store.Close()

		if err := store.InstrumentMetrics(nil); err != nil {
			t.Fatalf("InstrumentMetrics(nil) returned error: %v", err)
		}

		// Queries still work without instrumentation.
		seedUser(t, store, "u-metrics-1", "alice", "alice@example.com")
	})

	t.Run("observes creates and queries with table names", func(t *testing.T) {
		store := createTestStore(t)
		defer store.Close()

		rec := &recordingStoreMetrics{}
		if err := store.InstrumentMetrics(rec); err != nil {
			t.Fatalf("InstrumentMetrics returned error: %v", err)
		}

		user := seedUser(t, store, "u-metrics-2", "bob", "bob@example.com")
		if _, err := store.UserByEmail(context.Background(), user.Email); err != nil {
			t.Fatalf("UserByEmail failed: %v", err)
		}

		creates := rec.find("create", "users")
		if len(creates) != 1 {
			t.Fatalf("expected 1 create observation for users, got %d", len(creates))
		}
		if creates[0].duration <= 0 {
			t.Errorf("expected positive create duration, got %v", creates[0].duration)
		}

		queries := rec.find("query", "users")
		if len(queries) == 0 {
			t.Fatal("expected at least 1 query observation for users")
		}
	})

	t.Run("observes updates and deletes", func(t *testing.T) {
		store := createTestStore(t)
		defer store.Close()

		rec := &recordingStoreMetrics{}
		if err := store.InstrumentMetrics(rec); err != nil {
			t.Fatalf("InstrumentMetrics returned error: %v", err)
		}

		user := seedUser(t, store, "u-metrics-3", "carol", "carol@example.com")
		if err := store.SetUserPassword(context.Background(), user.Email, "hash"); err != nil {
			t.Fatalf("SetUserPassword failed: %v", err)
		}

		room := &models.Room{RoomID: "r-metrics-1", Name: "metrics"}
		if err := store.CreateRoom(context.Background(), room); err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		if err := store.DeleteRoom(context.Background(), room.ID); err != nil {
			t.Fatalf("DeleteRoom failed: %v", err)
		}

		if len(rec.find("update", "users")) == 0 {
			t.Error("expected an update observation for users")
		}
		// DeleteRoom cascades over messages and members before the room row.
		if len(rec.find("delete", "rooms")) == 0 {
			t.Error("expected a delete observation for rooms")
		}
		if len(rec.find("delete", "messages")) == 0 {
			t.Error("expected a delete observation for messages")
		}
	})
}
