//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agonych/udp-chat/pkg/store/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	store, err := New(&Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return store
}

// seedUser inserts a user with sensible defaults and returns it.
func seedUser(t *testing.T, store *GORMStore, userID, name, email string) *models.User {
	t.Helper()
	user := &models.User{
		UserID: userID,
		Name:   name,
		Email:  email,
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
	return user
}

func TestNew(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected SQLite, got %s", config.Type)
		}
	})

	t.Run("invalid config returns error", func(t *testing.T) {
		config := &Config{
			Type: "invalid",
		}
		_, err := New(config)
		if err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("creates in-memory store", func(t *testing.T) {
		store := createTestStore(t)
		defer store.Close()

		if store == nil {
			t.Error("expected non-nil store")
		}
	})
}

func TestUserOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("create user", func(t *testing.T) {
		user := &models.User{
			UserID: "11111111111111111111111111111111",
			Name:   "alice",
			Email:  "alice@example.com",
		}
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if user.ID == 0 {
			t.Error("expected primary key to be filled")
		}
		if user.CreatedAt == 0 {
			t.Error("expected created_at to be filled")
		}
	})

	t.Run("duplicate email fails", func(t *testing.T) {
		user := &models.User{
			UserID: "22222222222222222222222222222222",
			Name:   "alice2",
			Email:  "alice@example.com",
		}
		err := store.CreateUser(ctx, user)
		if !errors.Is(err, models.ErrDuplicateUser) {
			t.Errorf("expected ErrDuplicateUser, got %v", err)
		}
	})

	t.Run("lookup by email", func(t *testing.T) {
		user, err := store.UserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("failed to look up user: %v", err)
		}
		if user.Name != "alice" {
			t.Errorf("expected name alice, got %s", user.Name)
		}
	})

	t.Run("lookup by primary key", func(t *testing.T) {
		byEmail, err := store.UserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("failed to look up user: %v", err)
		}
		byPK, err := store.UserByPK(ctx, byEmail.ID)
		if err != nil {
			t.Fatalf("failed to look up user by pk: %v", err)
		}
		if byPK.Email != byEmail.Email {
			t.Errorf("pk lookup returned %s, want %s", byPK.Email, byEmail.Email)
		}
	})

	t.Run("unknown user returns ErrUserNotFound", func(t *testing.T) {
		_, err := store.UserByEmail(ctx, "nobody@example.com")
		if !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("set and clear password", func(t *testing.T) {
		if err := store.SetUserPassword(ctx, "alice@example.com", "5f4dcc3b5aa765d61d8327deb882cf99"); err != nil {
			t.Fatalf("failed to set password: %v", err)
		}
		user, err := store.UserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("failed to look up user: %v", err)
		}
		if !user.HasPassword() {
			t.Error("expected password to be set")
		}

		if err := store.SetUserPassword(ctx, "alice@example.com", ""); err != nil {
			t.Fatalf("failed to clear password: %v", err)
		}
		user, err = store.UserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("failed to look up user: %v", err)
		}
		if user.HasPassword() {
			t.Error("expected password to be cleared")
		}
	})

	t.Run("set password for unknown user fails", func(t *testing.T) {
		err := store.SetUserPassword(ctx, "nobody@example.com", "hash")
		if !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("touch user", func(t *testing.T) {
		user, err := store.UserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("failed to look up user: %v", err)
		}
		now := time.Now().Unix()
		if err := store.TouchUser(ctx, user.ID, now); err != nil {
			t.Fatalf("failed to touch user: %v", err)
		}
		user, err = store.UserByPK(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to look up user: %v", err)
		}
		if user.LastActiveAt != now {
			t.Errorf("expected last_active_at %d, got %d", now, user.LastActiveAt)
		}
	})

	t.Run("list users ordered by email", func(t *testing.T) {
		seedUser(t, store, "33333333333333333333333333333333", "bob", "bob@example.com")
		users, err := store.ListUsers(ctx)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}
		if users[0].Email != "alice@example.com" || users[1].Email != "bob@example.com" {
			t.Errorf("unexpected order: %s, %s", users[0].Email, users[1].Email)
		}
	})
}

func TestSessionOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	user := seedUser(t, store, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "alice", "alice@example.com")

	t.Run("create and look up session", func(t *testing.T) {
		sess := &models.Session{
			SessionID:    "0123456789abcdef0123456789abcdef",
			SessionKey:   "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
			LastActiveAt: time.Now().Unix(),
		}
		if err := store.CreateSession(ctx, sess); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := store.SessionByID(ctx, sess.SessionID)
		if err != nil {
			t.Fatalf("failed to look up session: %v", err)
		}
		if got.IsAuthenticated() {
			t.Error("fresh session must be anonymous")
		}
		if got.SessionKey != sess.SessionKey {
			t.Error("session key mismatch")
		}
	})

	t.Run("unknown session returns ErrSessionNotFound", func(t *testing.T) {
		_, err := store.SessionByID(ctx, "ffffffffffffffffffffffffffffffff")
		if !errors.Is(err, models.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("bind and clear user", func(t *testing.T) {
		sessionID := "0123456789abcdef0123456789abcdef"
		if err := store.BindSessionUser(ctx, sessionID, user.ID, time.Now().Unix()); err != nil {
			t.Fatalf("failed to bind user: %v", err)
		}

		got, err := store.SessionByID(ctx, sessionID)
		if err != nil {
			t.Fatalf("failed to look up session: %v", err)
		}
		if !got.IsAuthenticated() {
			t.Fatal("expected session to be authenticated")
		}
		if got.User == nil || got.User.Email != user.Email {
			t.Error("expected bound user to be preloaded")
		}

		if err := store.ClearSessionUser(ctx, sessionID); err != nil {
			t.Fatalf("failed to clear user: %v", err)
		}
		got, err = store.SessionByID(ctx, sessionID)
		if err != nil {
			t.Fatalf("failed to look up session: %v", err)
		}
		if got.IsAuthenticated() {
			t.Error("expected session to be anonymous after clear")
		}
	})

	t.Run("session ids for users", func(t *testing.T) {
		sessionID := "0123456789abcdef0123456789abcdef"
		if err := store.BindSessionUser(ctx, sessionID, user.ID, time.Now().Unix()); err != nil {
			t.Fatalf("failed to bind user: %v", err)
		}

		ids, err := store.SessionIDsForUsers(ctx, []uint{user.ID})
		if err != nil {
			t.Fatalf("failed to list session ids: %v", err)
		}
		if len(ids) != 1 || ids[0] != sessionID {
			t.Errorf("expected [%s], got %v", sessionID, ids)
		}

		ids, err = store.SessionIDsForUsers(ctx, nil)
		if err != nil {
			t.Fatalf("failed on empty user list: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected no ids for empty user list, got %v", ids)
		}
	})

	t.Run("purge removes idle sessions and their nonces", func(t *testing.T) {
		idle := &models.Session{
			SessionID:  "1111111111111111111111111111111f",
			SessionKey: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
		}
		if err := store.CreateSession(ctx, idle); err != nil {
			t.Fatalf("failed to create idle session: %v", err)
		}
		if err := store.RememberNonce(ctx, idle.ID, "000000000000000000000001"); err != nil {
			t.Fatalf("failed to record nonce: %v", err)
		}

		fresh, err := store.SessionByID(ctx, "0123456789abcdef0123456789abcdef")
		if err != nil {
			t.Fatalf("failed to look up fresh session: %v", err)
		}
		if err := store.TouchSession(ctx, fresh.SessionID, time.Now().Unix()); err != nil {
			t.Fatalf("failed to touch session: %v", err)
		}

		purged, err := store.PurgeIdleSessions(ctx, time.Now().Unix()-60)
		if err != nil {
			t.Fatalf("failed to purge: %v", err)
		}
		if purged != 1 {
			t.Errorf("expected 1 purged session, got %d", purged)
		}

		if _, err := store.SessionByID(ctx, idle.SessionID); !errors.Is(err, models.ErrSessionNotFound) {
			t.Errorf("expected idle session to be gone, got %v", err)
		}
		if _, err := store.SessionByID(ctx, fresh.SessionID); err != nil {
			t.Errorf("expected fresh session to survive, got %v", err)
		}

		seen, err := store.SeenNonce(ctx, idle.ID, "000000000000000000000001")
		if err != nil {
			t.Fatalf("failed to check nonce: %v", err)
		}
		if seen {
			t.Error("expected purge to cascade to nonces")
		}
	})
}

func TestNonceOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	first := &models.Session{
		SessionID:  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		SessionKey: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
	}
	second := &models.Session{
		SessionID:  "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		SessionKey: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
	}
	if err := store.CreateSession(ctx, first); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := store.CreateSession(ctx, second); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	nonce := "00112233445566778899aabb"

	t.Run("unseen nonce", func(t *testing.T) {
		seen, err := store.SeenNonce(ctx, first.ID, nonce)
		if err != nil {
			t.Fatalf("failed to check nonce: %v", err)
		}
		if seen {
			t.Error("expected nonce to be unseen")
		}
	})

	t.Run("remember and replay", func(t *testing.T) {
		if err := store.RememberNonce(ctx, first.ID, nonce); err != nil {
			t.Fatalf("failed to remember nonce: %v", err)
		}

		seen, err := store.SeenNonce(ctx, first.ID, nonce)
		if err != nil {
			t.Fatalf("failed to check nonce: %v", err)
		}
		if !seen {
			t.Error("expected nonce to be seen")
		}

		err = store.RememberNonce(ctx, first.ID, nonce)
		if !errors.Is(err, models.ErrNonceSeen) {
			t.Errorf("expected ErrNonceSeen, got %v", err)
		}
	})

	t.Run("same nonce under another session is fine", func(t *testing.T) {
		if err := store.RememberNonce(ctx, second.ID, nonce); err != nil {
			t.Fatalf("expected per-session uniqueness, got %v", err)
		}
	})
}

func TestRoomOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	user := seedUser(t, store, "cccccccccccccccccccccccccccccccc", "carol", "carol@example.com")

	t.Run("create room", func(t *testing.T) {
		room := &models.Room{
			RoomID: "d1111111111111111111111111111111",
			Name:   "general",
		}
		if err := store.CreateRoom(ctx, room); err != nil {
			t.Fatalf("failed to create room: %v", err)
		}
		if room.ID == 0 {
			t.Error("expected primary key to be filled")
		}
	})

	t.Run("duplicate name fails", func(t *testing.T) {
		room := &models.Room{
			RoomID: "d2222222222222222222222222222222",
			Name:   "general",
		}
		err := store.CreateRoom(ctx, room)
		if !errors.Is(err, models.ErrDuplicateRoom) {
			t.Errorf("expected ErrDuplicateRoom, got %v", err)
		}
	})

	t.Run("lookups", func(t *testing.T) {
		byID, err := store.RoomByRoomID(ctx, "d1111111111111111111111111111111")
		if err != nil {
			t.Fatalf("failed to look up by room id: %v", err)
		}
		byName, err := store.RoomByName(ctx, "general")
		if err != nil {
			t.Fatalf("failed to look up by name: %v", err)
		}
		if byID.ID != byName.ID {
			t.Error("lookups disagree on the room")
		}

		if _, err := store.RoomByName(ctx, "missing"); !errors.Is(err, models.ErrRoomNotFound) {
			t.Errorf("expected ErrRoomNotFound, got %v", err)
		}
	})

	t.Run("public listing is ordered by activity", func(t *testing.T) {
		older := &models.Room{RoomID: "d3333333333333333333333333333333", Name: "older"}
		hidden := &models.Room{RoomID: "d4444444444444444444444444444444", Name: "hidden", IsPrivate: true}
		if err := store.CreateRoom(ctx, older); err != nil {
			t.Fatalf("failed to create room: %v", err)
		}
		if err := store.CreateRoom(ctx, hidden); err != nil {
			t.Fatalf("failed to create room: %v", err)
		}

		general, err := store.RoomByName(ctx, "general")
		if err != nil {
			t.Fatalf("failed to look up room: %v", err)
		}
		now := time.Now().Unix()
		if err := store.TouchRoom(ctx, general.ID, now); err != nil {
			t.Fatalf("failed to touch room: %v", err)
		}
		if err := store.TouchRoom(ctx, older.ID, now-100); err != nil {
			t.Fatalf("failed to touch room: %v", err)
		}

		rooms, err := store.ListPublicRooms(ctx)
		if err != nil {
			t.Fatalf("failed to list rooms: %v", err)
		}
		if len(rooms) != 2 {
			t.Fatalf("expected 2 public rooms, got %d", len(rooms))
		}
		if rooms[0].Name != "general" || rooms[1].Name != "older" {
			t.Errorf("unexpected order: %s, %s", rooms[0].Name, rooms[1].Name)
		}
	})

	t.Run("last room of user follows activity", func(t *testing.T) {
		general, err := store.RoomByName(ctx, "general")
		if err != nil {
			t.Fatalf("failed to look up room: %v", err)
		}
		older, err := store.RoomByName(ctx, "older")
		if err != nil {
			t.Fatalf("failed to look up room: %v", err)
		}

		for _, roomPK := range []uint{general.ID, older.ID} {
			if err := store.AddMember(ctx, &models.Member{RoomID: roomPK, UserID: user.ID}); err != nil {
				t.Fatalf("failed to add member: %v", err)
			}
		}

		room, err := store.LastRoomOfUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to find last room: %v", err)
		}
		if room.Name != "general" {
			t.Errorf("expected general (more recent), got %s", room.Name)
		}

		if err := store.TouchRoom(ctx, older.ID, time.Now().Unix()+10); err != nil {
			t.Fatalf("failed to touch room: %v", err)
		}
		room, err = store.LastRoomOfUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to find last room: %v", err)
		}
		if room.Name != "older" {
			t.Errorf("expected older after touch, got %s", room.Name)
		}
	})

	t.Run("no rooms returns ErrRoomNotFound", func(t *testing.T) {
		loner := seedUser(t, store, "dddddddddddddddddddddddddddddddd", "dave", "dave@example.com")
		_, err := store.LastRoomOfUser(ctx, loner.ID)
		if !errors.Is(err, models.ErrRoomNotFound) {
			t.Errorf("expected ErrRoomNotFound, got %v", err)
		}
	})

	t.Run("delete cascades to members and messages", func(t *testing.T) {
		general, err := store.RoomByName(ctx, "general")
		if err != nil {
			t.Fatalf("failed to look up room: %v", err)
		}
		if err := store.CreateMessage(ctx, &models.Message{
			RoomID:  general.ID,
			UserID:  user.ID,
			Content: "hello",
		}); err != nil {
			t.Fatalf("failed to create message: %v", err)
		}

		if err := store.DeleteRoom(ctx, general.ID); err != nil {
			t.Fatalf("failed to delete room: %v", err)
		}

		if _, err := store.RoomByName(ctx, "general"); !errors.Is(err, models.ErrRoomNotFound) {
			t.Errorf("expected room to be gone, got %v", err)
		}
		count, err := store.CountMembers(ctx, general.ID)
		if err != nil {
			t.Fatalf("failed to count members: %v", err)
		}
		if count != 0 {
			t.Errorf("expected members to be gone, got %d", count)
		}
		messages, err := store.LastMessages(ctx, general.ID, 10)
		if err != nil {
			t.Fatalf("failed to list messages: %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("expected messages to be gone, got %d", len(messages))
		}

		if err := store.DeleteRoom(ctx, general.ID); !errors.Is(err, models.ErrRoomNotFound) {
			t.Errorf("expected ErrRoomNotFound on second delete, got %v", err)
		}
	})
}

func TestMemberOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	room := &models.Room{RoomID: "e1111111111111111111111111111111", Name: "team"}
	if err := store.CreateRoom(ctx, room); err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	zoe := seedUser(t, store, "e2222222222222222222222222222222", "zoe", "zoe@example.com")
	adam := seedUser(t, store, "e3333333333333333333333333333333", "adam", "adam@example.com")

	t.Run("add members", func(t *testing.T) {
		if err := store.AddMember(ctx, &models.Member{RoomID: room.ID, UserID: zoe.ID, IsAdmin: true}); err != nil {
			t.Fatalf("failed to add member: %v", err)
		}
		if err := store.AddMember(ctx, &models.Member{RoomID: room.ID, UserID: adam.ID}); err != nil {
			t.Fatalf("failed to add member: %v", err)
		}
	})

	t.Run("duplicate join fails", func(t *testing.T) {
		err := store.AddMember(ctx, &models.Member{RoomID: room.ID, UserID: zoe.ID})
		if !errors.Is(err, models.ErrDuplicateMember) {
			t.Errorf("expected ErrDuplicateMember, got %v", err)
		}
	})

	t.Run("member lookup", func(t *testing.T) {
		member, err := store.MemberOf(ctx, room.ID, zoe.ID)
		if err != nil {
			t.Fatalf("failed to look up member: %v", err)
		}
		if !member.IsAdmin {
			t.Error("expected zoe to be admin")
		}

		outsider := seedUser(t, store, "e4444444444444444444444444444444", "oz", "oz@example.com")
		if _, err := store.MemberOf(ctx, room.ID, outsider.ID); !errors.Is(err, models.ErrNotAMember) {
			t.Errorf("expected ErrNotAMember, got %v", err)
		}
	})

	t.Run("room members ordered by name", func(t *testing.T) {
		members, err := store.RoomMembers(ctx, room.ID)
		if err != nil {
			t.Fatalf("failed to list members: %v", err)
		}
		if len(members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(members))
		}
		if members[0].User == nil || members[1].User == nil {
			t.Fatal("expected user rows to be preloaded")
		}
		if members[0].User.Name != "adam" || members[1].User.Name != "zoe" {
			t.Errorf("unexpected order: %s, %s", members[0].User.Name, members[1].User.Name)
		}
	})

	t.Run("member pks and count", func(t *testing.T) {
		pks, err := store.RoomMemberPKs(ctx, room.ID)
		if err != nil {
			t.Fatalf("failed to list member pks: %v", err)
		}
		if len(pks) != 2 {
			t.Errorf("expected 2 pks, got %d", len(pks))
		}

		count, err := store.CountMembers(ctx, room.ID)
		if err != nil {
			t.Fatalf("failed to count members: %v", err)
		}
		if count != 2 {
			t.Errorf("expected count 2, got %d", count)
		}
	})

	t.Run("remove member", func(t *testing.T) {
		if err := store.RemoveMember(ctx, room.ID, adam.ID); err != nil {
			t.Fatalf("failed to remove member: %v", err)
		}
		if err := store.RemoveMember(ctx, room.ID, adam.ID); !errors.Is(err, models.ErrNotAMember) {
			t.Errorf("expected ErrNotAMember on second remove, got %v", err)
		}

		count, err := store.CountMembers(ctx, room.ID)
		if err != nil {
			t.Fatalf("failed to count members: %v", err)
		}
		if count != 1 {
			t.Errorf("expected count 1, got %d", count)
		}
	})
}

func TestMessageOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	room := &models.Room{RoomID: "f1111111111111111111111111111111", Name: "log"}
	if err := store.CreateRoom(ctx, room); err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	user := seedUser(t, store, "f2222222222222222222222222222222", "fred", "fred@example.com")

	t.Run("create fills id and timestamp", func(t *testing.T) {
		msg := &models.Message{
			RoomID:  room.ID,
			UserID:  user.ID,
			Content: "first",
		}
		if err := store.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("failed to create message: %v", err)
		}
		if msg.ID == 0 {
			t.Error("expected primary key to be filled")
		}
		if msg.CreatedAt == 0 {
			t.Error("expected created_at to be filled")
		}
	})

	t.Run("last messages newest first", func(t *testing.T) {
		for _, content := range []string{"second", "third"} {
			if err := store.CreateMessage(ctx, &models.Message{
				RoomID:  room.ID,
				UserID:  user.ID,
				Content: content,
			}); err != nil {
				t.Fatalf("failed to create message: %v", err)
			}
		}

		messages, err := store.LastMessages(ctx, room.ID, 2)
		if err != nil {
			t.Fatalf("failed to list messages: %v", err)
		}
		if len(messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(messages))
		}
		if messages[0].Content != "third" || messages[1].Content != "second" {
			t.Errorf("unexpected order: %s, %s", messages[0].Content, messages[1].Content)
		}
		if messages[0].User == nil || messages[0].User.Name != "fred" {
			t.Error("expected sender to be preloaded")
		}

		all, err := store.LastMessages(ctx, room.ID, 100)
		if err != nil {
			t.Fatalf("failed to list messages: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 messages, got %d", len(all))
		}
	})

	t.Run("announcement flag round-trips", func(t *testing.T) {
		msg := &models.Message{
			RoomID:         room.ID,
			UserID:         user.ID,
			Content:        "ai says hi",
			IsAnnouncement: true,
		}
		if err := store.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("failed to create message: %v", err)
		}

		messages, err := store.LastMessages(ctx, room.ID, 1)
		if err != nil {
			t.Fatalf("failed to list messages: %v", err)
		}
		if len(messages) != 1 || !messages[0].IsAnnouncement {
			t.Error("expected newest message to carry the announcement flag")
		}
	})
}
