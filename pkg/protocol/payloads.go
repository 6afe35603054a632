package protocol

// Client request data shapes.

// LoginData authenticates or auto-provisions a user by email.
type LoginData struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// MergeSessionData proves ownership of an earlier session by presenting
// its key, hex-encoded exactly as the store keeps it.
type MergeSessionData struct {
	OldSessionID  string `json:"old_session_id"`
	OldSessionKey string `json:"old_session_key"`
}

// CreateRoomData names the room to create.
type CreateRoomData struct {
	Name string `json:"name"`
}

// RoomRequestData addresses a room by its external id. Used by
// JOIN_ROOM, LEAVE_ROOM, LIST_MESSAGES, LIST_MEMBERS and AI_MESSAGE.
type RoomRequestData struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content,omitempty"`
}

// MessageData posts a message to a room.
type MessageData struct {
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// AckData acknowledges delivery of a server-originated packet.
type AckData struct {
	MsgID string `json:"msg_id"`
}

// Server response data shapes.

// ErrorData is the body of ERROR and UNAUTHORISED packets.
type ErrorData struct {
	Message string `json:"message"`
}

// PleaseLoginData asks the client to retry LOGIN with a password.
type PleaseLoginData struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// RoomRef identifies a room in responses and broadcasts.
type RoomRef struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
}

// UserInfo describes the authenticated user in WELCOME and STATUS.
// Room is the user's most recently active room, null when none.
type UserInfo struct {
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	UserID string   `json:"user_id"`
	Room   *RoomRef `json:"room"`
}

// WelcomeData is the body of WELCOME after LOGIN or MERGE_SESSION.
type WelcomeData struct {
	User UserInfo `json:"user"`
}

// StatusData reports the session's view of itself. User is a full
// UserInfo when authenticated, an empty object for a bare transport
// session, and null immediately after LOGOUT.
type StatusData struct {
	SessionID string `json:"session_id"`
	User      any    `json:"user"`
}

// RoomInfo is one entry of the ROOM_LIST array.
type RoomInfo struct {
	RoomID       string `json:"room_id"`
	Name         string `json:"name"`
	LastActiveAt *int64 `json:"last_active_at"`
}

// MemberInfo is one entry of ROOM_MEMBERS and the body of the member
// field in MEMBER_JOINED. JoinedAt is null for rows predating the
// column.
type MemberInfo struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"is_admin"`
	JoinedAt *int64 `json:"joined_at"`
}

// MemberJoinedData announces a new room member to current members.
type MemberJoinedData struct {
	RoomID string     `json:"room_id"`
	Member MemberInfo `json:"member"`
}

// MemberLeftData announces a departure to the remaining members.
type MemberLeftData struct {
	RoomID   string `json:"room_id"`
	MemberID string `json:"member_id"`
}

// MessageEvent is the MESSAGE broadcast body. UserID and Name identify
// the author; for assistant-generated messages they are the requesting
// user's, with the generated text as Content.
type MessageEvent struct {
	RoomID    string `json:"room_id"`
	MessageID uint   `json:"message_id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// MessageSentData confirms persistence of the author's own message.
type MessageSentData struct {
	MessageID uint   `json:"message_id"`
	RoomID    string `json:"room_id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// HistoryEntry is one entry of the ROOM_HISTORY array, oldest first.
type HistoryEntry struct {
	MessageID      uint   `json:"message_id"`
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
	IsAnnouncement bool   `json:"is_announcement"`
}
