package models

import (
	"bytes"
	"testing"
)

func TestUser_HasPassword(t *testing.T) {
	tests := []struct {
		name string
		user User
		want bool
	}{
		{"with password", User{Email: "alice@example.com", Password: "5f4dcc3b5aa765d61d8327deb882cf99"}, true},
		{"without password", User{Email: "bob@example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasPassword(); got != tt.want {
				t.Errorf("HasPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_IsAuthenticated(t *testing.T) {
	userPK := uint(7)

	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{"bound", Session{SessionID: "a1", UserID: &userPK}, true},
		{"anonymous", Session{SessionID: "a2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.IsAuthenticated(); got != tt.want {
				t.Errorf("IsAuthenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_KeyBytes(t *testing.T) {
	t.Run("valid hex", func(t *testing.T) {
		s := Session{SessionKey: "00010203"}
		got, err := s.KeyBytes()
		if err != nil {
			t.Fatalf("KeyBytes() error = %v", err)
		}
		if !bytes.Equal(got, []byte{0, 1, 2, 3}) {
			t.Errorf("KeyBytes() = %x, want 00010203", got)
		}
	})

	t.Run("invalid hex", func(t *testing.T) {
		s := Session{SessionKey: "not-hex"}
		if _, err := s.KeyBytes(); err == nil {
			t.Error("KeyBytes() expected error for invalid hex")
		}
	})
}

func TestAllModels(t *testing.T) {
	got := AllModels()
	if len(got) != 6 {
		t.Fatalf("AllModels() returned %d models, want 6", len(got))
	}
}
