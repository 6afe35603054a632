package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeChat implements ChatServer with a fixed answer.
type fakeChat struct {
	serving bool
}

func (f *fakeChat) Serving() bool { return f.serving }

// fakeStore implements Store with a fixed ping result.
type fakeStore struct {
	err error
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.err }

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestHealth_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler.Health(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}

	if data["service"] != "udpchat" {
		t.Errorf("Expected service 'udpchat', got '%s'", data["service"])
	}

	if data["uptime"] == nil || data["uptime"] == "" {
		t.Error("Expected uptime to be set")
	}

	if data["started_at"] == nil || data["started_at"] == "" {
		t.Error("Expected started_at to be set")
	}
}

func TestReady_NoChatServer_Returns503(t *testing.T) {
	handler := NewHealthHandler(nil, &fakeStore{})
	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got '%s'", resp.Status)
	}

	if resp.Error != "udp listener not serving" {
		t.Errorf("Expected error 'udp listener not serving', got '%s'", resp.Error)
	}
}

func TestReady_ListenerNotServing_Returns503(t *testing.T) {
	handler := NewHealthHandler(&fakeChat{serving: false}, &fakeStore{})
	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Error != "udp listener not serving" {
		t.Errorf("Expected error 'udp listener not serving', got '%s'", resp.Error)
	}
}

func TestReady_NoStore_Returns503(t *testing.T) {
	handler := NewHealthHandler(&fakeChat{serving: true}, nil)
	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Error != "store not initialized" {
		t.Errorf("Expected error 'store not initialized', got '%s'", resp.Error)
	}
}

func TestReady_DatabaseDown_Returns503(t *testing.T) {
	handler := NewHealthHandler(&fakeChat{serving: true}, &fakeStore{err: errors.New("connection refused")})
	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Error != "database unreachable: connection refused" {
		t.Errorf("Expected database error, got '%s'", resp.Error)
	}
}

func TestReady_AllHealthy_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(&fakeChat{serving: true}, &fakeStore{})
	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}

	if data["udp"] != "serving" {
		t.Errorf("Expected udp 'serving', got '%v'", data["udp"])
	}

	if data["database"] != "ok" {
		t.Errorf("Expected database 'ok', got '%v'", data["database"])
	}
}
