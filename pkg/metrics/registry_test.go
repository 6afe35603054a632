package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestRegistryLifecycle drives the package-global registry through its full
// life in one test because InitRegistry cannot be undone within a process.
func TestRegistryLifecycle(t *testing.T) {
	if IsEnabled() {
		t.Fatal("Expected metrics disabled before InitRegistry")
	}
	if GetRegistry() != nil {
		t.Fatal("Expected nil registry before InitRegistry")
	}

	// The handler is mounted unconditionally, so before initialization it
	// must answer 404 rather than panic.
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Handler before init returned %d, want %d", rec.Code, http.StatusNotFound)
	}

	reg := InitRegistry()
	if reg == nil {
		t.Fatal("InitRegistry returned nil")
	}
	if !IsEnabled() {
		t.Error("Expected metrics enabled after InitRegistry")
	}
	if GetRegistry() != reg {
		t.Error("GetRegistry returned a different registry")
	}

	// A second call must hand back the same registry instead of
	// re-registering the runtime collectors.
	if again := InitRegistry(); again != reg {
		t.Error("InitRegistry is not idempotent")
	}

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Handler after init returned %d, want %d", rec.Code, http.StatusOK)
	}
	if body := rec.Body.String(); !strings.Contains(body, "go_goroutines") {
		t.Error("Expected runtime collector metrics in scrape output")
	}
}
