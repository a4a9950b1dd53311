package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quadrabot/quadra/pkg/notification"
	"github.com/quadrabot/quadra/pkg/runner"
	"github.com/quadrabot/quadra/pkg/schedule"
	"github.com/quadrabot/quadra/pkg/storage"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	manager := schedule.NewManager(store)
	worker := schedule.NewWorker(manager, runner.NewSimRunner(), notification.NewService(), schedule.DefaultWorkerConfig())
	subs := notification.NewSubscriptionStore(filepath.Join(t.TempDir(), "subscriptions.json"))
	return New(manager, worker, subs, false)
}

func TestHealth(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.GetEcho().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("Expected ok status in body, got %s", rec.Body.String())
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	srv := testServer(t)

	body := `{"endpoint": "https://push.example.com/abc", "keys": {"p256dh": "k", "auth": "a"}}`
	req := httptest.NewRequest(http.MethodPost, "/notifications/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.GetEcho().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/notifications/subscriptions", strings.NewReader(`{"endpoint": "https://push.example.com/abc"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.GetEcho().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubscriptionValidation(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/notifications/subscriptions", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.GetEcho().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for missing endpoint, got %d", rec.Code)
	}
}

func TestScheduleRoutesRegistered(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
	rec := httptest.NewRecorder()
	srv.GetEcho().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 listing schedules, got %d: %s", rec.Code, rec.Body.String())
	}
}
