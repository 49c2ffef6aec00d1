package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const (
	stateNameStarting = "starting"
	stateNameReady    = "ready"
	stateNameDraining = "draining"
	backendDatabase   = "database"
	goroutineCount    = 50
)

func serveReadiness(t *testing.T, hc *Checker) (int, healthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	hc.ReadinessHandler().ServeHTTP(w, req)

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return w.Code, resp
}

func TestStateTransitions(t *testing.T) {
	hc := NewChecker()
	if hc.State() != stateNameStarting || hc.IsReady() {
		t.Fatalf("initial state = %q, want %s and not ready", hc.State(), stateNameStarting)
	}

	hc.SetReady()
	if hc.State() != stateNameReady || !hc.IsReady() {
		t.Fatalf("after SetReady() = %q, want %s", hc.State(), stateNameReady)
	}

	hc.SetDraining()
	if hc.State() != stateNameDraining || hc.IsReady() {
		t.Fatalf("after SetDraining() = %q, want %s", hc.State(), stateNameDraining)
	}
}

func TestLivenessHandler_IgnoresBackend(t *testing.T) {
	hc := NewChecker()
	hc.SetBackend(backendDatabase, func(context.Context) error { return errors.New("down") })

	w := httptest.NewRecorder()
	hc.LivenessHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadinessHandler_StateCodes(t *testing.T) {
	hc := NewChecker()
	hc.SetBackend("memory", nil)

	tests := []struct {
		name       string
		setup      func()
		wantCode   int
		wantStatus string
	}{
		{stateNameStarting, func() { hc.state.Store(stateStarting) }, http.StatusServiceUnavailable, stateNameStarting},
		{stateNameReady, hc.SetReady, http.StatusOK, stateNameReady},
		{stateNameDraining, hc.SetDraining, http.StatusServiceUnavailable, stateNameDraining},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			code, resp := serveReadiness(t, hc)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("body status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Backend != "memory" {
				t.Errorf("backend = %q, want memory", resp.Backend)
			}
		})
	}
}

func TestReadinessHandler_ProbeFailure(t *testing.T) {
	hc := NewChecker()
	hc.SetBackend(backendDatabase, func(context.Context) error { return errors.New("connection refused") })
	hc.SetReady()

	code, resp := serveReadiness(t, hc)
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if resp.Status != "unavailable" {
		t.Errorf("body status = %q, want unavailable", resp.Status)
	}
	if resp.Error != "connection refused" {
		t.Errorf("error = %q, want connection refused", resp.Error)
	}
}

func TestReadinessHandler_ProbeSkippedWhenNotReady(t *testing.T) {
	hc := NewChecker()
	called := false
	hc.SetBackend(backendDatabase, func(context.Context) error {
		called = true
		return nil
	})

	serveReadiness(t, hc)
	if called {
		t.Error("probe ran while starting")
	}
}

func TestCheck_AppliesTimeout(t *testing.T) {
	hc := NewChecker()
	hc.SetBackend(backendDatabase, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		if time.Until(deadline) > probeTimeout {
			return errors.New("deadline too far")
		}
		return nil
	})

	if err := hc.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hc := NewChecker()
	hc.SetBackend(backendDatabase, func(context.Context) error { return nil })

	var wg sync.WaitGroup
	wg.Add(goroutineCount * 3)
	for range goroutineCount {
		go func() {
			defer wg.Done()
			hc.SetReady()
		}()
		go func() {
			defer wg.Done()
			hc.SetBackend(backendDatabase, nil)
		}()
		go func() {
			defer wg.Done()
			_ = hc.Check(context.Background())
			_ = hc.State()
		}()
	}
	wg.Wait()

	if !hc.IsReady() {
		t.Error("IsReady() = false after concurrent SetReady")
	}
}
