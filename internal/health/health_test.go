package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/dmmcquay/leelawatcher/internal/archive"
	"github.com/dmmcquay/leelawatcher/internal/config"
	"github.com/dmmcquay/leelawatcher/internal/harness"
	"github.com/dmmcquay/leelawatcher/internal/logging"
)

func newTestChecker() *Checker {
	return NewChecker(logging.NewNopLogger(), "1.0.0", "abc123")
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name           string
		checks         map[string]error
		optional       map[string]error
		expectedStatus Status
		expectedComps  int
	}{
		{
			name:           "no checks",
			expectedStatus: StatusHealthy,
		},
		{
			name:           "all healthy",
			checks:         map[string]error{"harness": nil, "parser": nil},
			optional:       map[string]error{"archive": nil},
			expectedStatus: StatusHealthy,
			expectedComps:  3,
		},
		{
			name:           "harness down",
			checks:         map[string]error{"harness": errors.New("harness not running"), "parser": nil},
			expectedStatus: StatusUnhealthy,
			expectedComps:  2,
		},
		{
			name:           "archive down degrades",
			checks:         map[string]error{"harness": nil},
			optional:       map[string]error{"archive": errors.New("closed")},
			expectedStatus: StatusDegraded,
			expectedComps:  2,
		},
		{
			name:           "unhealthy wins over degraded",
			checks:         map[string]error{"harness": errors.New("exited")},
			optional:       map[string]error{"archive": errors.New("closed")},
			expectedStatus: StatusUnhealthy,
			expectedComps:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newTestChecker()
			for name, err := range tt.checks {
				checkErr := err
				checker.RegisterCheck(name, func(ctx context.Context) error { return checkErr })
			}
			for name, err := range tt.optional {
				checkErr := err
				checker.RegisterOptionalCheck(name, func(ctx context.Context) error { return checkErr })
			}

			response := checker.CheckHealth(context.Background())

			if response.Status != tt.expectedStatus {
				t.Errorf("Expected status %s, got %s", tt.expectedStatus, response.Status)
			}
			if len(response.Components) != tt.expectedComps {
				t.Fatalf("Expected %d components, got %d", tt.expectedComps, len(response.Components))
			}
			for i := 1; i < len(response.Components); i++ {
				if response.Components[i-1].Name > response.Components[i].Name {
					t.Errorf("Components not sorted: %v", response.Components)
				}
			}
			for _, comp := range response.Components {
				if err, ok := tt.optional[comp.Name]; ok && err != nil && comp.Status != StatusDegraded {
					t.Errorf("Expected optional component %s to be degraded, got %s", comp.Name, comp.Status)
				}
				if err, ok := tt.checks[comp.Name]; ok && err != nil && comp.Status != StatusUnhealthy {
					t.Errorf("Expected component %s to be unhealthy, got %s", comp.Name, comp.Status)
				}
			}
		})
	}
}

func TestCheckHealthTimeout(t *testing.T) {
	checker := newTestChecker()

	checker.RegisterCheck("slow", func(ctx context.Context) error {
		select {
		case <-time.After(10 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	response := checker.CheckHealth(ctx)
	if duration := time.Since(start); duration > 6*time.Second {
		t.Errorf("Check took too long: %v", duration)
	}

	if len(response.Components) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(response.Components))
	}
	if response.Components[0].Status != StatusUnhealthy {
		t.Error("Expected component to be unhealthy due to timeout")
	}
}

func TestLivenessHandler(t *testing.T) {
	checker := newTestChecker()
	checker.RegisterCheck("harness", func(ctx context.Context) error { return errors.New("down") })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	checker.LivenessHandler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response Response
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
	if response.Version != "1.0.0" || response.GitCommit != "abc123" {
		t.Errorf("Unexpected build info %s %s", response.Version, response.GitCommit)
	}
}

func startHarness(t *testing.T) *harness.Process {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	proc := harness.NewProcess(&config.HarnessConfig{Command: sh, Args: []string{"-c", "exec sleep 30"}}, nil, nil)
	out, err := proc.Start(context.Background())
	if err != nil {
		t.Fatalf("Failed to start harness: %v", err)
	}
	t.Cleanup(func() {
		proc.Stop()
		out.Close()
	})
	return proc
}

func component(t *testing.T, response Response, name string) Component {
	t.Helper()
	for _, c := range response.Components {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("No component %s in %v", name, response.Components)
	return Component{}
}

func TestWatcherChecks(t *testing.T) {
	proc := startHarness(t)
	store, err := archive.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}

	checker := newTestChecker()
	checker.RegisterCheck("harness", HarnessCheck(proc))
	checker.RegisterOptionalCheck("archive", ArchiveCheck(store))

	response := checker.CheckHealth(context.Background())
	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy with a running harness, got %s: %v", response.Status, response.Components)
	}

	// A closed archive only degrades the watcher.
	store.Close()
	response = checker.CheckHealth(context.Background())
	if response.Status != StatusDegraded {
		t.Errorf("Expected degraded, got %s", response.Status)
	}
	if c := component(t, response, "archive"); !strings.HasPrefix(c.Message, "archive unreadable") {
		t.Errorf("Unexpected archive message %q", c.Message)
	}

	// A stopped harness makes it unhealthy.
	if err := proc.Stop(); err != nil {
		t.Fatalf("Failed to stop harness: %v", err)
	}
	response = checker.CheckHealth(context.Background())
	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", response.Status)
	}
	if c := component(t, response, "harness"); c.Status != StatusUnhealthy || c.Message == "" {
		t.Errorf("Unexpected harness component %+v", c)
	}
}

type exitedHarness struct{ err error }

func (h exitedHarness) IsRunning() bool { return false }
func (h exitedHarness) Err() error      { return h.err }

func TestHarnessCheck_ExitError(t *testing.T) {
	boom := errors.New("exit status 3")
	err := HarnessCheck(exitedHarness{boom})(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Expected the exit error to be wrapped, got %v", err)
	}
	if err := HarnessCheck(exitedHarness{})(context.Background()); err == nil || err.Error() != "harness is not running" {
		t.Errorf("Unexpected error %v", err)
	}
}

func TestReadinessHandler(t *testing.T) {
	proc := startHarness(t)
	store, err := archive.OpenInMemory()
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}

	checker := newTestChecker()
	checker.RegisterCheck("harness", HarnessCheck(proc))
	checker.RegisterOptionalCheck("archive", ArchiveCheck(store))

	ready := func() int {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()
		checker.ReadinessHandler()(rec, req)
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %s", ct)
		}
		return rec.Code
	}

	if code := ready(); code != http.StatusOK {
		t.Errorf("Expected 200 while the harness runs, got %d", code)
	}
	store.Close()
	if code := ready(); code != http.StatusOK {
		t.Errorf("Expected a degraded archive to stay ready, got %d", code)
	}
	proc.Stop()
	if code := ready(); code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 once the harness stopped, got %d", code)
	}
}

func TestConcurrentHealthChecks(t *testing.T) {
	checker := newTestChecker()

	for i := 0; i < 5; i++ {
		checker.RegisterCheck(string(rune('a'+i)), func(ctx context.Context) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		})
	}

	start := time.Now()
	response := checker.CheckHealth(context.Background())
	if duration := time.Since(start); duration > 200*time.Millisecond {
		t.Errorf("Checks took too long, might not be parallel: %v", duration)
	}

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}
