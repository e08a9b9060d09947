package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dmmcquay/leelawatcher/internal/logging"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the component is working but degraded.
	StatusDegraded Status = "degraded"
)

// CheckTimeout bounds each check.
const CheckTimeout = 5 * time.Second

// Check represents a health check function.
type Check func(ctx context.Context) error

type registeredCheck struct {
	check    Check
	optional bool
}

// Component represents a system component with health status.
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Response represents the health check response.
type Response struct {
	Status     Status      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components,omitempty"`
	Version    string      `json:"version,omitempty"`
	GitCommit  string      `json:"git_commit,omitempty"`
}

// Checker manages health checks for the watcher.
type Checker struct {
	logger    logging.ContextLogger
	checks    map[string]registeredCheck
	mu        sync.RWMutex
	version   string
	gitCommit string
}

// NewChecker creates a new health checker.
func NewChecker(logger logging.ContextLogger, version, gitCommit string) *Checker {
	return &Checker{
		logger:    logger,
		checks:    make(map[string]registeredCheck),
		version:   version,
		gitCommit: gitCommit,
	}
}

// RegisterCheck registers a check whose failure makes the watcher unhealthy.
func (c *Checker) RegisterCheck(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registeredCheck{check: check}
}

// RegisterOptionalCheck registers a check whose failure only degrades the
// watcher, e.g. the game archive.
func (c *Checker) RegisterOptionalCheck(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registeredCheck{check: check, optional: true}
}

// CheckHealth runs all registered checks in parallel. Components are sorted
// by name.
func (c *Checker) CheckHealth(ctx context.Context) Response {
	c.mu.RLock()
	defer c.mu.RUnlock()

	response := Response{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		GitCommit:  c.gitCommit,
		Components: make([]Component, 0, len(c.checks)),
	}

	if len(c.checks) == 0 {
		return response
	}

	results := make(chan Component, len(c.checks))
	var wg sync.WaitGroup

	for name, rc := range c.checks {
		wg.Add(1)
		go func(name string, rc registeredCheck) {
			defer wg.Done()

			component := Component{
				Name:        name,
				Status:      StatusHealthy,
				LastChecked: time.Now().UTC(),
			}

			checkCtx, cancel := context.WithTimeout(ctx, CheckTimeout)
			defer cancel()

			if err := rc.check(checkCtx); err != nil {
				component.Status = StatusUnhealthy
				if rc.optional {
					component.Status = StatusDegraded
				}
				component.Message = err.Error()
				c.logger.WithField("check", name).Warn("Health check failed", "error", err.Error())
			}

			results <- component
		}(name, rc)
	}

	wg.Wait()
	close(results)

	for component := range results {
		response.Components = append(response.Components, component)
		switch component.Status {
		case StatusUnhealthy:
			response.Status = StatusUnhealthy
		case StatusDegraded:
			if response.Status == StatusHealthy {
				response.Status = StatusDegraded
			}
		}
	}
	sort.Slice(response.Components, func(i, j int) bool {
		return response.Components[i].Name < response.Components[j].Name
	})

	return response
}

// LivenessHandler returns an HTTP handler for liveness checks.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := Response{
			Status:    StatusHealthy,
			Timestamp: time.Now().UTC(),
			Version:   c.version,
			GitCommit: c.gitCommit,
		}
		c.write(w, r, http.StatusOK, response)
	}
}

// ReadinessHandler returns an HTTP handler for readiness checks. Degraded
// still counts as ready.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.logger.WithContext(r.Context()).Debug("Performing readiness check")

		response := c.CheckHealth(r.Context())

		statusCode := http.StatusOK
		if response.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.write(w, r, statusCode, response)
	}
}

func (c *Checker) write(w http.ResponseWriter, r *http.Request, status int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		c.logger.WithContext(r.Context()).Error("Failed to encode health response", "error", err.Error())
	}
}
