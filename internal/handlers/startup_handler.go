package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// StartupStatus tracks the initialization progress of the server
type StartupStatus struct {
	mu      sync.RWMutex
	ready   bool
	current string
	steps   []StartupStep
}

type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

const (
	StepStore      = "Store connection"
	StepMigrations = "Migrations and indexes"
	StepServices   = "Initializing services"
	StepReady      = "Server ready"
)

// NewStartupStatus creates a tracker with the default initialization steps
func NewStartupStatus() *StartupStatus {
	return &StartupStatus{
		current: "Initializing...",
		steps: []StartupStep{
			{Name: StepStore},
			{Name: StepMigrations},
			{Name: StepServices},
			{Name: StepReady},
		},
	}
}

// CompleteStep marks a step as completed
func (s *StartupStatus) CompleteStep(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.steps {
		if s.steps[i].Name == name {
			s.steps[i].Completed = true
			break
		}
	}
	s.current = name
}

// MarkReady marks the server as fully initialized
func (s *StartupStatus) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.steps {
		s.steps[i].Completed = true
	}
	s.ready = true
	s.current = StepReady
}

// IsReady returns whether the server is fully initialized
func (s *StartupStatus) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *StartupStatus) progress() int {
	completed := 0
	for _, step := range s.steps {
		if step.Completed {
			completed++
		}
	}
	return completed * 100 / len(s.steps)
}

// HealthHandler reports readiness and store reachability
type HealthHandler struct {
	status *StartupStatus
	ping   func(context.Context) error
}

// NewHealthHandler creates a health handler. ping may be nil.
func NewHealthHandler(status *StartupStatus, ping func(context.Context) error) *HealthHandler {
	return &HealthHandler{status: status, ping: ping}
}

// Health returns 200 once the server is ready and the store answers a ping,
// 503 otherwise
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.status.mu.RLock()
	body := map[string]any{
		"ready":    h.status.ready,
		"current":  h.status.current,
		"progress": h.status.progress(),
		"steps":    append([]StartupStep(nil), h.status.steps...),
	}
	ready := h.status.ready
	h.status.mu.RUnlock()

	if !ready {
		body["success"] = false
		body["store"] = "unknown"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}

	body["store"] = "ok"
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			body["success"] = false
			body["store"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}
