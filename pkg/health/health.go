package health

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"talking-pet/companion/pkg/clock"
	"talking-pet/companion/pkg/logger"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func() (Status, string, error)

// Checker runs registered checks on demand. Results are reused until they
// are older than the check period.
type Checker struct {
	clock       clock.Clock
	checkPeriod time.Duration
	log         *logger.Logger

	mutex      sync.Mutex
	checks     map[string]Check
	critical   map[string]bool
	components map[string]*Component
	lastRun    time.Time
}

// NewChecker creates a new health checker
func NewChecker(c clock.Clock, log *logger.Logger, checkPeriod time.Duration) *Checker {
	checker := &Checker{
		clock:       c,
		checkPeriod: checkPeriod,
		log:         log.Named("health"),
		checks:      make(map[string]Check),
		critical:    make(map[string]bool),
		components:  make(map[string]*Component),
	}

	checker.RegisterCheck("self", false, func() (Status, string, error) {
		return StatusUp, "Health checker is running", nil
	})

	return checker
}

// RegisterCheck registers a new health check. A critical component that is
// down makes the whole system unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = check
	c.critical[name] = critical
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Description: "Not checked yet",
	}
	c.lastRun = time.Time{}
}

// RunChecks executes all registered health checks
func (c *Checker) RunChecks() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.runLocked()
}

func (c *Checker) runLocked() {
	now := c.clock.Now()
	for name, check := range c.checks {
		status, description, err := check()

		component := c.components[name]
		component.Status = status
		component.Description = description
		component.LastChecked = now

		if err != nil {
			component.Error = err.Error()
			c.log.Warn("Health check failed",
				"component", name,
				"status", string(status),
				"error", err.Error(),
			)
		} else {
			component.Error = ""
		}
	}
	c.lastRun = now
}

// GetStatus returns the current health status, re-running stale checks
func (c *Checker) GetStatus() (map[string]*Component, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.lastRun.IsZero() || c.clock.Now().Sub(c.lastRun) >= c.checkPeriod {
		c.runLocked()
	}

	healthy := true
	result := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		componentCopy := *v
		result[k] = &componentCopy
		if v.Status == StatusDown && c.critical[k] {
			healthy = false
		}
	}

	return result, healthy
}

// Handler returns a gin handler reporting component health
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		components, healthy := c.GetStatus()

		status, code := "ok", http.StatusOK
		if !healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		ctx.JSON(code, gin.H{
			"status":     status,
			"timestamp":  c.clock.Now(),
			"components": components,
		})
	}
}

// RegisterAPICheck registers a reachability check against an HTTP endpoint
func (c *Checker) RegisterAPICheck(name, endpoint string, client *http.Client, critical bool) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	c.RegisterCheck(name, critical, func() (Status, string, error) {
		start := time.Now()
		resp, err := client.Get(endpoint)
		elapsed := time.Since(start)

		if err != nil {
			return StatusDown, "API request failed", err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return StatusDegraded, fmt.Sprintf("API returned status %d", resp.StatusCode),
				fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return StatusUp, fmt.Sprintf("API is responding (latency: %s)", elapsed.Round(time.Millisecond)), nil
	})
}
