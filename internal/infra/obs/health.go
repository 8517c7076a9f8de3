package obs

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const defaultReadyTimeout = 2 * time.Second

// Check is one named dependency that /readyz must reach.
type Check struct {
	Name string
	Run  func(context.Context) error
}

// HealthHandlers serves liveness and readiness. Readiness runs every check
// concurrently and reports each dependency by name.
type HealthHandlers struct {
	Checks  []Check
	Timeout time.Duration
}

// Readiness is the /readyz body. Checks maps a dependency name to "ok" or
// the error it returned.
type Readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (r Readiness) Ready() bool { return r.Status == "ready" }

func (h HealthHandlers) Livez(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	report := h.Report(c.Request.Context())
	if !report.Ready() {
		c.JSON(http.StatusServiceUnavailable, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h HealthHandlers) Report(ctx context.Context) Readiness {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]string, len(h.Checks))
	var g errgroup.Group
	for i, check := range h.Checks {
		g.Go(func() error {
			results[i] = "ok"
			if err := check.Run(ctx); err != nil {
				results[i] = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Readiness{Status: "ready"}
	if len(h.Checks) > 0 {
		report.Checks = make(map[string]string, len(h.Checks))
	}
	for i, check := range h.Checks {
		report.Checks[check.Name] = results[i]
		if results[i] != "ok" {
			report.Status = "not ready"
		}
	}
	return report
}
