package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

const defaultProbeTimeout = 2 * time.Second

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
	critical  bool
}

// HealthReport aggregates probe results.
type HealthReport struct {
	Status ProbeStatus   `json:"status"`
	Checks []ProbeResult `json:"checks"`
}

// FirstCriticalFailure returns the first failed probe whose dependency the
// service cannot run without.
func (r HealthReport) FirstCriticalFailure() (ProbeResult, bool) {
	for _, result := range r.Checks {
		if result.critical && result.Status != StatusUp {
			return result, true
		}
	}
	return ProbeResult{}, false
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type check struct {
	name     string
	critical bool
	ping     func(ctx context.Context) error
}

// Checker runs registered dependency probes. A failing critical probe marks
// the report down; any other failure only degrades it.
type Checker struct {
	timeout time.Duration
	checks  []check
}

// NewChecker builds a checker whose probes are bounded by timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Checker{timeout: timeout}
}

// Register adds a probe. Nil pingers are ignored.
func (c *Checker) Register(name string, critical bool, p Pinger) {
	if name == "" || p == nil {
		return
	}
	c.checks = append(c.checks, check{name: name, critical: critical, ping: p.Ping})
}

// Evaluate runs every probe in registration order.
func (c *Checker) Evaluate(ctx context.Context) HealthReport {
	report := HealthReport{
		Status: StatusUp,
		Checks: make([]ProbeResult, 0, len(c.checks)),
	}

	for _, chk := range c.checks {
		result := c.run(ctx, chk)
		report.Checks = append(report.Checks, result)

		switch {
		case result.Status == StatusUp:
		case chk.critical && result.Status == StatusDown:
			report.Status = StatusDown
		case report.Status != StatusDown:
			report.Status = StatusDegraded
		}
	}
	return report
}

func (c *Checker) run(ctx context.Context, chk check) (result ProbeResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = ResultFromError(chk.name, fmt.Errorf("panic: %v", rec), time.Since(start))
		}
		result.critical = chk.critical
	}()

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return ResultFromError(chk.name, chk.ping(probeCtx), time.Since(start))
}

// ResultFromError converts a probe error into a ProbeResult. Timeouts degrade
// rather than fail.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}

	return ProbeResult{
		Component: component,
		Status:    status,
		Details:   err.Error(),
		Duration:  duration,
	}
}
