// Package health runs one-shot dependency probes.
//
// Each registered check runs in its own goroutine with its own timeout. A
// check is retried until it passes or its failure threshold is reached, so a
// single dropped connection does not fail the whole probe.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// CheckFunc is a health check function. It should return nil if the checked
// component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

type checkConfig struct {
	name             string
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
}

// run executes the check until it passes or fails failureThreshold times in
// a row, waiting interval between attempts.
func (c *checkConfig) run(ctx context.Context, interval time.Duration) error {
	var err error
	for attempt := 1; attempt <= c.failureThreshold; attempt++ {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = c.check(checkCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == c.failureThreshold {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), err.Error())
		case <-time.After(interval):
		}
	}
	return err
}

// Health holds the registered dependency checks.
type Health struct {
	mu       sync.Mutex
	checks   []*checkConfig
	interval time.Duration
}

// New creates a Health that waits interval between failed attempts.
func New(interval time.Duration) *Health {
	return &Health{interval: interval}
}

// AddCheck registers a check that is attempted up to failureThreshold times.
func (h *Health) AddCheck(name string, timeout time.Duration, failureThreshold int, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if failureThreshold < 1 {
		failureThreshold = 1
	}
	h.checks = append(h.checks, &checkConfig{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: failureThreshold,
	})
}

// Report is the outcome of Run.
type Report struct {
	// Failures maps check name to the last error message.
	Failures map[string]string
	// Passed lists the names of healthy checks, sorted.
	Passed []string
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	return len(r.Failures) == 0
}

// Err returns nil when healthy, or an error naming the failed checks.
func (r Report) Err() error {
	if r.Healthy() {
		return nil
	}
	names := make([]string, 0, len(r.Failures))
	for name := range r.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return errors.Errorf("unhealthy: %v", names)
}

// Encode writes the report as {"status": "ok"|"unhealthy", "checks": {...}}.
func (r Report) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("status")
	if r.Healthy() {
		e.Str("ok")
	} else {
		e.Str("unhealthy")
	}

	checks := make(map[string]string, len(r.Passed)+len(r.Failures))
	for _, name := range r.Passed {
		checks[name] = "ok"
	}
	for name, msg := range r.Failures {
		checks[name] = msg
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	e.FieldStart("checks")
	e.ObjStart()
	for _, name := range names {
		e.FieldStart(name)
		e.Str(checks[name])
	}
	e.ObjEnd()
	e.ObjEnd()
}

// Run executes all registered checks concurrently and waits for them.
func (h *Health) Run(ctx context.Context) Report {
	h.mu.Lock()
	checks := make([]*checkConfig, len(h.checks))
	copy(checks, h.checks)
	h.mu.Unlock()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report = Report{Failures: make(map[string]string)}
	)
	for _, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.run(ctx, h.interval)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures[c.name] = err.Error()
				return
			}
			report.Passed = append(report.Passed, c.name)
		}()
	}
	wg.Wait()

	sort.Strings(report.Passed)
	return report
}
