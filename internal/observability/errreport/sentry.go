// Package errreport forwards recovered faults to Sentry.
package errreport

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter captures errors with extra context. The zero value and a nil
// *Reporter drop everything.
type Reporter struct {
	hub *sentry.Hub
}

// New initialises Sentry for dsn. An empty dsn yields a disabled reporter.
func New(dsn, environment, release string) (*Reporter, error) {
	if dsn == "" {
		return &Reporter{}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}

	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// NewWithHub wraps an existing hub; tests pass one with a recording transport.
func NewWithHub(hub *sentry.Hub) *Reporter {
	return &Reporter{hub: hub}
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

func (r *Reporter) Capture(err error, extras map[string]any) {
	if !r.Enabled() || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		r.hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events.
func (r *Reporter) Flush(timeout time.Duration) {
	if r.Enabled() {
		r.hub.Flush(timeout)
	}
}
