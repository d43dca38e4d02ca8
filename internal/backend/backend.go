// Package backend provides the production systems a release run talks to: a
// simulated RFC endpoint for demonstrations and an HTTP client for real ones.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/kingrea/releasedesk/internal/config"
	"github.com/kingrea/releasedesk/internal/release"
)

// FromConfig builds the backend selected in config.yaml.
func FromConfig(cfg *config.Config) (release.Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend: config is required")
	}
	b := cfg.Project.Backend
	switch b.Kind {
	case config.BackendSimulated:
		t := cfg.Project.Release.Timing
		return NewSimulated(SimulatedConfig{
			Name:           b.Name,
			HandshakeDelay: t.HandshakeDelay,
			ProcessBase:    t.ProcessBase,
			ProcessJitter:  t.ProcessJitter,
			SuccessRate:    cfg.SuccessRate(),
		}), nil
	case config.BackendHTTP:
		return NewHTTP(HTTPConfig{
			Name:          b.Name,
			BaseURL:       b.URL,
			Timeout:       b.Timeout,
			RatePerSecond: b.RatePerSecond,
		})
	}
	return nil, fmt.Errorf("backend: unsupported kind %q", b.Kind)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
