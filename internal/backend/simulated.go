package backend

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kingrea/releasedesk/internal/order"
	"github.com/kingrea/releasedesk/internal/release"
)

// FailureReason is reported for every simulated failure.
const FailureReason = "timeout"

// SimulatedConfig tunes the simulated endpoint.
type SimulatedConfig struct {
	Name           string
	HandshakeDelay time.Duration
	ProcessBase    time.Duration
	ProcessJitter  time.Duration
	SuccessRate    float64
}

// Simulated mimics an RFC endpoint: a fixed handshake, a randomized
// processing time and a configurable success probability.
type Simulated struct {
	cfg   SimulatedConfig
	sleep func(context.Context, time.Duration) error

	mu  sync.Mutex
	rng *rand.Rand
}

// SimulatedOption customizes a Simulated backend.
type SimulatedOption func(*Simulated)

// WithRand injects the random source used for delays and outcomes.
func WithRand(rng *rand.Rand) SimulatedOption {
	return func(s *Simulated) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithSleep replaces the wait used for handshake and processing delays.
func WithSleep(sleep func(context.Context, time.Duration) error) SimulatedOption {
	return func(s *Simulated) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewSimulated returns a simulated backend.
func NewSimulated(cfg SimulatedConfig, opts ...SimulatedOption) *Simulated {
	if cfg.Name == "" {
		cfg.Name = "SAP RFC"
	}
	s := &Simulated{
		cfg:   cfg,
		sleep: sleepContext,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) Name() string { return s.cfg.Name }

// Connect waits out the handshake. It only fails when ctx ends first.
func (s *Simulated) Connect(ctx context.Context) error {
	return s.sleep(ctx, s.cfg.HandshakeDelay)
}

// Release waits base+jitter and then draws the outcome.
func (s *Simulated) Release(ctx context.Context, _ order.Order) release.Outcome {
	delay, ok := s.draw()
	_ = s.sleep(ctx, delay)
	if ok {
		return release.Outcome{Released: true}
	}
	return release.Outcome{Reason: FailureReason}
}

func (s *Simulated) draw() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delay := s.cfg.ProcessBase
	if s.cfg.ProcessJitter > 0 {
		delay += time.Duration(s.rng.Int64N(int64(s.cfg.ProcessJitter)))
	}
	return delay, s.rng.Float64() < s.cfg.SuccessRate
}
