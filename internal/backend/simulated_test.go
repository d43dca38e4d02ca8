package backend

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/releasedesk/internal/config"
	"github.com/kingrea/releasedesk/internal/order"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestSimulatedHandshakeWaitsConfiguredDelay(t *testing.T) {
	rec := &sleepRecorder{}
	sim := NewSimulated(SimulatedConfig{HandshakeDelay: 800 * time.Millisecond}, WithSleep(rec.sleep))
	require.NoError(t, sim.Connect(context.Background()))
	assert.Equal(t, []time.Duration{800 * time.Millisecond}, rec.waits)
	assert.Equal(t, "SAP RFC", sim.Name())
}

func TestSimulatedProcessingDelayStaysInRange(t *testing.T) {
	rec := &sleepRecorder{}
	sim := NewSimulated(SimulatedConfig{
		ProcessBase:   600 * time.Millisecond,
		ProcessJitter: 400 * time.Millisecond,
		SuccessRate:   1,
	}, WithSleep(rec.sleep), WithRand(rand.New(rand.NewPCG(1, 2))))

	for i := 0; i < 50; i++ {
		outcome := sim.Release(context.Background(), order.Order{ID: "ORD-001"})
		require.True(t, outcome.Released)
	}
	require.Len(t, rec.waits, 50)
	for _, d := range rec.waits {
		assert.GreaterOrEqual(t, d, 600*time.Millisecond)
		assert.Less(t, d, time.Second)
	}
}

func TestSimulatedSuccessRateBounds(t *testing.T) {
	rec := &sleepRecorder{}
	never := NewSimulated(SimulatedConfig{SuccessRate: 0}, WithSleep(rec.sleep))
	for i := 0; i < 20; i++ {
		outcome := never.Release(context.Background(), order.Order{})
		assert.False(t, outcome.Released)
		assert.Equal(t, FailureReason, outcome.Reason)
	}
}

func TestSimulatedSuccessRateIsRoughlyHonoured(t *testing.T) {
	rec := &sleepRecorder{}
	sim := NewSimulated(SimulatedConfig{SuccessRate: 0.9}, WithSleep(rec.sleep), WithRand(rand.New(rand.NewPCG(42, 7))))
	released := 0
	const draws = 2000
	for i := 0; i < draws; i++ {
		if sim.Release(context.Background(), order.Order{}).Released {
			released++
		}
	}
	ratio := float64(released) / draws
	assert.InDelta(t, 0.9, ratio, 0.05)
}

func TestSimulatedSameSeedSameOutcomes(t *testing.T) {
	rec := &sleepRecorder{}
	a := NewSimulated(SimulatedConfig{SuccessRate: 0.5}, WithSleep(rec.sleep), WithRand(rand.New(rand.NewPCG(9, 9))))
	b := NewSimulated(SimulatedConfig{SuccessRate: 0.5}, WithSleep(rec.sleep), WithRand(rand.New(rand.NewPCG(9, 9))))
	for i := 0; i < 25; i++ {
		assert.Equal(t, a.Release(context.Background(), order.Order{}), b.Release(context.Background(), order.Order{}))
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{Project: config.DefaultProjectConfig()}
	b, err := FromConfig(cfg)
	require.NoError(t, err)
	sim, ok := b.(*Simulated)
	require.True(t, ok)
	assert.Equal(t, "SAP RFC", sim.Name())
	assert.Equal(t, 800*time.Millisecond, sim.cfg.HandshakeDelay)
	assert.Equal(t, 0.9, sim.cfg.SuccessRate)

	cfg.Project.Backend.Kind = config.BackendHTTP
	cfg.Project.Backend.URL = "http://erp.local:9000"
	b, err = FromConfig(cfg)
	require.NoError(t, err)
	_, ok = b.(*HTTP)
	assert.True(t, ok)

	cfg.Project.Backend.Kind = "grpc"
	_, err = FromConfig(cfg)
	require.Error(t, err)

	_, err = FromConfig(nil)
	require.Error(t, err)
}
