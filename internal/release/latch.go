package release

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

const (
	StateIdle    = "idle"
	StateRunning = "running"

	eventStart  = "start"
	eventFinish = "finish"
)

// latch is the run-level state machine: idle -> running -> idle.
type latch struct {
	mu      sync.Mutex
	machine *fsm.FSM
}

func newLatch(logger *zap.SugaredLogger) *latch {
	return &latch{
		machine: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventStart, Src: []string{StateIdle}, Dst: StateRunning},
				{Name: eventFinish, Src: []string{StateRunning}, Dst: StateIdle},
			},
			fsm.Callbacks{
				"enter_state": func(_ context.Context, e *fsm.Event) {
					logger.Debugf("run latch %s -> %s", e.Src, e.Dst)
				},
			},
		),
	}
}

// acquire moves the latch to running or reports that a run holds it.
func (l *latch) acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.machine.Can(eventStart) {
		return ErrRunInProgress
	}
	if err := l.machine.Event(context.Background(), eventStart); err != nil {
		return fmt.Errorf("release: acquire latch: %w", err)
	}
	return nil
}

// release returns the latch to idle. It is a no-op when already idle.
func (l *latch) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.machine.Can(eventFinish) {
		_ = l.machine.Event(context.Background(), eventFinish)
	}
}

func (l *latch) state() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.machine.Current()
}
