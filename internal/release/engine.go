package release

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/releasedesk/internal/activity"
	"github.com/kingrea/releasedesk/internal/order"
)

var (
	// ErrRunInProgress is returned when a run is requested while another holds the latch.
	ErrRunInProgress = errors.New("release: a run is already in progress")
	// ErrConnect is returned when the backend session could not be opened.
	ErrConnect = errors.New("release: backend connection failed")
)

const (
	defaultStartDelay  = 500 * time.Millisecond
	defaultSettleDelay = 300 * time.Millisecond
)

// Result describes how a run ended.
type Result string

const (
	ResultCompleted     Result = "completed"
	ResultEmpty         Result = "empty"
	ResultConnectFailed Result = "connect_failed"
	ResultCancelled     Result = "cancelled"
)

// Request starts a run. An empty Mode means identical batches.
type Request struct {
	Mode Mode
}

// Summary reports one finished run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Mode       Mode      `json:"mode"`
	Result     Result    `json:"result"`
	Targets    int       `json:"targets"`
	Released   int       `json:"released"`
	Failed     int       `json:"failed"`
	Empty      bool      `json:"empty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Err        error     `json:"-"`
}

// Handle tracks a run started by Start.
type Handle struct {
	RunID   string
	Targets int
	// Done yields the summary once the run settles, then closes.
	Done <-chan Summary
}

// StepResult reports how one order settled.
type StepResult struct {
	OrderID string
	Status  order.Status
	Outcome Outcome
	Err     error
}

// Engine runs release workflows against the shared store, selection and log.
type Engine struct {
	store     *order.Store
	selection *order.Selection
	log       *activity.Log
	backend   Backend
	recorder  Recorder
	logger    *zap.SugaredLogger
	clock     func() time.Time
	sleep     func(context.Context, time.Duration) error

	startDelay  time.Duration
	settleDelay time.Duration

	latch   *latch
	mu      sync.RWMutex
	lastRun *Summary
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithSleep replaces the wait used for the start and settle delays.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Engine) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithTiming overrides the pause before connecting and the pause after the last order.
func WithTiming(start, settle time.Duration) Option {
	return func(e *Engine) {
		e.startDelay = start
		e.settleDelay = settle
	}
}

// WithRecorder attaches a run observer such as the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine wires an engine to its collaborators. The engine never owns them.
func NewEngine(store *order.Store, selection *order.Selection, log *activity.Log, backend Backend, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("release engine: order store is required")
	}
	if selection == nil {
		return nil, fmt.Errorf("release engine: selection is required")
	}
	if log == nil {
		return nil, fmt.Errorf("release engine: activity log is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("release engine: backend is required")
	}
	e := &Engine{
		store:       store,
		selection:   selection,
		log:         log,
		backend:     backend,
		recorder:    nopRecorder{},
		logger:      zap.NewNop().Sugar(),
		clock:       time.Now,
		sleep:       sleepContext,
		startDelay:  defaultStartDelay,
		settleDelay: defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.latch = newLatch(e.logger)
	return e, nil
}

// BackendName returns the name of the configured backend.
func (e *Engine) BackendName() string {
	return e.backend.Name()
}

// State reports whether a run currently holds the latch.
func (e *Engine) State() string {
	return e.latch.state()
}

// Running is shorthand for State() == StateRunning.
func (e *Engine) Running() bool {
	return e.State() == StateRunning
}

// LastRun returns the summary of the most recent finished run.
func (e *Engine) LastRun() (Summary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastRun == nil {
		return Summary{}, false
	}
	return *e.lastRun, true
}

// Resolve computes the targets from the current store and selection.
func (e *Engine) Resolve() []order.Order {
	return Resolve(e.store.Snapshot(), e.selection.IDs())
}

// Step drives one order through processing to released or failed. The backend
// call is not interrupted by cancellation of ctx, so the order always settles.
func (e *Engine) Step(ctx context.Context, o order.Order) StepResult {
	result := StepResult{OrderID: o.ID, Status: o.Status}
	if err := e.store.Transition(o.ID, order.StatusProcessing); err != nil {
		e.logger.Warnw("order skipped", "order", o.ID, "error", err)
		result.Err = err
		return result
	}
	o.Status = order.StatusProcessing
	e.log.Info("Processing order %s - Lot: %s...", o.Product, o.Lot)

	outcome := e.backend.Release(context.WithoutCancel(ctx), o)
	final := order.StatusFailed
	if outcome.Released {
		final = order.StatusReleased
	}
	if err := e.store.Transition(o.ID, final); err != nil {
		e.logger.Warnw("order could not be settled", "order", o.ID, "status", final, "error", err)
		result.Err = err
	}
	result.Status = final
	result.Outcome = outcome

	if outcome.Released {
		e.log.Success("Order %s released successfully in %s.", o.Product, e.backend.Name())
	} else {
		reason := outcome.Reason
		if reason == "" {
			reason = "unknown error"
		}
		e.log.Error("Error releasing order %s: %s.", o.Product, reason)
	}
	e.recorder.OrderSettled(final)
	return result
}

// Start acquires the latch, resolves the targets and runs them on a new
// goroutine.
func (e *Engine) Start(ctx context.Context, req Request) (Handle, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeIdenticalBatches
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return Handle{}, err
	}
	if err := e.latch.acquire(); err != nil {
		return Handle{}, err
	}
	targets := e.Resolve()
	summary := Summary{
		RunID:     uuid.NewString(),
		Mode:      mode,
		Targets:   len(targets),
		StartedAt: e.clock(),
	}
	e.recorder.RunStarted(mode)
	e.logger.Infow("release run started", "run", summary.RunID, "mode", mode, "targets", len(targets))

	done := make(chan Summary, 1)
	go func() {
		defer close(done)
		done <- e.finish(e.execute(ctx, summary, targets))
	}()
	return Handle{RunID: summary.RunID, Targets: summary.Targets, Done: done}, nil
}

// Run starts a run and waits for it to settle.
func (e *Engine) Run(ctx context.Context, req Request) (Summary, error) {
	handle, err := e.Start(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	summary := <-handle.Done
	return summary, summary.Err
}

func (e *Engine) execute(ctx context.Context, summary Summary, targets []order.Order) Summary {
	if len(targets) == 0 {
		e.log.Warn("No pending orders to release.")
		summary.Empty = true
		summary.Result = ResultEmpty
		return summary
	}

	e.log.Info("Starting release process...")
	e.log.Info("Selected configuration: %s", summary.Mode.Label())
	e.log.Info("Orders to process: %d", len(targets))

	_ = e.sleep(ctx, e.startDelay)
	if ctx.Err() != nil {
		return e.cancelled(ctx, summary)
	}

	name := e.backend.Name()
	e.log.Info("Connecting to %s...", name)
	if err := e.backend.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return e.cancelled(ctx, summary)
		}
		e.log.Error("Connection to %s failed: %v", name, err)
		summary.Result = ResultConnectFailed
		summary.Err = fmt.Errorf("%w: %w", ErrConnect, err)
		return summary
	}
	e.log.Success("%s connection established.", name)

	for _, target := range targets {
		if ctx.Err() != nil {
			return e.cancelled(ctx, summary)
		}
		if current, ok := e.store.Get(target.ID); ok {
			target = current
		}
		step := e.Step(ctx, target)
		if step.Err != nil || !step.Status.IsTerminal() {
			continue
		}
		switch step.Status {
		case order.StatusReleased:
			summary.Released++
		case order.StatusFailed:
			summary.Failed++
		}
	}

	_ = e.sleep(context.WithoutCancel(ctx), e.settleDelay)
	e.log.Success("Release process completed.")
	e.selection.Clear()
	summary.Result = ResultCompleted
	return summary
}

func (e *Engine) cancelled(ctx context.Context, summary Summary) Summary {
	e.log.Warn("Release run cancelled.")
	summary.Result = ResultCancelled
	summary.Err = ctx.Err()
	return summary
}

// finish records the summary before the latch opens so an idle engine always
// exposes the run that just ended.
func (e *Engine) finish(summary Summary) Summary {
	summary.FinishedAt = e.clock()
	e.mu.Lock()
	stored := summary
	e.lastRun = &stored
	e.mu.Unlock()

	e.recorder.RunFinished(summary)
	e.logger.Infow("release run finished",
		"run", summary.RunID,
		"result", summary.Result,
		"released", summary.Released,
		"failed", summary.Failed,
	)
	e.latch.release()
	return summary
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
