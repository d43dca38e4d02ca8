package release

import (
	"context"

	"github.com/kingrea/releasedesk/internal/order"
)

// Outcome is the result of releasing one order. A failed release is an
// outcome, not an error: it settles the order as failed and the run goes on.
type Outcome struct {
	Released bool
	Reason   string
}

// Backend is the production system orders are released into.
type Backend interface {
	// Name is shown in log messages, for example "SAP RFC".
	Name() string
	// Connect opens the session a run uses. It is called once per run.
	Connect(ctx context.Context) error
	// Release submits one order and reports how it settled.
	Release(ctx context.Context, o order.Order) Outcome
}

// Recorder observes runs. The metrics package provides the Prometheus one.
type Recorder interface {
	RunStarted(mode Mode)
	OrderSettled(status order.Status)
	RunFinished(summary Summary)
}

type nopRecorder struct{}

func (nopRecorder) RunStarted(Mode)           {}
func (nopRecorder) OrderSettled(order.Status) {}
func (nopRecorder) RunFinished(Summary)       {}
