package release

import (
	"fmt"
	"strings"
)

// Mode is the batching configuration chosen by the operator. It is reported
// in the run log but does not change which orders are targeted.
type Mode string

const (
	ModeIdenticalBatches   Mode = "identical_batches"
	ModeConsecutiveBatches Mode = "consecutive_batches"
)

// Modes lists the supported modes in display order.
var Modes = []Mode{ModeIdenticalBatches, ModeConsecutiveBatches}

// ParseMode converts a config or request value into a Mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeIdenticalBatches:
		return ModeIdenticalBatches, nil
	case ModeConsecutiveBatches:
		return ModeConsecutiveBatches, nil
	}
	return "", fmt.Errorf("release: unknown mode %q", value)
}

// Label is the human readable name written to the log.
func (m Mode) Label() string {
	switch m {
	case ModeConsecutiveBatches:
		return "Consecutive lots"
	default:
		return "Identical lots"
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeConsecutiveBatches {
		return ModeIdenticalBatches
	}
	return ModeConsecutiveBatches
}

func (m Mode) String() string { return string(m) }
