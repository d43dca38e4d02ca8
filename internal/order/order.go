// Package order models production orders awaiting release, the ordered store
// that holds them, and the selection set the operator builds in the grid.
package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an order id is not present in the store.
	ErrNotFound = errors.New("order: not found")
	// ErrInvalidTransition is returned for status changes outside the release lifecycle.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrUnknownField is returned when an edit targets a non-descriptive field.
	ErrUnknownField = errors.New("order: unknown field")
	// ErrDuplicateID is returned when inserting an order whose id already exists.
	ErrDuplicateID = errors.New("order: duplicate id")
)

// Status tracks where an order is in the release lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReleased   Status = "released"
	StatusFailed     Status = "failed"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReleased, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether a release run leaves orders in this status.
func (s Status) IsTerminal() bool {
	return s == StatusReleased || s == StatusFailed
}

func (s Status) String() string { return string(s) }

// transitions lists every allowed status change.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusReleased, StatusFailed},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Field names one of the free-form descriptive columns of an order.
type Field string

const (
	FieldProduct     Field = "product"
	FieldDescription Field = "description"
	FieldLot         Field = "lot"
	FieldPreHop      Field = "prehop"
	FieldDescOrder   Field = "desc_order"
	FieldPlant       Field = "plant"
	FieldLine        Field = "line"
	FieldBattery     Field = "battery"
)

// Fields lists the editable columns in grid order.
var Fields = []Field{
	FieldProduct,
	FieldDescription,
	FieldLot,
	FieldPreHop,
	FieldDescOrder,
	FieldPlant,
	FieldLine,
	FieldBattery,
}

// Label returns the column heading used by the grid.
func (f Field) Label() string {
	switch f {
	case FieldProduct:
		return "Product"
	case FieldDescription:
		return "Description"
	case FieldLot:
		return "Lot"
	case FieldPreHop:
		return "Pre-hop"
	case FieldDescOrder:
		return "Desc. order"
	case FieldPlant:
		return "Plant"
	case FieldLine:
		return "Line"
	case FieldBattery:
		return "Battery"
	}
	return string(f)
}

// Order is one production order awaiting release to the backend system.
type Order struct {
	ID          string `json:"id"`
	Product     string `json:"product"`
	Description string `json:"description"`
	Lot         string `json:"lot"`
	PreHop      string `json:"prehop"`
	DescOrder   string `json:"desc_order"`
	Plant       string `json:"plant"`
	Line        string `json:"line"`
	Battery     string `json:"battery"`
	Status      Status `json:"status"`
}

// New returns an empty pending order with a fresh id.
func New() Order {
	return Order{
		ID:     "ORD-" + strings.ToUpper(uuid.NewString()[:8]),
		Status: StatusPending,
	}
}

// Value returns the content of a descriptive field.
func (o Order) Value(f Field) (string, error) {
	switch f {
	case FieldProduct:
		return o.Product, nil
	case FieldDescription:
		return o.Description, nil
	case FieldLot:
		return o.Lot, nil
	case FieldPreHop:
		return o.PreHop, nil
	case FieldDescOrder:
		return o.DescOrder, nil
	case FieldPlant:
		return o.Plant, nil
	case FieldLine:
		return o.Line, nil
	case FieldBattery:
		return o.Battery, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownField, f)
}

func (o *Order) set(f Field, value string) error {
	switch f {
	case FieldProduct:
		o.Product = value
	case FieldDescription:
		o.Description = value
	case FieldLot:
		o.Lot = value
	case FieldPreHop:
		o.PreHop = value
	case FieldDescOrder:
		o.DescOrder = value
	case FieldPlant:
		o.Plant = value
	case FieldLine:
		o.Line = value
	case FieldBattery:
		o.Battery = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	return nil
}

// matches reports whether the lower-cased term appears in any searchable column.
func (o Order) matches(term string) bool {
	for _, value := range []string{o.Product, o.Description, o.Lot, o.Plant, o.Line, o.Battery} {
		if strings.Contains(strings.ToLower(value), term) {
			return true
		}
	}
	return false
}
