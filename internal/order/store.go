package order

import (
	"fmt"
	"strings"
	"sync"
)

// Counts summarizes the store by status.
type Counts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Released   int `json:"released"`
	Failed     int `json:"failed"`
}

// Store holds the ordered collection of orders. Every read returns copies so
// callers never observe a half-applied edit.
type Store struct {
	mu     sync.RWMutex
	orders []Order
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the orders in collection order.
func (s *Store) Snapshot() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Len returns the number of orders.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Get looks up a single order by id.
func (s *Store) Get(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.orders[idx], true
	}
	return Order{}, false
}

// Add appends a blank pending order and returns it.
func (s *Store) Add() Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := New()
	for s.indexOf(o.ID) >= 0 {
		o = New()
	}
	s.orders = append(s.orders, o)
	return o
}

// Insert appends existing orders, e.g. seed data. Orders without a status
// start as pending.
func (s *Store) Insert(orders ...Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		id := strings.TrimSpace(o.ID)
		if id == "" {
			return fmt.Errorf("order: id is required")
		}
		if _, dup := seen[id]; dup || s.indexOf(id) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		if o.Status == "" {
			o.Status = StatusPending
		}
		if !o.Status.IsValid() {
			return fmt.Errorf("order %s: unknown status %q", id, o.Status)
		}
		seen[id] = struct{}{}
	}
	for _, o := range orders {
		if o.Status == "" {
			o.Status = StatusPending
		}
		s.orders = append(s.orders, o)
	}
	return nil
}

// UpdateField edits one descriptive field of an order.
func (s *Store) UpdateField(id string, field Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.orders[idx].set(field, value)
}

// Transition moves an order to the next lifecycle status. The new status is
// visible to readers as soon as Transition returns.
func (s *Store) Transition(id string, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	from := s.orders[idx].Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, id, from, to)
	}
	s.orders[idx].Status = to
	return nil
}

// Clear removes every order.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = nil
}

// Filter returns orders whose searchable columns contain term, ignoring case.
func (s *Store) Filter(term string) []Order {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.Snapshot()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Order
	for _, o := range s.orders {
		if o.matches(term) {
			out = append(out, o)
		}
	}
	return out
}

// Counts tallies the store by status.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Counts{Total: len(s.orders)}
	for _, o := range s.orders {
		switch o.Status {
		case StatusPending:
			c.Pending++
		case StatusProcessing:
			c.Processing++
		case StatusReleased:
			c.Released++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

func (s *Store) indexOf(id string) int {
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}
