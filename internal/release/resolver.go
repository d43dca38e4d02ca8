package release

import "github.com/kingrea/releasedesk/internal/order"

// Resolve returns the orders a run should process, in collection order.
// With a selection, only selected pending orders qualify; without one, every
// pending order does. Selected ids that no longer exist are ignored.
func Resolve(orders []order.Order, selected []string) []order.Order {
	var wanted map[string]struct{}
	if len(selected) > 0 {
		wanted = make(map[string]struct{}, len(selected))
		for _, id := range selected {
			wanted[id] = struct{}{}
		}
	}
	var targets []order.Order
	for _, o := range orders {
		if o.Status != order.StatusPending {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[o.ID]; !ok {
				continue
			}
		}
		targets = append(targets, o)
	}
	return targets
}
