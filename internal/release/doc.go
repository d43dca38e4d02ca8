// Package release resolves which orders a run targets and drives each target
// through the release lifecycle, reporting progress to the activity log.
//
// A run is a single sequential unit guarded by a latch: the engine refuses to
// start a second run until the first has fully settled. Orders are processed
// one at a time in collection order, and every order is settled and logged
// before the next begins.
package release
