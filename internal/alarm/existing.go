package alarm

import "slices"

// ExistingAlarms is a snapshot of deployed alarm names taken at the start of
// a run. Generation consults it read-only; alarms deployed during the run
// only appear in the next snapshot.
type ExistingAlarms struct {
	names map[string]struct{}
}

// NewExistingAlarms builds a snapshot from a list of alarm names.
func NewExistingAlarms(names []string) *ExistingAlarms {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return &ExistingAlarms{names: set}
}

// Contains reports whether an alarm with this name is already deployed.
func (e *ExistingAlarms) Contains(name string) bool {
	_, ok := e.names[name]
	return ok
}

// Names returns the snapshot contents in sorted order.
func (e *ExistingAlarms) Names() []string {
	out := make([]string, 0, len(e.names))
	for n := range e.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Len returns the snapshot size.
func (e *ExistingAlarms) Len() int {
	return len(e.names)
}
