package blocking

import (
	"sort"
)

// ResourceStatus describes one registered resource for display.
type ResourceStatus struct {
	ID        string
	Enabled   bool
	BlockedBy []Operation
}

// OperationStatus describes one active operation for display.
type OperationStatus struct {
	Operation Operation
	Elements  []string
	Groups    []string
	Affected  []string
}

// Snapshot is a point-in-time copy of coordinator state for status displays
// and diagnostics. Resources and operations are sorted by identifier.
type Snapshot struct {
	Resources  []ResourceStatus
	Operations []OperationStatus
}

// Snapshot returns a consistent copy of the current blocking state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{}
	for _, id := range c.resources.IDs() {
		entry, _ := c.resources.Entry(id)
		snap.Resources = append(snap.Resources, ResourceStatus{
			ID:        id,
			Enabled:   entry.resource.IsEnabled(),
			BlockedBy: c.resources.BlockingOperations(id),
		})
	}
	for _, op := range c.activeOperationsLocked() {
		ao := c.active[op]
		snap.Operations = append(snap.Operations, OperationStatus{
			Operation: op,
			Elements:  append([]string(nil), ao.elements...),
			Groups:    append([]string(nil), ao.groups...),
			Affected:  sortedKeys(ao.affected),
		})
	}
	return snap
}

// activeOperationsLocked returns sorted active operations. Must be called
// with c.mu held.
func (c *Coordinator) activeOperationsLocked() []Operation {
	ops := make([]Operation, 0, len(c.active))
	for op := range c.active {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
