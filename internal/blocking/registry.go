package blocking

import (
	"sort"
)

// resourceEntry tracks per-resource bookkeeping: the blocking set and the
// enabled flag captured before the first block so the final unblock restores
// it instead of unconditionally enabling.
type resourceEntry struct {
	resource   Blockable
	hooks      Hooks // non-nil when the resource overrides default treatment
	blockedBy  map[Operation]struct{}
	wasEnabled bool
}

func (e *resourceEntry) blocked() bool {
	return len(e.blockedBy) > 0
}

// ResourceRegistry holds, for every registered resource, the set of
// operations currently blocking it. Pure membership bookkeeping; it is not
// safe for concurrent use on its own — the Coordinator serializes all access
// under its lock.
type ResourceRegistry struct {
	entries map[string]*resourceEntry
}

// NewResourceRegistry creates an empty resource registry.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{entries: make(map[string]*resourceEntry)}
}

// Register adds a resource with an empty blocking set and returns its entry.
// Idempotent: an already-registered resource keeps its existing entry and
// blocking state.
func (r *ResourceRegistry) Register(res Blockable) *resourceEntry {
	id := res.BlockableID()
	if entry, ok := r.entries[id]; ok {
		return entry
	}
	entry := &resourceEntry{
		resource:  res,
		blockedBy: make(map[Operation]struct{}),
	}
	if h, ok := res.(Hooks); ok {
		entry.hooks = h
	}
	r.entries[id] = entry
	return entry
}

// Unregister removes a resource and returns its entry, or nil if unknown.
// Any blocking operations recorded on the entry are dropped with it.
func (r *ResourceRegistry) Unregister(id string) *resourceEntry {
	entry, ok := r.entries[id]
	if !ok {
		return nil
	}
	delete(r.entries, id)
	return entry
}

// Entry returns the entry for a resource ID.
func (r *ResourceRegistry) Entry(id string) (*resourceEntry, bool) {
	entry, ok := r.entries[id]
	return entry, ok
}

// BlockingOperations returns a sorted snapshot of the operations currently
// blocking the resource. Callers never see the live set.
func (r *ResourceRegistry) BlockingOperations(id string) []Operation {
	entry, ok := r.entries[id]
	if !ok {
		return nil
	}
	ops := make([]Operation, 0, len(entry.blockedBy))
	for op := range entry.blockedBy {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// IsBlocked reports whether the resource's blocking set is non-empty.
func (r *ResourceRegistry) IsBlocked(id string) bool {
	entry, ok := r.entries[id]
	return ok && entry.blocked()
}

// IDs returns a sorted snapshot of all registered resource IDs.
func (r *ResourceRegistry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// groupEntry tracks a group's member set, the operations currently blocking
// the group (for late-join inheritance) and optional group-level hooks.
type groupEntry struct {
	members   map[string]struct{}
	blockedBy map[Operation]struct{}
	hooks     Hooks
}

// GroupRegistry maps group identifiers to member resources. Groups are
// created on first reference. Like ResourceRegistry it relies on the
// Coordinator's lock for serialization.
type GroupRegistry struct {
	groups map[string]*groupEntry
}

// NewGroupRegistry creates an empty group registry.
func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{groups: make(map[string]*groupEntry)}
}

// Ensure returns the entry for a group, creating it empty on first reference.
func (g *GroupRegistry) Ensure(group string) *groupEntry {
	entry, ok := g.groups[group]
	if !ok {
		entry = &groupEntry{
			members:   make(map[string]struct{}),
			blockedBy: make(map[Operation]struct{}),
		}
		g.groups[group] = entry
	}
	return entry
}

// Entry returns the entry for a group without creating it.
func (g *GroupRegistry) Entry(group string) (*groupEntry, bool) {
	entry, ok := g.groups[group]
	return entry, ok
}

// AddMember records group membership. Blocking inheritance for late joins is
// the Coordinator's job; this is membership only.
func (g *GroupRegistry) AddMember(group, resourceID string) {
	g.Ensure(group).members[resourceID] = struct{}{}
}

// RemoveMember removes membership only; blocking state already applied to
// the resource is untouched.
func (g *GroupRegistry) RemoveMember(group, resourceID string) {
	if entry, ok := g.groups[group]; ok {
		delete(entry.members, resourceID)
	}
}

// RemoveFromAll removes a resource from every group.
func (g *GroupRegistry) RemoveFromAll(resourceID string) {
	for _, entry := range g.groups {
		delete(entry.members, resourceID)
	}
}

// Members returns a sorted snapshot of a group's current members.
func (g *GroupRegistry) Members(group string) []string {
	entry, ok := g.groups[group]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(entry.members))
	for id := range entry.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BlockingOperations returns a sorted snapshot of the operations currently
// blocking the group.
func (g *GroupRegistry) BlockingOperations(group string) []Operation {
	entry, ok := g.groups[group]
	if !ok {
		return nil
	}
	ops := make([]Operation, 0, len(entry.blockedBy))
	for op := range entry.blockedBy {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// SetHooks installs group-level hooks invoked in addition to per-member
// effects.
func (g *GroupRegistry) SetHooks(group string, hooks Hooks) {
	g.Ensure(group).hooks = hooks
}
