package blocking

import (
	"sort"
	"sync"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/events"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/logging"
)

// activeOperation records what a running operation targeted: the elements and
// groups named at start, plus the resolved resource IDs actually blocked on
// its behalf (including late group joins). Exactly one owner scope exists per
// active operation.
type activeOperation struct {
	elements []string
	groups   []string
	affected map[string]struct{}
}

// Coordinator is the thread-safe orchestrator for operation-scoped resource
// blocking. It composes the resource and group registries and the
// notification bus. A single coarse lock guards all registry and
// active-operation bookkeeping; block/unblock hooks and event publishing run
// outside the lock, so hooks may safely call back into the coordinator.
//
// The coordinator is an explicit instance: hosts construct one and pass it
// where needed. Running more than one is possible but resources must not be
// registered with both.
type Coordinator struct {
	mu        sync.Mutex
	resources *ResourceRegistry
	groups    *GroupRegistry
	active    map[Operation]*activeOperation

	bus      *events.Bus
	logger   *logging.Logger
	dispatch func(func())
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBus attaches a notification bus. Without one the coordinator is silent
// but fully functional; the bus is never required for blocking correctness.
func WithBus(bus *events.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithDispatcher routes hook invocations through fn, for hosts whose
// resources may only be mutated from a dedicated thread (a UI event loop).
// fn must run the callback before returning, or at least preserve submission
// order per resource; bookkeeping has already been committed when fn is
// called. Registry mutations themselves never go through the dispatcher.
func WithDispatcher(fn func(func())) Option {
	return func(c *Coordinator) { c.dispatch = fn }
}

// New creates a Coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		resources: NewResourceRegistry(),
		groups:    NewGroupRegistry(),
		active:    make(map[Operation]*activeOperation),
		logger:    logging.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a resource to the coordinator and, optionally, to the named
// groups. Idempotent for already-registered resources. If any of the groups
// is currently blocked, the resource immediately inherits those blocks.
func (c *Coordinator) Register(res Blockable, groups ...string) {
	c.mu.Lock()
	entry := c.resources.Register(res)
	var post []func()
	for _, group := range groups {
		c.groups.AddMember(group, res.BlockableID())
		post = append(post, c.inheritGroupBlocksLocked(entry, group)...)
	}
	c.mu.Unlock()
	c.run(post)
}

// Unregister removes a resource from the registry and from every group. Any
// operations still blocking it silently lose the resource from their affected
// set; no unblock hooks run, the resource is simply no longer addressable.
func (c *Coordinator) Unregister(res Blockable) {
	id := res.BlockableID()

	c.mu.Lock()
	entry := c.resources.Unregister(id)
	c.groups.RemoveFromAll(id)
	for _, ao := range c.active {
		delete(ao.affected, id)
	}
	c.mu.Unlock()

	if entry == nil {
		c.logger.Debug().Str("resource", id).Msg("unregister of unknown resource ignored")
	}
}

// AddToGroup adds a resource to a group, registering the resource and
// creating the group if needed. If the group is currently blocked by one or
// more operations, the resource is blocked for each of them as part of this
// call (late join inherits state).
func (c *Coordinator) AddToGroup(res Blockable, group string) {
	c.mu.Lock()
	entry := c.resources.Register(res)
	c.groups.AddMember(group, res.BlockableID())
	post := c.inheritGroupBlocksLocked(entry, group)
	c.mu.Unlock()
	c.run(post)
}

// RemoveFromGroup removes group membership only. Blocking already applied to
// the resource stays in place: groups are a blocking trigger, not a live
// membership of the block itself.
func (c *Coordinator) RemoveFromGroup(res Blockable, group string) {
	c.mu.Lock()
	c.groups.RemoveMember(group, res.BlockableID())
	c.mu.Unlock()
}

// SetGroupHooks installs group-level hooks invoked on group block/unblock in
// addition to per-member effects.
func (c *Coordinator) SetGroupHooks(group string, hooks Hooks) {
	c.mu.Lock()
	c.groups.SetHooks(group, hooks)
	c.mu.Unlock()
}

// GroupMembers returns a snapshot of a group's current members.
func (c *Coordinator) GroupMembers(group string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groups.Members(group)
}

// BlockElement blocks a resource for an operation, registering the resource
// if unknown. Adding an operation already present is a no-op (set
// semantics). The registry mutation is committed before the block hook runs;
// hook failures do not roll it back.
func (c *Coordinator) BlockElement(res Blockable, op Operation) {
	c.mu.Lock()
	entry := c.resources.Register(res)
	post := c.blockEntryLocked(entry, op, "")
	c.mu.Unlock()
	c.run(post)
}

// UnblockElement removes an operation from a resource's blocking set. The
// unblock hook runs only when the set becomes empty: the resource stays
// disabled while any other operation still blocks it.
func (c *Coordinator) UnblockElement(res Blockable, op Operation) {
	id := res.BlockableID()

	c.mu.Lock()
	entry, ok := c.resources.Entry(id)
	if !ok {
		c.mu.Unlock()
		c.logger.Debug().Str("resource", id).Str("operation", string(op)).
			Msg("unblock of unregistered resource ignored")
		return
	}
	post := c.unblockEntryLocked(entry, op, "")
	c.mu.Unlock()
	c.run(post)
}

// BlockGroup blocks a group for an operation: the group-level block hook (if
// any) runs, then every current member is blocked. Idempotent per operation.
func (c *Coordinator) BlockGroup(group string, op Operation) {
	c.mu.Lock()
	post := c.blockGroupLocked(group, op)
	c.mu.Unlock()
	c.run(post)
}

// UnblockGroup removes an operation from a group and from every current
// member. Members that left the group while blocked are not covered here;
// EndOperation sweeps those.
func (c *Coordinator) UnblockGroup(group string, op Operation) {
	c.mu.Lock()
	post := c.unblockGroupLocked(group, op)
	c.mu.Unlock()
	c.run(post)
}

// StartOperation starts an operation against the given elements and groups
// and reports whether this call became the owner. If the operation is
// already active the call has no effect on blocking — the resource/group
// list is not re-registered and the caller must not end the operation. This
// silent merge is what makes same-operation nesting correct: only the first
// starter owns the operation.
func (c *Coordinator) StartOperation(op Operation, elements []Blockable, groups []string) bool {
	c.mu.Lock()
	if _, ok := c.active[op]; ok {
		c.mu.Unlock()
		c.logger.Debug().Str("operation", string(op)).
			Msg("operation already active, start merged")
		return false
	}

	ao := &activeOperation{affected: make(map[string]struct{})}
	c.active[op] = ao

	var post []func()
	for _, group := range groups {
		ao.groups = append(ao.groups, group)
		post = append(post, c.blockGroupLocked(group, op)...)
	}
	for _, res := range elements {
		entry := c.resources.Register(res)
		ao.elements = append(ao.elements, res.BlockableID())
		post = append(post, c.blockEntryLocked(entry, op, "")...)
	}

	affected := sortedKeys(ao.affected)
	groupsCopy := append([]string(nil), ao.groups...)
	c.mu.Unlock()

	c.run(post)
	if c.bus != nil {
		c.bus.PublishOperationStarted(string(op), affected, groupsCopy)
	}
	c.logger.Debug().Str("operation", string(op)).Int("affected", len(affected)).
		Msg("operation started")
	return true
}

// EndOperation ends an active operation, unblocking everything recorded for
// it. Ending an operation that is not active (already ended, or started by a
// non-owner) is a no-op. After the recorded groups are unblocked, every
// registered resource still holding the operation is swept, so members that
// left a group mid-operation are released too.
func (c *Coordinator) EndOperation(op Operation) {
	c.mu.Lock()
	ao, ok := c.active[op]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug().Str("operation", string(op)).
			Msg("end of inactive operation ignored")
		return
	}
	delete(c.active, op)

	var post []func()
	for _, group := range ao.groups {
		post = append(post, c.unblockGroupLocked(group, op)...)
	}
	for _, id := range c.resources.IDs() {
		if entry, ok := c.resources.Entry(id); ok {
			post = append(post, c.unblockEntryLocked(entry, op, "")...)
		}
	}

	affected := sortedKeys(ao.affected)
	groupsCopy := append([]string(nil), ao.groups...)
	c.mu.Unlock()

	c.run(post)
	if c.bus != nil {
		c.bus.PublishOperationEnded(string(op), affected, groupsCopy)
	}
	c.logger.Debug().Str("operation", string(op)).Msg("operation ended")
}

// IsOperationActive reports whether an operation is currently active.
func (c *Coordinator) IsOperationActive(op Operation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[op]
	return ok
}

// ActiveOperations returns a sorted snapshot of active operations.
func (c *Coordinator) ActiveOperations() []Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := make([]Operation, 0, len(c.active))
	for op := range c.active {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// BlockingOperations returns a snapshot of the operations blocking a resource.
func (c *Coordinator) BlockingOperations(res Blockable) []Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resources.BlockingOperations(res.BlockableID())
}

// IsBlocked reports whether any operation currently blocks the resource.
func (c *Coordinator) IsBlocked(res Blockable) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resources.IsBlocked(res.BlockableID())
}

// blockEntryLocked commits the block in the registry and returns the
// deferred hook/event work. Must be called with c.mu held. group is the
// group that fanned out to this resource, empty for direct blocks.
func (c *Coordinator) blockEntryLocked(entry *resourceEntry, op Operation, group string) []func() {
	if _, ok := entry.blockedBy[op]; ok {
		return nil
	}
	if !entry.blocked() {
		entry.wasEnabled = entry.resource.IsEnabled()
	}
	entry.blockedBy[op] = struct{}{}

	if ao, ok := c.active[op]; ok {
		ao.affected[entry.resource.BlockableID()] = struct{}{}
	}

	res := entry.resource
	hooks := entry.hooks
	id := res.BlockableID()
	return []func(){
		func() {
			c.invokeHook(id, op, "block", func() error {
				if hooks != nil {
					return hooks.ApplyBlock()
				}
				res.SetEnabled(false)
				return nil
			})
		},
		func() {
			if c.bus != nil {
				c.bus.PublishResourceBlocked(id, string(op), group)
				c.bus.PublishBlockingStateChanged(id, string(op), true)
			}
		},
	}
}

// unblockEntryLocked commits the unblock in the registry and returns the
// deferred hook/event work. Must be called with c.mu held.
func (c *Coordinator) unblockEntryLocked(entry *resourceEntry, op Operation, group string) []func() {
	if _, ok := entry.blockedBy[op]; !ok {
		return nil
	}
	delete(entry.blockedBy, op)
	stillBlocked := entry.blocked()

	res := entry.resource
	hooks := entry.hooks
	wasEnabled := entry.wasEnabled
	id := res.BlockableID()

	post := make([]func(), 0, 2)
	if !stillBlocked {
		post = append(post, func() {
			c.invokeHook(id, op, "unblock", func() error {
				if hooks != nil {
					return hooks.ApplyUnblock()
				}
				res.SetEnabled(wasEnabled)
				return nil
			})
		})
	}
	post = append(post, func() {
		if c.bus != nil {
			c.bus.PublishResourceUnblocked(id, string(op), group)
			c.bus.PublishBlockingStateChanged(id, string(op), stillBlocked)
		}
	})
	return post
}

// blockGroupLocked commits a group block and fans out to current members.
// Must be called with c.mu held.
func (c *Coordinator) blockGroupLocked(group string, op Operation) []func() {
	ge := c.groups.Ensure(group)
	if _, ok := ge.blockedBy[op]; ok {
		return nil
	}
	ge.blockedBy[op] = struct{}{}

	var post []func()
	if ge.hooks != nil {
		hooks := ge.hooks
		post = append(post, func() {
			c.invokeHook(group, op, "group-block", hooks.ApplyBlock)
		})
	}
	for _, id := range c.groups.Members(group) {
		if entry, ok := c.resources.Entry(id); ok {
			post = append(post, c.blockEntryLocked(entry, op, group)...)
		}
	}
	return post
}

// unblockGroupLocked commits a group unblock and fans out to current
// members. The group-level unblock hook runs when the group's own blocking
// set becomes empty. Must be called with c.mu held.
func (c *Coordinator) unblockGroupLocked(group string, op Operation) []func() {
	ge, ok := c.groups.Entry(group)
	if !ok {
		return nil
	}
	if _, ok := ge.blockedBy[op]; !ok {
		return nil
	}
	delete(ge.blockedBy, op)

	var post []func()
	for _, id := range c.groups.Members(group) {
		if entry, ok := c.resources.Entry(id); ok {
			post = append(post, c.unblockEntryLocked(entry, op, group)...)
		}
	}
	if ge.hooks != nil && len(ge.blockedBy) == 0 {
		hooks := ge.hooks
		post = append(post, func() {
			c.invokeHook(group, op, "group-unblock", hooks.ApplyUnblock)
		})
	}
	return post
}

// inheritGroupBlocksLocked blocks a fresh member for every operation
// currently blocking the group. Must be called with c.mu held.
func (c *Coordinator) inheritGroupBlocksLocked(entry *resourceEntry, group string) []func() {
	ge, ok := c.groups.Entry(group)
	if !ok {
		return nil
	}
	ops := make([]Operation, 0, len(ge.blockedBy))
	for op := range ge.blockedBy {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	var post []func()
	for _, op := range ops {
		post = append(post, c.blockEntryLocked(entry, op, group)...)
	}
	return post
}

// invokeHook runs a block/unblock hook through the dispatcher if configured,
// catching errors and panics. Bookkeeping is already committed when hooks
// run: a resource counts as blocked even if its visual hook failed.
func (c *Coordinator) invokeHook(id string, op Operation, phase string, fn func() error) {
	run := func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error().Str("resource", id).Str("operation", string(op)).
					Str("phase", phase).Interface("panic", r).
					Msg("blocking hook panicked")
			}
		}()
		if err := fn(); err != nil {
			c.logger.Error().Err(err).Str("resource", id).Str("operation", string(op)).
				Str("phase", phase).Msg("blocking hook failed")
		}
	}
	if c.dispatch != nil {
		c.dispatch(run)
		return
	}
	run()
}

// run executes deferred hook/event work outside the coordinator lock.
func (c *Coordinator) run(post []func()) {
	for _, fn := range post {
		fn()
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
