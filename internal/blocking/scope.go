package blocking

import (
	"sync"
)

// OperationScope ties one attempt to start an operation to a concrete
// element/group list. Start records whether this scope actually owned the
// transition from inactive to active; End only has effect for the owner and
// is always safe to call, so for N nested scopes on the same operation
// blocking happens once and unblocking happens once, regardless of the order
// inner scopes end in.
//
// Manual mode:
//
//	scope := coord.Scope(OpImport, WithGroups("toolbar"))
//	scope.Start()
//	defer scope.End()
//
// Automatic mode (End guaranteed on every exit path, including panics):
//
//	err := coord.RunOperation(OpImport, doImport, WithGroups("toolbar"))
type OperationScope struct {
	coord    *Coordinator
	op       Operation
	elements []Blockable
	groups   []string

	mu      sync.Mutex
	started bool
	owner   bool
	ended   bool
	err     error
}

// ScopeOption configures an OperationScope.
type ScopeOption func(*OperationScope)

// WithElements names individual resources the operation should block.
func WithElements(elements ...Blockable) ScopeOption {
	return func(s *OperationScope) {
		s.elements = append(s.elements, elements...)
	}
}

// WithGroups names groups the operation should block.
func WithGroups(groups ...string) ScopeOption {
	return func(s *OperationScope) {
		s.groups = append(s.groups, groups...)
	}
}

// Scope creates a handle for one attempt to run op. Nothing is blocked until
// Start or Run is called.
func (c *Coordinator) Scope(op Operation, opts ...ScopeOption) *OperationScope {
	s := &OperationScope{coord: c, op: op}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the operation and reports whether this scope became the
// owner. Calling Start again returns the recorded answer without touching
// the coordinator.
func (s *OperationScope) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return s.owner
	}
	s.started = true
	s.owner = s.coord.StartOperation(s.op, s.elements, s.groups)
	return s.owner
}

// End ends the operation if this scope owns it. Safe to call on non-owner
// and unstarted scopes, and idempotent: only the first owner End reaches the
// coordinator.
func (s *OperationScope) End() {
	s.mu.Lock()
	if !s.started || s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	owner := s.owner
	s.mu.Unlock()

	if owner {
		s.coord.EndOperation(s.op)
	}
}

// Owner reports whether this scope's Start actually activated the operation.
func (s *OperationScope) Owner() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Err returns the error captured by Run, if any.
func (s *OperationScope) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Run starts the operation, executes fn and ends the operation on every exit
// path. A panic in fn propagates after the operation is released. fn's error
// is recorded and returned.
func (s *OperationScope) Run(fn func() error) error {
	s.Start()
	defer s.End()

	err := fn()
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

// RunOperation is the one-shot form of Scope().Run(): it blocks the targets,
// runs fn and releases on every exit path, honoring the same-operation
// reentrancy rule.
func (c *Coordinator) RunOperation(op Operation, fn func() error, opts ...ScopeOption) error {
	return c.Scope(op, opts...).Run(fn)
}
