// Package blocking coordinates enable/disable state of interactive resources
// while long-running operations (import, export, validation, correction) are
// in flight. A Coordinator composes a resource registry, a group registry and
// the notification bus; OperationScope ties one attempt to run an operation
// to the resources it affects and guarantees release on every exit path.
package blocking

import (
	"sync"
)

// Operation identifies a category of work (not a single invocation) whose
// activity gates blocking of associated resources. The set of values is
// closed and application-defined; operations compare by equality only.
type Operation string

// Blockable is the capability a resource must satisfy to participate in
// blocking: a stable identity and an enabled flag. Identities must not be
// duplicated across the process.
type Blockable interface {
	// BlockableID returns the identity used for registry lookups.
	BlockableID() string

	// IsEnabled reports the current enabled flag. The coordinator reads it
	// once before the first block so the final unblock can restore it.
	IsEnabled() bool

	// SetEnabled applies the enabled flag. This is the default block/unblock
	// treatment for resources without custom hooks.
	SetEnabled(enabled bool)
}

// Hooks is the optional capability for resources (or groups) that override
// the default enable-toggle treatment, e.g. to apply a different visual
// state. When a registered resource implements Hooks, the coordinator calls
// ApplyBlock instead of SetEnabled(false) and ApplyUnblock instead of
// restoring the remembered flag. Hook errors and panics are logged and never
// roll back registry bookkeeping.
type Hooks interface {
	ApplyBlock() error
	ApplyUnblock() error
}

// HookFuncs adapts a pair of functions to the Hooks interface. Either
// function may be nil. Used for group-level hooks and in tests.
type HookFuncs struct {
	Block   func() error
	Unblock func() error
}

// ApplyBlock calls the Block function if set.
func (h HookFuncs) ApplyBlock() error {
	if h.Block != nil {
		return h.Block()
	}
	return nil
}

// ApplyUnblock calls the Unblock function if set.
func (h HookFuncs) ApplyUnblock() error {
	if h.Unblock != nil {
		return h.Unblock()
	}
	return nil
}

// Element is the default Blockable implementation: an identity plus a
// thread-safe enabled flag. Host applications that bridge to real UI widgets
// typically embed Element and forward SetEnabled to the widget.
type Element struct {
	id string

	mu      sync.Mutex
	enabled bool
}

// NewElement creates an enabled element with the given identity.
func NewElement(id string) *Element {
	return &Element{id: id, enabled: true}
}

// BlockableID returns the element's identity.
func (e *Element) BlockableID() string {
	return e.id
}

// IsEnabled returns the current enabled flag.
func (e *Element) IsEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetEnabled sets the enabled flag.
func (e *Element) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// Composite is a Blockable that fans its enabled flag out to child
// blockables (a widget container). The composite keeps its own flag so the
// coordinator's remember/restore rule applies to the container itself;
// children receive the same flag on every change.
type Composite struct {
	id string

	mu       sync.Mutex
	enabled  bool
	children []Blockable
}

// NewComposite creates an enabled composite with the given children.
func NewComposite(id string, children ...Blockable) *Composite {
	return &Composite{id: id, enabled: true, children: children}
}

// BlockableID returns the composite's identity.
func (c *Composite) BlockableID() string {
	return c.id
}

// IsEnabled returns the composite's own enabled flag.
func (c *Composite) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled sets the composite's flag and propagates it to all children.
func (c *Composite) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	children := make([]Blockable, len(c.children))
	copy(children, c.children)
	c.mu.Unlock()

	for _, child := range children {
		child.SetEnabled(enabled)
	}
}

// Add appends a child to the composite. The child immediately receives the
// composite's current enabled flag.
func (c *Composite) Add(child Blockable) {
	c.mu.Lock()
	c.children = append(c.children, child)
	enabled := c.enabled
	c.mu.Unlock()

	child.SetEnabled(enabled)
}

// Children returns a copy of the current child list.
func (c *Composite) Children() []Blockable {
	c.mu.Lock()
	defer c.mu.Unlock()
	children := make([]Blockable, len(c.children))
	copy(children, c.children)
	return children
}
