package blocking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/events"
)

const (
	opImport   Operation = "import"
	opExport   Operation = "export"
	opValidate Operation = "validate"
)

// hookedElement counts custom hook invocations and can simulate failures.
type hookedElement struct {
	*Element

	mu         sync.Mutex
	blocks     int
	unblocks   int
	blockErr   error
	panicBlock bool
}

func newHookedElement(id string) *hookedElement {
	return &hookedElement{Element: NewElement(id)}
}

func (h *hookedElement) ApplyBlock() error {
	h.mu.Lock()
	h.blocks++
	err := h.blockErr
	doPanic := h.panicBlock
	h.mu.Unlock()

	if doPanic {
		panic("hook exploded")
	}
	if err != nil {
		return err
	}
	h.SetEnabled(false)
	return nil
}

func (h *hookedElement) ApplyUnblock() error {
	h.mu.Lock()
	h.unblocks++
	h.mu.Unlock()
	h.SetEnabled(true)
	return nil
}

func (h *hookedElement) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.blocks, h.unblocks
}

// checkInvariant verifies enabled == (blocking set empty) for a resource.
func checkInvariant(t *testing.T, c *Coordinator, res Blockable) {
	t.Helper()
	blocked := c.IsBlocked(res)
	if res.IsEnabled() == blocked {
		t.Errorf("Invariant violated for %s: enabled=%v blocked=%v",
			res.BlockableID(), res.IsEnabled(), blocked)
	}
}

func TestCoordinator_BlockUnblockElement(t *testing.T) {
	c := New()
	table := NewElement("table")

	c.BlockElement(table, opImport)
	if table.IsEnabled() {
		t.Error("Resource should be disabled after block")
	}
	checkInvariant(t, c, table)

	// Idempotent: same operation again changes nothing
	c.BlockElement(table, opImport)
	if ops := c.BlockingOperations(table); len(ops) != 1 {
		t.Errorf("Expected 1 blocking operation, got %v", ops)
	}

	c.UnblockElement(table, opImport)
	if !table.IsEnabled() {
		t.Error("Resource should be re-enabled after unblock")
	}
	checkInvariant(t, c, table)

	// Unblocking an operation not in the set is a no-op
	c.UnblockElement(table, opExport)
	if !table.IsEnabled() {
		t.Error("Redundant unblock must not change state")
	}
}

func TestCoordinator_CrossOperationReferenceCounting(t *testing.T) {
	c := New()
	a := NewElement("a")

	c.StartOperation(opImport, []Blockable{a}, nil)
	c.StartOperation(opExport, []Blockable{a}, nil)
	if a.IsEnabled() {
		t.Fatal("Resource blocked by two operations should be disabled")
	}

	c.EndOperation(opImport)
	if a.IsEnabled() {
		t.Error("Resource should stay disabled while a second operation blocks it")
	}
	checkInvariant(t, c, a)

	c.EndOperation(opExport)
	if !a.IsEnabled() {
		t.Error("Resource should re-enable when the last operation ends")
	}
	checkInvariant(t, c, a)
}

func TestCoordinator_SameOperationReentrancy(t *testing.T) {
	c := New()
	a := newHookedElement("a")

	first := c.StartOperation(opImport, []Blockable{a}, nil)
	second := c.StartOperation(opImport, []Blockable{a}, nil)

	if !first {
		t.Fatal("First start should own the operation")
	}
	if second {
		t.Fatal("Nested start of an active operation must not own it")
	}

	blocks, _ := a.counts()
	if blocks != 1 {
		t.Errorf("Expected exactly 1 block hook call, got %d", blocks)
	}

	c.EndOperation(opImport)
	_, unblocks := a.counts()
	if unblocks != 1 {
		t.Errorf("Expected exactly 1 unblock hook call, got %d", unblocks)
	}
	if !a.IsEnabled() {
		t.Error("Resource should be enabled after the owning end")
	}

	// Second end is defensive no-op
	c.EndOperation(opImport)
	_, unblocks = a.counts()
	if unblocks != 1 {
		t.Errorf("Redundant end must not re-invoke hooks, got %d", unblocks)
	}
}

func TestCoordinator_GroupBlockUnblock(t *testing.T) {
	c := New()
	a := NewElement("a")
	b := NewElement("b")
	c.Register(a, "data-widgets")
	c.Register(b, "data-widgets")

	if !c.StartOperation(opImport, nil, []string{"data-widgets"}) {
		t.Fatal("Start should own the operation")
	}
	if a.IsEnabled() || b.IsEnabled() {
		t.Error("All group members should be disabled")
	}

	c.EndOperation(opImport)
	if !a.IsEnabled() || !b.IsEnabled() {
		t.Error("All group members should be re-enabled")
	}
}

func TestCoordinator_GroupLateJoinInheritsState(t *testing.T) {
	c := New()
	a := NewElement("a")
	c.Register(a, "data-widgets")

	c.StartOperation(opImport, nil, []string{"data-widgets"})

	late := NewElement("late")
	c.AddToGroup(late, "data-widgets")
	if late.IsEnabled() {
		t.Error("Resource added to a blocked group should be immediately disabled")
	}
	checkInvariant(t, c, late)

	c.EndOperation(opImport)
	if !late.IsEnabled() {
		t.Error("Late joiner should be released with the operation")
	}
}

func TestCoordinator_GroupLeaveDoesNotUnblock(t *testing.T) {
	c := New()
	a := NewElement("a")
	c.Register(a, "data-widgets")

	c.StartOperation(opImport, nil, []string{"data-widgets"})
	c.RemoveFromGroup(a, "data-widgets")

	if a.IsEnabled() {
		t.Error("Leaving the group must not re-enable a blocked resource")
	}

	// The end sweep must still release the departed member
	c.EndOperation(opImport)
	if !a.IsEnabled() {
		t.Error("Departed member should be released when the operation ends")
	}
}

func TestCoordinator_RestoresPriorDisabledState(t *testing.T) {
	c := New()
	a := NewElement("a")
	a.SetEnabled(false) // disabled for unrelated reasons before blocking

	c.BlockElement(a, opImport)
	c.UnblockElement(a, opImport)

	if a.IsEnabled() {
		t.Error("Unblock should restore the pre-block flag, not force-enable")
	}
}

func TestCoordinator_HookErrorKeepsBookkeeping(t *testing.T) {
	c := New()
	a := newHookedElement("a")
	a.blockErr = errors.New("widget gone")

	c.BlockElement(a, opImport)

	// Hook failed but the resource still counts as blocked (fail toward disabled)
	if !c.IsBlocked(a) {
		t.Error("Resource must count as blocked even when the block hook fails")
	}
	if ops := c.BlockingOperations(a); len(ops) != 1 || ops[0] != opImport {
		t.Errorf("Expected blocking set [import], got %v", ops)
	}
}

func TestCoordinator_HookPanicIsContained(t *testing.T) {
	c := New()
	a := newHookedElement("a")
	a.panicBlock = true

	// Must not panic out of the coordinator
	c.BlockElement(a, opImport)

	if !c.IsBlocked(a) {
		t.Error("Resource must count as blocked even when the block hook panics")
	}

	a.mu.Lock()
	a.panicBlock = false
	a.mu.Unlock()
	c.UnblockElement(a, opImport)
	if c.IsBlocked(a) {
		t.Error("Unblock should still work after a block hook panic")
	}
}

func TestCoordinator_UnregisterBlockedResource(t *testing.T) {
	c := New()
	a := NewElement("a")

	c.StartOperation(opImport, []Blockable{a}, nil)
	c.Unregister(a)

	// Ending after the resource is gone is a no-op for it
	c.EndOperation(opImport)

	if a.IsEnabled() {
		// Unregistering silently drops blocking entries; the resource keeps
		// whatever flag it had. No hook may run for it afterwards.
		t.Log("unregistered resource keeps its last applied flag")
	}
	if c.IsBlocked(a) {
		t.Error("Unregistered resource must not report blocked")
	}
}

func TestCoordinator_ScenarioGroupStartEnd(t *testing.T) {
	// Register {A, B} into group G; start Import on G disables both, end re-enables
	c := New()
	a := NewElement("A")
	b := NewElement("B")
	c.Register(a, "G")
	c.Register(b, "G")

	c.StartOperation(opImport, nil, []string{"G"})
	if a.IsEnabled() || b.IsEnabled() {
		t.Fatal("A and B should be disabled")
	}

	c.EndOperation(opImport)
	if !a.IsEnabled() || !b.IsEnabled() {
		t.Fatal("A and B should be re-enabled")
	}
}

func TestCoordinator_IsOperationActive(t *testing.T) {
	c := New()

	if c.IsOperationActive(opImport) {
		t.Error("Operation should start inactive")
	}
	c.StartOperation(opImport, nil, nil)
	if !c.IsOperationActive(opImport) {
		t.Error("Operation should be active after start")
	}
	c.EndOperation(opImport)
	if c.IsOperationActive(opImport) {
		t.Error("Operation should be inactive after end")
	}
}

func TestCoordinator_GroupHooks(t *testing.T) {
	c := New()
	a := NewElement("a")
	c.Register(a, "toolbar")

	groupBlocks := 0
	groupUnblocks := 0
	c.SetGroupHooks("toolbar", HookFuncs{
		Block:   func() error { groupBlocks++; return nil },
		Unblock: func() error { groupUnblocks++; return nil },
	})

	c.BlockGroup("toolbar", opImport)
	if groupBlocks != 1 {
		t.Errorf("Expected 1 group block hook call, got %d", groupBlocks)
	}
	if a.IsEnabled() {
		t.Error("Member should be disabled by group block")
	}

	c.UnblockGroup("toolbar", opImport)
	if groupUnblocks != 1 {
		t.Errorf("Expected 1 group unblock hook call, got %d", groupUnblocks)
	}
	if !a.IsEnabled() {
		t.Error("Member should be re-enabled by group unblock")
	}
}

func TestCoordinator_EventsEmitted(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()
	c := New(WithBus(bus))

	all := bus.SubscribeAll()
	a := NewElement("a")

	c.StartOperation(opImport, []Blockable{a}, nil)
	c.EndOperation(opImport)

	expected := []events.EventType{
		events.EventResourceBlocked,
		events.EventBlockingStateChanged,
		events.EventOperationStarted,
		events.EventResourceUnblocked,
		events.EventBlockingStateChanged,
		events.EventOperationEnded,
	}
	for i, want := range expected {
		select {
		case ev := <-all:
			if ev.Type() != want {
				t.Errorf("Event %d: expected %s, got %s", i, want, ev.Type())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for event %d (%s)", i, want)
		}
	}
}

func TestCoordinator_OperationStartedCarriesAffectedSet(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()
	c := New(WithBus(bus))

	started := bus.Subscribe(events.EventOperationStarted)
	a := NewElement("a")
	b := NewElement("b")
	c.Register(b, "G")

	c.StartOperation(opImport, []Blockable{a}, []string{"G"})

	select {
	case ev := <-started:
		oe := ev.(*events.OperationEvent)
		if len(oe.ResourceIDs) != 2 {
			t.Errorf("Expected 2 affected resources, got %v", oe.ResourceIDs)
		}
		if len(oe.Groups) != 1 || oe.Groups[0] != "G" {
			t.Errorf("Expected groups [G], got %v", oe.Groups)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for operation_started")
	}
}

func TestCoordinator_Snapshot(t *testing.T) {
	c := New()
	a := NewElement("a")
	c.Register(a, "G")
	c.StartOperation(opImport, nil, []string{"G"})

	snap := c.Snapshot()
	if len(snap.Resources) != 1 {
		t.Fatalf("Expected 1 resource, got %d", len(snap.Resources))
	}
	rs := snap.Resources[0]
	if rs.ID != "a" || rs.Enabled || len(rs.BlockedBy) != 1 {
		t.Errorf("Unexpected resource status: %+v", rs)
	}
	if len(snap.Operations) != 1 {
		t.Fatalf("Expected 1 active operation, got %d", len(snap.Operations))
	}
	os := snap.Operations[0]
	if os.Operation != opImport || len(os.Affected) != 1 || os.Affected[0] != "a" {
		t.Errorf("Unexpected operation status: %+v", os)
	}
}

func TestCoordinator_DispatcherReceivesHookWork(t *testing.T) {
	var dispatched int
	c := New(WithDispatcher(func(fn func()) {
		dispatched++
		fn()
	}))

	a := NewElement("a")
	c.BlockElement(a, opImport)
	c.UnblockElement(a, opImport)

	if dispatched != 2 {
		t.Errorf("Expected 2 dispatched hook invocations, got %d", dispatched)
	}
	if !a.IsEnabled() {
		t.Error("Hooks routed through the dispatcher should still apply")
	}
}

func TestCoordinator_ConcurrentOperations(t *testing.T) {
	c := New()
	shared := NewElement("shared")
	c.Register(shared)

	ops := []Operation{"op-0", "op-1", "op-2", "op-3", "op-4", "op-5", "op-6", "op-7"}

	var wg sync.WaitGroup
	for _, op := range ops {
		wg.Add(1)
		go func(op Operation) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.BlockElement(shared, op)
				c.UnblockElement(shared, op)
			}
		}(op)
	}
	wg.Wait()

	if c.IsBlocked(shared) {
		t.Error("Resource should be unblocked after all operations released")
	}
	if !shared.IsEnabled() {
		t.Error("Resource should be enabled after all operations released")
	}
}

func TestCoordinator_ConcurrentStartEnd(t *testing.T) {
	c := New()
	shared := NewElement("shared")
	c.Register(shared, "G")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			op := Operation([]string{"import", "export", "validate", "correct"}[n%4])
			for i := 0; i < 25; i++ {
				if c.StartOperation(op, nil, []string{"G"}) {
					c.EndOperation(op)
				}
			}
		}(i)
	}
	wg.Wait()

	if len(c.ActiveOperations()) != 0 {
		t.Errorf("Expected no active operations, got %v", c.ActiveOperations())
	}
	if c.IsBlocked(shared) {
		t.Error("Resource should end unblocked")
	}
}
