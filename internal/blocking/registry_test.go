package blocking

import (
	"testing"
)

func TestResourceRegistry_RegisterIdempotent(t *testing.T) {
	reg := NewResourceRegistry()
	res := NewElement("table")

	first := reg.Register(res)
	first.blockedBy["import"] = struct{}{}

	second := reg.Register(res)
	if second != first {
		t.Fatal("Re-registering should return the existing entry")
	}
	if len(second.blockedBy) != 1 {
		t.Error("Re-registering must not reset blocking state")
	}
}

func TestResourceRegistry_BlockingOperationsSnapshot(t *testing.T) {
	reg := NewResourceRegistry()
	entry := reg.Register(NewElement("table"))
	entry.blockedBy["import"] = struct{}{}
	entry.blockedBy["export"] = struct{}{}

	ops := reg.BlockingOperations("table")
	if len(ops) != 2 {
		t.Fatalf("Expected 2 operations, got %d", len(ops))
	}
	if ops[0] != "export" || ops[1] != "import" {
		t.Errorf("Expected sorted [export import], got %v", ops)
	}

	// Mutating the snapshot must not touch the live set
	ops[0] = "mutated"
	if _, ok := entry.blockedBy["export"]; !ok {
		t.Error("Snapshot mutation leaked into the registry")
	}

	if !reg.IsBlocked("table") {
		t.Error("Resource with non-empty blocking set should report blocked")
	}
	if reg.IsBlocked("unknown") {
		t.Error("Unknown resource should not report blocked")
	}
}

func TestResourceRegistry_Unregister(t *testing.T) {
	reg := NewResourceRegistry()
	reg.Register(NewElement("table"))

	if entry := reg.Unregister("table"); entry == nil {
		t.Fatal("Unregister should return the removed entry")
	}
	if entry := reg.Unregister("table"); entry != nil {
		t.Error("Double unregister should return nil")
	}
	if len(reg.IDs()) != 0 {
		t.Error("Registry should be empty after unregister")
	}
}

func TestGroupRegistry_Membership(t *testing.T) {
	reg := NewGroupRegistry()

	reg.AddMember("toolbar", "a")
	reg.AddMember("toolbar", "b")
	reg.AddMember("menus", "a")

	members := reg.Members("toolbar")
	if len(members) != 2 || members[0] != "a" || members[1] != "b" {
		t.Errorf("Expected [a b], got %v", members)
	}

	reg.RemoveMember("toolbar", "a")
	if len(reg.Members("toolbar")) != 1 {
		t.Error("Expected 1 member after removal")
	}

	reg.RemoveFromAll("a")
	if len(reg.Members("menus")) != 0 {
		t.Error("RemoveFromAll should empty every group of the resource")
	}
}

func TestGroupRegistry_EnsureCreatesEmptyGroup(t *testing.T) {
	reg := NewGroupRegistry()

	if _, ok := reg.Entry("toolbar"); ok {
		t.Fatal("Group should not exist before first reference")
	}
	entry := reg.Ensure("toolbar")
	if entry == nil || len(entry.members) != 0 {
		t.Fatal("Ensure should create an empty group")
	}
	if again := reg.Ensure("toolbar"); again != entry {
		t.Error("Ensure should return the existing entry on later calls")
	}
}

func TestGroupRegistry_BlockingOperations(t *testing.T) {
	reg := NewGroupRegistry()
	entry := reg.Ensure("toolbar")
	entry.blockedBy["import"] = struct{}{}

	ops := reg.BlockingOperations("toolbar")
	if len(ops) != 1 || ops[0] != "import" {
		t.Errorf("Expected [import], got %v", ops)
	}
	if ops := reg.BlockingOperations("unknown"); ops != nil {
		t.Errorf("Unknown group should return nil, got %v", ops)
	}
}
