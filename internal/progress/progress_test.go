package progress

import (
	"errors"
	"testing"
)

func TestNullProgress(t *testing.T) {
	// All methods must be safe no-ops.
	p := NewNullProgress()
	p.Start(100, "quiet")
	p.Update(50)
	p.SetDescription("still quiet")
	p.Error(errors.New("ignored"))
	p.Finish()
}

func TestCLIProgressWithoutStart(t *testing.T) {
	// Update/Finish before Start must not panic on the nil bar.
	p := NewCLIProgress()
	p.Update(10)
	p.SetDescription("early")
	p.Finish()
}

func TestOperationUIAddOperationIdempotent(t *testing.T) {
	ui := NewOperationUI()
	a := ui.AddOperation("import", 10)
	b := ui.AddOperation("import", 10)
	if a != b {
		t.Error("expected re-adding an operation to return the existing bar")
	}
	ui.Advance("import", 10)
	ui.Complete("import")
	ui.Wait()
}

func TestOperationUIUnknownOperation(t *testing.T) {
	ui := NewOperationUI()
	// Advancing or completing an operation that was never added is ignored.
	ui.Advance("missing", 1)
	ui.Complete("missing")
	ui.Wait()
}
