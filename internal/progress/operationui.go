package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// OperationUI renders one progress bar per concurrent operation. Bars are
// keyed by operation name so concurrent simulations can update their own
// bar independently.
type OperationUI struct {
	progress *mpb.Progress
	mu       sync.Mutex
	bars     map[string]*mpb.Bar
	isTTY    bool
}

// NewOperationUI creates a multi-operation progress display. When stderr is
// not a terminal the bars render to io.Discard and the UI stays silent.
func NewOperationUI() *OperationUI {
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTTY {
		enableWindowsANSI(os.Stderr)
		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &OperationUI{
		progress: p,
		bars:     make(map[string]*mpb.Bar),
		isTTY:    isTTY,
	}
}

// AddOperation registers a bar for the named operation with the given total
// step count. Re-adding an existing operation returns the existing bar.
func (ui *OperationUI) AddOperation(operation string, total int64) *mpb.Bar {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if bar, ok := ui.bars[operation]; ok {
		return bar
	}

	bar := ui.progress.New(total,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(operation, decor.WCSyncSpaceR),
			decor.Any(func(s decor.Statistics) string {
				return fmt.Sprintf("%d/%d", s.Current, s.Total)
			}, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Any(func(s decor.Statistics) string {
				if s.Completed {
					return "done"
				}
				return ""
			}, decor.WCSyncSpace),
		),
	)
	ui.bars[operation] = bar
	return bar
}

// Advance increments the named operation's bar by n steps.
func (ui *OperationUI) Advance(operation string, n int64) {
	ui.mu.Lock()
	bar := ui.bars[operation]
	ui.mu.Unlock()
	if bar != nil {
		bar.IncrInt64(n)
	}
}

// Complete marks the named operation's bar as finished at its current
// position.
func (ui *OperationUI) Complete(operation string) {
	ui.mu.Lock()
	bar := ui.bars[operation]
	ui.mu.Unlock()
	if bar != nil {
		bar.SetTotal(-1, true)
	}
}

// Wait blocks until all bars have rendered their final state.
func (ui *OperationUI) Wait() {
	ui.progress.Wait()
}

// Writer returns a writer that renders lines above the bars, so log output
// does not tear the display. When not a TTY it returns stderr directly.
func (ui *OperationUI) Writer() io.Writer {
	if !ui.isTTY {
		return os.Stderr
	}
	return ui.progress
}
