package keygate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Status of the credential gate. All generation calls are blocked until
// the gate reports StatusPresent.
type Status int

const (
	StatusUnknown Status = iota
	StatusAbsent
	StatusPresent
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusPresent:
		return "present"
	default:
		return "unknown"
	}
}

// Selector is the externally supplied interactive credential flow. The
// gate calls it but does not implement it.
type Selector interface {
	HasSelectedKey(ctx context.Context) (bool, error)
	OpenSelectKey(ctx context.Context) error
}

type Options struct {
	Selector Selector
	Logger   *slog.Logger
	// OnChange observes status transitions; the presentation layer uses it
	// to switch between the gated entry screen and the main application.
	OnChange func(Status)
}

// Gate tracks whether a usable credential is currently selected. One
// instance per process, shared by every operation.
type Gate struct {
	mu       sync.Mutex
	status   Status
	selector Selector
	logger   *slog.Logger
	onChange func(Status)
}

func New(opts Options) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{
		status:   StatusUnknown,
		selector: opts.Selector,
		logger:   logger,
		onChange: opts.OnChange,
	}
}

func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Probe asks the selector whether a credential is already selected. Never
// returns an error: a failed probe is treated as absent.
func (g *Gate) Probe(ctx context.Context) Status {
	selected, err := g.selector.HasSelectedKey(ctx)
	if err != nil {
		g.logger.Warn("credential probe failed", "err", err)
		selected = false
	}

	status := StatusAbsent
	if selected {
		status = StatusPresent
	}
	g.set(status)
	return status
}

// EnsureSelected blocks until a credential is available, surfacing the
// interactive selection flow when the current status is not present. After
// the selection flow resolves the gate optimistically trusts it succeeded;
// no re-probe is performed.
func (g *Gate) EnsureSelected(ctx context.Context) error {
	if g.Status() == StatusPresent {
		return nil
	}

	if err := g.selector.OpenSelectKey(ctx); err != nil {
		g.set(StatusAbsent)
		return fmt.Errorf("key selection: %w", err)
	}

	g.set(StatusPresent)
	return nil
}

// ReportInvalid reverts the gate to absent after a generation call failed
// with a credential signature, re-inviting selection on the next attempt.
func (g *Gate) ReportInvalid() {
	g.logger.Warn("credential reported invalid, reverting to absent")
	g.set(StatusAbsent)
}

func (g *Gate) set(status Status) {
	g.mu.Lock()
	changed := g.status != status
	g.status = status
	onChange := g.onChange
	g.mu.Unlock()

	if changed && onChange != nil {
		onChange(status)
	}
}
