package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luathread/engine"
	"github.com/wippyai/luathread/pin"
)

// DefaultModuleName is the global and require() name of the script module.
const DefaultModuleName = "thread"

// Config configures a Runtime. The zero value is usable.
type Config struct {
	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics defaults to NopMetrics.
	Metrics Metrics

	// Pins defaults to pin.Roots().
	Pins *pin.Table

	// Diagnostics receives "Error: <message>" lines for scripts that fail with
	// a string error. Defaults to os.Stderr.
	Diagnostics io.Writer

	// Output receives the w() report. Defaults to os.Stdout.
	Output io.Writer

	// ModuleName defaults to DefaultModuleName.
	ModuleName string

	// Context sizes the interpreter state of every spawned thread. Setup runs
	// after the module is opened in the new state; MoveUserData is consulted
	// for userdata that is not a thread handle.
	Context engine.Options

	// SharedOSThreads runs scripts on the Go scheduler's shared threads instead
	// of giving every spawned thread an OS thread of its own.
	SharedOSThreads bool
}

// Runtime spawns and tracks script threads.
type Runtime struct {
	log        *zap.Logger
	metrics    Metrics
	pins       *pin.Table
	diag       io.Writer
	out        io.Writer
	moduleName string
	ctxOpts    engine.Options
	lockOS     bool

	spawned  atomic.Uint64
	finished atomic.Uint64
	joined   atomic.Uint64
	detached atomic.Uint64
	failed   atomic.Uint64

	diagMu sync.Mutex
	outMu  sync.Mutex
}

// New creates a Runtime.
func New(cfg Config) *Runtime {
	r := &Runtime{
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		pins:       cfg.Pins,
		diag:       cfg.Diagnostics,
		out:        cfg.Output,
		moduleName: cfg.ModuleName,
		ctxOpts:    cfg.Context,
		lockOS:     !cfg.SharedOSThreads,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.metrics == nil {
		r.metrics = NopMetrics{}
	}
	if r.pins == nil {
		r.pins = pin.Roots()
	}
	if r.diag == nil {
		r.diag = os.Stderr
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.moduleName == "" {
		r.moduleName = DefaultModuleName
	}
	return r
}

// Pins returns the table running contexts are pinned in.
func (r *Runtime) Pins() *pin.Table {
	return r.pins
}

// ModuleName returns the name the script module is registered under.
func (r *Runtime) ModuleName() string {
	return r.moduleName
}

// Stats returns current counters.
func (r *Runtime) Stats() Stats {
	return Stats{
		Spawned:  r.spawned.Load(),
		Finished: r.finished.Load(),
		Joined:   r.joined.Load(),
		Detached: r.detached.Load(),
		Failed:   r.failed.Load(),
		Pinned:   r.pins.Len(),
	}
}

// Wait blocks until no context is pinned in the runtime's table, which means
// every thread launched through it, joined or detached, has finished.
func (r *Runtime) Wait(ctx context.Context) error {
	return r.pins.Wait(ctx)
}

func (r *Runtime) contextOptions() engine.Options {
	opts := r.ctxOpts
	setup := opts.Setup
	moveUserData := opts.MoveUserData
	opts.Setup = func(L *lua.LState) {
		r.Open(L)
		if setup != nil {
			setup(L)
		}
	}
	opts.MoveUserData = func(dst *lua.LState, ud *lua.LUserData) (lua.LValue, bool) {
		if h, ok := ud.Value.(*Handle); ok {
			return r.newHandleValue(dst, h), true
		}
		if moveUserData != nil {
			return moveUserData(dst, ud)
		}
		return nil, false
	}
	return opts
}

// diagnose writes a best-effort report for a failed script.
func (r *Runtime) diagnose(msg string) {
	r.diagMu.Lock()
	defer r.diagMu.Unlock()
	if _, err := fmt.Fprintf(r.diag, "Error: %s\n", msg); err != nil {
		r.log.Debug("write diagnostic", zap.Error(err))
	}
}
