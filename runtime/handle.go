package runtime

import (
	goruntime "runtime"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luathread/engine"
	"github.com/wippyai/luathread/errors"
)

// Status is the lifecycle state of a thread handle.
type Status int32

const (
	// StatusRunning: the thread was launched and nobody has joined or detached it.
	StatusRunning Status = iota
	// StatusJoining: a join call is waiting for the thread to finish.
	StatusJoining
	// StatusJoined: a join call observed completion.
	StatusJoined
	// StatusDetached: the handle was collected while running.
	StatusDetached
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusJoining:
		return "joining"
	case StatusJoined:
		return "joined"
	case StatusDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// thread is the state shared by a handle, its goroutine and its cleanup.
// It must never point back at the Handle, or the handle could not be collected.
// The context itself is owned by the goroutine and the pin table, never by
// the thread, since a context may hold the handle's own userdata.
type thread struct {
	rt      *Runtime
	done    chan struct{}
	started time.Time
	id      uint64
	status  atomic.Int32
	failed  atomic.Bool
}

// Handle is the script-visible reference to one spawned thread.
//
// Exactly one of Join or collection of the handle takes the thread out of
// StatusRunning. When the handle is collected first, the thread is detached:
// it keeps running and nothing waits for it.
type Handle struct {
	t *thread
}

// Spawn runs fn(args...) on a new thread in an isolated context and returns
// without waiting. It fails before anything is created when fn is not a
// function, and before the thread starts when an argument cannot be moved.
func (r *Runtime) Spawn(L *lua.LState, fn lua.LValue, args ...lua.LValue) (*Handle, error) {
	f, ok := fn.(*lua.LFunction)
	if !ok {
		return nil, errors.InvalidArgument(errors.PhaseSpawn, 1, "function", luaTypeName(fn))
	}

	ctx := engine.NewContext(L, r.contextOptions())
	if err := ctx.Transfer(L, f, args); err != nil {
		ctx.Close()
		return nil, err
	}

	t := &thread{
		rt:      r,
		done:    make(chan struct{}),
		started: time.Now(),
		id:      uint64(ctx.Token()),
	}

	if err := r.pins.Pin(ctx.Token(), ctx); err != nil {
		ctx.Close()
		return nil, errors.Wrap(errors.PhasePin, errors.KindInvalidInput, err, "pin context")
	}

	h := &Handle{t: t}
	goruntime.AddCleanup(h, (*thread).finalize, t)

	r.spawned.Add(1)
	r.metrics.ThreadSpawned()
	r.log.Debug("thread spawned", zap.Uint64("thread", t.id), zap.Int("args", len(args)))

	go t.work(ctx)
	return h, nil
}

// ID returns the thread's identifier, which is also its pin token.
func (h *Handle) ID() uint64 {
	return h.t.id
}

// Status returns the handle's current lifecycle state.
func (h *Handle) Status() Status {
	return Status(h.t.status.Load())
}

// Failed reports whether the script function raised an error. It is only
// meaningful once Done is closed. Scripts never observe it: join succeeds
// either way.
func (h *Handle) Failed() bool {
	return h.t.failed.Load()
}

// Done is closed once the script function has returned and its context has
// been released and unpinned. Waiting on it does not join the handle.
func (h *Handle) Done() <-chan struct{} {
	return h.t.done
}

// Join blocks until the thread finishes, then marks the handle joined.
// It returns a KindDoubleJoin error when the handle is not running, including
// when another caller is already joining it.
func (h *Handle) Join() error {
	t := h.t
	if !t.status.CompareAndSwap(int32(StatusRunning), int32(StatusJoining)) {
		return errors.DoubleJoin(t.id, h.Status().String())
	}

	start := time.Now()
	<-t.done
	t.status.Store(int32(StatusJoined))

	r := t.rt
	r.joined.Add(1)
	r.metrics.ThreadJoined(time.Since(start))
	r.log.Debug("thread joined", zap.Uint64("thread", t.id))

	// Keep the cleanup from running while the join is in progress.
	goruntime.KeepAlive(h)
	return nil
}

func (t *thread) work(ctx *engine.Context) {
	if t.rt.lockOS {
		// Never unlocked: the OS thread is torn down when this goroutine exits.
		goruntime.LockOSThread()
	}
	defer close(t.done)
	defer t.finish(ctx)

	if err := ctx.Run(); err != nil {
		t.rt.report(t, err)
	}
}

// finish releases the context and unpins it before done is closed.
func (t *thread) finish(ctx *engine.Context) {
	r := t.rt
	if rec := recover(); rec != nil {
		t.failed.Store(true)
		r.failed.Add(1)
		r.log.Error("thread panicked",
			zap.Uint64("thread", t.id),
			zap.Any("panic", rec))
	}

	ctx.Close()
	r.pins.Unpin(ctx.Token())

	r.finished.Add(1)
	r.metrics.ThreadFinished(time.Since(t.started), t.failed.Load())
}

// finalize runs when the handle becomes unreachable. It never blocks.
func (t *thread) finalize() {
	r := t.rt
	if t.status.CompareAndSwap(int32(StatusRunning), int32(StatusDetached)) {
		r.detached.Add(1)
		r.metrics.ThreadDetached()
		r.log.Debug("thread handle collected while running, detached", zap.Uint64("thread", t.id))
		return
	}
	r.log.Debug("thread handle collected", zap.Uint64("thread", t.id),
		zap.Stringer("status", Status(t.status.Load())))
}

func (r *Runtime) report(t *thread, err error) {
	t.failed.Store(true)
	r.failed.Add(1)

	if e, ok := err.(*errors.Error); ok && e.Textual() {
		r.diagnose(e.Detail)
	}
	r.log.Warn("thread script failed", zap.Uint64("thread", t.id), zap.Error(err))
}

func luaTypeName(v lua.LValue) string {
	if v == nil {
		return lua.LTNil.String()
	}
	return v.Type().String()
}
