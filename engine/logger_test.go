package engine

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	ctx := NewContext(lua.NewState(), Options{})
	ctx.Close()

	if got := logs.FilterMessage("context created").Len(); got != 1 {
		t.Fatalf("created logs = %d, want 1", got)
	}
	closed := logs.FilterMessage("context closed").All()
	if len(closed) != 1 {
		t.Fatalf("closed logs = %d, want 1", len(closed))
	}
	if got := closed[0].ContextMap()["token"]; got != uint64(ctx.Token()) {
		t.Fatalf("token field = %v, want %d", got, ctx.Token())
	}
}

func TestSetLoggerNilRestoresNop(t *testing.T) {
	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger() returned nil")
	}
	Logger().Info("dropped")
}
