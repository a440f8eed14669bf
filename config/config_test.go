package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/wippyai/luathread/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Module != "thread" || !cfg.LockOSThread {
		t.Fatalf("default = %+v", cfg)
	}
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
module: threads
lock_os_thread: false
exit_timeout: 5s
lua:
  call_stack_size: 512
log:
  level: debug
  encoding: json
metrics:
  addr: ":9090"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.Module != "threads" {
		t.Errorf("module = %q", cfg.Module)
	}
	if cfg.LockOSThread {
		t.Error("lock_os_thread not applied")
	}
	if cfg.ExitTimeout != 5*time.Second {
		t.Errorf("exit_timeout = %v", cfg.ExitTimeout)
	}
	if cfg.Lua.CallStackSize != 512 {
		t.Errorf("call_stack_size = %d", cfg.Lua.CallStackSize)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("metrics.addr = %q", cfg.Metrics.Addr)
	}
	if cfg.Metrics.Namespace != "luathread" {
		t.Errorf("metrics.namespace default lost: %q", cfg.Metrics.Namespace)
	}

	rc := cfg.Runtime(nil)
	if !rc.SharedOSThreads || rc.ModuleName != "threads" || rc.Context.CallStackSize != 512 {
		t.Errorf("runtime config = %+v", rc)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if cfg.Module != "thread" {
		t.Fatalf("module = %q", cfg.Module)
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse(strings.NewReader("modul: thread\n"))
	if !errors.IsKind(err, errors.KindInvalidData) {
		t.Fatalf("error = %v, want invalid data", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty module", `module: ""`},
		{"negative timeout", `exit_timeout: -1s`},
		{"negative stack", "lua:\n  call_stack_size: -1"},
		{"bad level", "log:\n  level: loud"},
		{"bad encoding", "log:\n  encoding: xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			if !errors.IsKind(err, errors.KindInvalidInput) {
				t.Fatalf("error = %v, want invalid input", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "luathread.yaml")
	if err := os.WriteFile(path, []byte("module: tasks\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Module != "tasks" {
		t.Fatalf("module = %q", cfg.Module)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("loading a missing file succeeded")
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"

	logger, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info enabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("warn disabled at warn level")
	}
}
