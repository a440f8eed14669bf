package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	goruntime "runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/luathread"
	"github.com/wippyai/luathread/config"
	"github.com/wippyai/luathread/engine"
	"github.com/wippyai/luathread/metrics/prometheus"
	"github.com/wippyai/luathread/runtime"
)

// session is the configured runtime shared by all commands.
type session struct {
	cfg       *config.Config
	log       *zap.Logger
	rt        *runtime.Runtime
	server    *http.Server
	stopWatch func()
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("module") {
		cfg.Module = c.String("module")
	}
	if c.Bool("no-lock-os-thread") {
		cfg.LockOSThread = false
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	if c.IsSet("exit-timeout") {
		cfg.ExitTimeout = c.Duration("exit-timeout")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSession(c *cli.Context, out, diag io.Writer) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	engine.SetLogger(logger.Named("engine"))

	s := &session{cfg: cfg, log: logger}

	rc := cfg.Runtime(logger.Named("runtime"))
	rc.Output = out
	rc.Diagnostics = diag

	if cfg.Metrics.Addr != "" {
		exporter, err := prometheus.NewExporter(cfg.Metrics.Namespace, nil, prometheus.ExporterOptions{})
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		rc.Metrics = exporter
		s.rt = runtime.New(rc)
		s.stopWatch = exporter.Watch(s.rt.Pins())
		s.serveMetrics(cfg.Metrics.Addr)
		return s, nil
	}

	s.rt = runtime.New(rc)
	return s, nil
}

func (s *session) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	s.log.Info("serving metrics", zap.String("addr", addr))
}

// Close stops the metrics endpoint and flushes the logger.
func (s *session) Close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	_ = s.log.Sync()
}

func (s *session) newState() *lua.LState {
	return luathread.NewState(s.rt, lua.Options{
		CallStackSize:       s.cfg.Lua.CallStackSize,
		RegistrySize:        s.cfg.Lua.RegistrySize,
		SkipOpenLibs:        s.cfg.Lua.SkipOpenLibs,
		IncludeGoStackTrace: s.cfg.Lua.IncludeGoStackTrace,
	})
}

// execScript runs path in a fresh state and closes it, leaving any handle the
// script did not join unreachable.
func (s *session) execScript(path string, args []string) error {
	L := s.newState()
	defer L.Close()

	argv := L.NewTable()
	argv.RawSetInt(0, lua.LString(path))
	for i, a := range args {
		argv.RawSetInt(i+1, lua.LString(a))
	}
	L.SetGlobal("arg", argv)

	if err := L.DoFile(path); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	return nil
}

// drain collects unjoined handles and waits for every thread to finish.
func (s *session) drain(ctx context.Context) error {
	goruntime.GC()

	if timeout := s.cfg.ExitTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.rt.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for %d running threads: %w", s.rt.Pins().Len(), err)
	}

	st := s.rt.Stats()
	s.log.Debug("all threads finished",
		zap.Uint64("spawned", st.Spawned),
		zap.Uint64("joined", st.Joined),
		zap.Uint64("detached", st.Detached),
		zap.Uint64("failed", st.Failed))
	return nil
}
