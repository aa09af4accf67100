// Command hubd is the aggregator daemon: it loads configuration, opens the
// durable cache, registers providers, starts the scheduler, loads plugins
// and serves the JSON-RPC surface until signaled to stop. Wiring follows
// the teacher's cmd/goats daemon-entrypoint shape (flags via spf13/cobra,
// structured startup logging, a graceful-shutdown signal handler), adapted
// from goats' HTTP server bootstrap to this package's TCP JSON-RPC one.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/raibid-labs/scryhub/internal/cache"
	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/hubconfig"
	"github.com/raibid-labs/scryhub/internal/pluginrt"
	"github.com/raibid-labs/scryhub/internal/provider/nativemail"
	"github.com/raibid-labs/scryhub/internal/provider/nativepop3"
	"github.com/raibid-labs/scryhub/internal/registry"
	"github.com/raibid-labs/scryhub/internal/rpcservice"
	"github.com/raibid-labs/scryhub/internal/scheduler"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hubd:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, pluginDir string

	cmd := &cobra.Command{
		Use:   "hubd",
		Short: "Run the scryhub aggregator daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, pluginDir)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.toml (defaults to $XDG_CONFIG_HOME/scryhub/config.toml)")
	cmd.Flags().StringVar(&pluginDir, "plugin-dir", "", "scan only this directory for plugins instead of the XDG search path")
	return cmd
}

func run(ctx context.Context, configPath, pluginDir string) error {
	cfg, err := hubconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Daemon.LogLevel)
	slog.SetDefault(logger)

	cachePath, err := cfg.CachePath()
	if err != nil {
		return fmt.Errorf("resolve cache path: %w", err)
	}
	cacheMetrics := cache.NewMetrics()
	c, err := cache.Open(cachePath, cacheMetrics)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer c.Close()

	reg := registry.New()
	registerNativeProviders(reg, cfg)

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()
	tokens := noCredentialsTokenFetcher{}
	hostFor := func(pluginID string, caps domain.CapabilitySet) pluginrt.HostFunctions {
		return pluginrt.NewDefaultHostFunctions(pluginID, rdb, tokens, logger.With("plugin", pluginID))
	}
	pluginManager := pluginrt.NewManager(hostFor)

	schedMetrics := scheduler.NewMetrics()
	if err := schedMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("register scheduler metrics failed", "error", err)
	}
	sched := scheduler.New(reg, c, cfg.Cache.MaxItemsPerStream, scheduler.WithLogger(logger), scheduler.WithMetrics(schedMetrics))

	schedules := buildSchedules(cfg)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := sched.Start(runCtx, schedules); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if pluginDir != "" {
		if errs, err := pluginManager.LoadDiscoveredFrom(pluginDir); err != nil {
			logger.Warn("plugin discovery failed", "dir", pluginDir, "error", err)
		} else {
			for _, e := range errs {
				logger.Warn("plugin load failed", "error", e)
			}
		}
	} else if errs, err := pluginManager.LoadDiscovered(); err != nil {
		logger.Warn("plugin discovery failed", "error", err)
	} else {
		for _, e := range errs {
			logger.Warn("plugin load failed", "error", e)
		}
	}

	if err := pluginManager.WatchForChanges(runCtx, logger); err != nil {
		logger.Warn("plugin hot-reload watcher failed to start", "error", err)
	}

	srv := rpcservice.New(reg, c, sched, logger)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(runCtx, cfg.Daemon.BindAddress)
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("hubd: shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("hubd: rpc server exited", "error", err)
		}
	}

	cancel()
	if err := sched.Shutdown(context.Background()); err != nil {
		logger.Warn("scheduler shutdown", "error", err)
	}
	if err := srv.Shutdown(); err != nil {
		logger.Warn("rpc server shutdown", "error", err)
	}
	return nil
}

// registerNativeProviders wires up the native (non-plugin) providers this
// daemon ships, per SPEC_FULL.md §4.C: IMAP and POP3 mail feeds. Individual
// plugin-backed provider adapters are registered separately via pluginManager.
func registerNativeProviders(reg *registry.Registry, cfg hubconfig.Config) {
	for id, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		switch pc.Settings["kind"] {
		case "nativemail":
			nc := nativemail.Config{ProviderID: id}
			if host, ok := pc.Settings["host"].(string); ok {
				nc.Host = host
			}
			if user, ok := pc.Settings["username"].(string); ok {
				nc.Username = user
			}
			if pass, ok := pc.Settings["password"].(string); ok {
				nc.Password = pass
			}
			if port, ok := pc.Settings["port"].(int); ok {
				nc.Port = port
			}
			if tls, ok := pc.Settings["tls"].(bool); ok {
				nc.TLS = tls
			}
			reg.Register(nativemail.New(nc))
		case "nativepop3":
			nc := nativepop3.Config{ProviderID: id}
			if host, ok := pc.Settings["host"].(string); ok {
				nc.Host = host
			}
			if user, ok := pc.Settings["username"].(string); ok {
				nc.Username = user
			}
			if pass, ok := pc.Settings["password"].(string); ok {
				nc.Password = pass
			}
			if port, ok := pc.Settings["port"].(int); ok {
				nc.Port = port
			}
			if tls, ok := pc.Settings["tls"].(bool); ok {
				nc.TLS = tls
			}
			if del, ok := pc.Settings["delete_after_fetch"].(bool); ok {
				nc.DeleteAfterFetch = del
			}
			reg.Register(nativepop3.New(nc))
		}
	}
}

// buildSchedules translates hubconfig's per-provider section into the
// scheduler's ProviderSchedule map, in minutes per spec §6.
func buildSchedules(cfg hubconfig.Config) map[string]scheduler.ProviderSchedule {
	schedules := make(map[string]scheduler.ProviderSchedule, len(cfg.Providers))
	for id, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		schedules[id] = scheduler.ProviderSchedule{Interval: minutesToDuration(pc.SyncIntervalMinutes)}
	}
	return schedules
}
