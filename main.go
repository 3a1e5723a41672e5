// Command proxywhirl runs the proxy-rotation control plane: it loads
// configuration, wires the collaborator graph in internal/app, and serves
// until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/app"
	"github.com/proxywhirl/proxywhirl/internal/config"
	"github.com/proxywhirl/proxywhirl/internal/env"
	"github.com/proxywhirl/proxywhirl/internal/logger"
	"github.com/proxywhirl/proxywhirl/internal/version"
	"github.com/proxywhirl/proxywhirl/pkg/format"
	"github.com/proxywhirl/proxywhirl/pkg/nerdstats"
)

func main() {
	startTime := time.Now()
	vlog := log.New(log.Writer(), "", 0)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	} else {
		version.PrintVersionInfo(false, vlog)
	}

	lcfg := buildLoggerConfig()
	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		styledLogger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	application, cfg, err := buildApplication(logInstance)
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to build application", "error", err)
	}
	_ = cfg

	if err := application.Start(ctx); err != nil {
		logger.FatalWithLogger(logInstance, "Failed to start application", "error", err)
	}

	<-ctx.Done()

	if err := application.Stop(context.Background()); err != nil {
		styledLogger.Error("Error during shutdown", "error", err)
	}

	reportProcessStats(styledLogger, startTime)

	styledLogger.Info("ProxyWhirl has shutdown")
}

// buildApplication loads configuration (with hot-reload wired back into the
// rotator once the Application exists) and constructs the collaborator
// graph.
func buildApplication(logInstance *slog.Logger) (*app.Application, *config.Config, error) {
	var application *app.Application

	cfg, err := config.Load(func(reloaded *config.Config) {
		if application != nil {
			application.OnConfigChange(reloaded)
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	application, err = app.New(cfg, logInstance)
	if err != nil {
		return nil, nil, fmt.Errorf("building application: %w", err)
	}
	return application, cfg, nil
}

func reportProcessStats(logger *logger.StyledLogger, startTime time.Time) {
	runtime.GC()

	stats := nerdstats.Snapshot(startTime)

	logger.Info("Process Memory Stats",
		"heap_alloc", format.Bytes(stats.HeapAlloc),
		"heap_sys", format.Bytes(stats.HeapSys),
		"heap_inuse", format.Bytes(stats.HeapInuse),
		"heap_released", format.Bytes(stats.HeapReleased),
		"stack_inuse", format.Bytes(stats.StackInuse),
		"total_alloc", format.Bytes(stats.TotalAlloc),
		"memory_pressure", stats.GetMemoryPressure(),
	)

	logger.Info("Process Allocation Stats",
		"total_mallocs", stats.Mallocs,
		"total_frees", stats.Frees,
		"net_objects", int64(stats.Mallocs)-int64(stats.Frees),
	)

	if stats.NumGC > 0 {
		logger.Info("Garbage Collection Stats",
			"num_gc_cycles", stats.NumGC,
			"last_gc", stats.LastGC.Format(time.RFC3339),
			"total_gc_time", format.Duration(stats.TotalGCTime),
			"gc_cpu_fraction", fmt.Sprintf("%.4f%%", stats.GCCPUFraction*100),
		)
	}

	logger.Info("Goroutine Stats",
		"num_goroutines", stats.NumGoroutines,
		"goroutine_health", stats.GetGoroutineHealthStatus(),
		"num_cgo_calls", stats.NumCgoCall,
	)

	logger.Info("Runtime Stats",
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
		"num_cpu", stats.NumCPU,
		"gomaxprocs", stats.GOMAXPROCS,
	)

	if buildInfo := stats.GetBuildInfoSummary(); len(buildInfo) > 0 {
		var buildArgs []any
		for key, value := range buildInfo {
			buildArgs = append(buildArgs, key, value)
		}
		logger.Info("Build Info", buildArgs...)
	}

	logger.Info("Process Health Summary",
		"memory_pressure", stats.GetMemoryPressure(),
		"goroutine_status", stats.GetGoroutineHealthStatus(),
		"uptime", format.Duration(stats.Uptime),
		"avg_gc_pause", nerdstats.CalculateAverageGCPause(stats),
	)
}

// buildLoggerConfig creates logger config from environment variables with
// defaults, read before internal/config has loaded so startup logging is
// always available.
func buildLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      env.GetEnvOrDefault("PROXYWHIRL_LOG_LEVEL", "info"),
		FileOutput: env.GetEnvBoolOrDefault("PROXYWHIRL_FILE_OUTPUT", true),
		LogDir:     env.GetEnvOrDefault("PROXYWHIRL_LOG_DIR", "./logs"),
		MaxSize:    env.GetEnvIntOrDefault("PROXYWHIRL_MAX_SIZE", 100),
		MaxBackups: env.GetEnvIntOrDefault("PROXYWHIRL_MAX_BACKUPS", 3),
		MaxAge:     env.GetEnvIntOrDefault("PROXYWHIRL_MAX_AGE", 28),
		Theme:      env.GetEnvOrDefault("PROXYWHIRL_THEME", "default"),
	}
}
