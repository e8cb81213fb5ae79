package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/okian/featreg/internal/adapters/http/api"
	"github.com/okian/featreg/internal/adapters/http/swagger"
	app "github.com/okian/featreg/internal/app"
	"github.com/okian/featreg/internal/config"
	"github.com/okian/featreg/pkg/logger"
	"github.com/okian/featreg/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Only the custom registry is exposed; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "featreg:", err)
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is canceled. It returns an error when configuration
// is invalid or the listener cannot bind.
func run(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsLatencyBuckets),
		metrics.WithConstLabels(cfg.MetricsConstLabels),
	)

	if err := logger.InitWithWriter(out, cfg.LogFormat); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithShardCount(cfg.ShardCount),
		app.WithChangeQueueSize(cfg.ChangeQueueSize),
		app.WithChangeWorkerCount(cfg.ChangeWorkerCount),
		app.WithChangeLogSize(cfg.ChangeLogSize),
	)

	// Bind before starting anything so an occupied port fails fast.
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = svc.Stop(ctx)
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	if err := svc.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("start service: %w", err)
	}

	srv := &http.Server{
		Handler:           newHandler(svc, cfg, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
		if err := svc.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop service: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	if err != nil {
		log.Error(ctx, "server stopped with error", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newHandler assembles every route behind one mux.
func newHandler(svc *app.Service, cfg *config.Config, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(mux)

	apiServer := api.NewServer(svc, svc,
		api.WithLogger(log.Named("http")),
		api.WithMaxChangesLimit(cfg.MaxChangesLimit),
		api.WithRateLimit(cfg.RateLimit, cfg.RateLimitBurst),
	)
	apiServer.Register(mux)
	return mux
}

// startSystemMetricsUpdater refreshes process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
