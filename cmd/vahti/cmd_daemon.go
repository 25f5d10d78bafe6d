package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/vahti/bootstrap"
	"github.com/yairfalse/vahti/connector"
	"github.com/yairfalse/vahti/registry"
	"github.com/yairfalse/vahti/telemetry"
)

var (
	daemonInterval    time.Duration
	daemonMetricsPort int
)

// daemonCmd runs the continuous governance loop
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the continuous governance daemon",
	Long: `Run vahti in daemon mode.

The daemon evaluates governance policies against every active
connection at the configured interval, keeps connection health
current, and serves Prometheus metrics.

Features:
- Periodic evaluation loop over all active connections
- Connection health checking with automatic error/recovery transitions
- Prometheus metrics on /metrics, health on /health
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  vahti daemon
  vahti daemon --interval 10m --metrics-port 9090`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 5*time.Minute, "Evaluation interval")
	daemonCmd.Flags().IntVar(&daemonMetricsPort, "metrics-port", 2112, "Metrics HTTP server port")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "vahti",
		ServiceVersion: version,
		OTELEndpoint:   app.Config.Telemetry["otel_endpoint"],
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	interval := daemonInterval
	if app.Config.Evaluation.Interval > 0 {
		interval = app.Config.Evaluation.Interval
	}

	var g run.Group

	// signal handling
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	// evaluation loop
	{
		loopCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return evaluationLoop(loopCtx, app, interval)
		}, func(error) {
			cancel()
		})
	}

	// connection health loop
	{
		healthCtx, cancel := context.WithCancel(ctx)
		checker := registry.NewHealthChecker(app.Registry, connector.New,
			app.Config.Health.Interval, app.Config.Health.Timeout)
		g.Add(func() error {
			return checker.Run(healthCtx)
		}, func(error) {
			cancel()
		})
	}

	// metrics and health endpoints
	{
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", daemonMetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Add(func() error {
			log.Info().Int("port", daemonMetricsPort).Msg("metrics server listening")
			return server.ListenAndServe()
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		})
	}

	log.Info().
		Dur("interval", interval).
		Msg("vahti daemon started")

	err = g.Run()
	if _, ok := err.(run.SignalError); ok {
		log.Info().Msg("shutting down")
		return nil
	}
	return err
}

func evaluationLoop(ctx context.Context, app *bootstrap.App, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	evaluateOnce(ctx, app)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			evaluateOnce(ctx, app)
		}
	}
}

func evaluateOnce(ctx context.Context, app *bootstrap.App) {
	results, err := app.Engine.EvaluateAll(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("evaluation pass failed")
		return
	}
	for _, r := range results {
		if r.Err != nil {
			log.Warn().
				Str("connection", r.Connection).
				Err(r.Err).
				Msg("connection failed evaluation")
		}
	}
}
