package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streampref/streampref/component"
	"github.com/streampref/streampref/config"
	"github.com/streampref/streampref/engine"
	"github.com/streampref/streampref/input/natsdelta"
	"github.com/streampref/streampref/metric"
	"github.com/streampref/streampref/natsclient"
	"github.com/streampref/streampref/output/natsresult"
	"github.com/streampref/streampref/pkg/retry"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the query engine until interrupted or the configured end timestamp",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			logger := setupLogger(flagLogLevel, flagLogFormat)
			return runService(cmd.Context(), cfg, logger)
		},
	}
}

func runService(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		registry *metric.MetricsRegistry
		metrics  *metric.Metrics
	)
	if cfg.Metrics.Enabled {
		registry = metric.NewMetricsRegistry()
		metrics = registry.CoreMetrics()
	}

	eng, err := engine.NewEngine(cfg, logger, registrarOrNil(registry))
	if err != nil {
		return err
	}
	logger.Info("queries compiled", "queries", eng.Queries())

	schema, err := cfg.TupleSchema()
	if err != nil {
		return err
	}

	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithClientName(appName),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = retry.Do(connectCtx, retry.DefaultConfig(), func() error {
		return client.Connect(connectCtx)
	})
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), flagShutdownTimeout)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Error("NATS close failed", "error", err)
		}
	}()

	input := natsdelta.NewInput(natsdelta.Deps{
		Subject:    cfg.NATS.InputSubject,
		NATSClient: client,
		Schema:     schema,
		Metrics:    metrics,
		Logger:     logger,
	})
	output := natsresult.NewOutput(natsresult.Deps{
		SubjectPrefix: cfg.NATS.ResultSubjectPrefix,
		NATSClient:    client,
		Metrics:       metrics,
		Logger:        logger,
	})

	manager := component.NewManager(logger)
	manager.Register(output)
	manager.Register(input)
	if err := manager.StartAll(ctx, flagShutdownTimeout); err != nil {
		return err
	}
	defer func() {
		if err := manager.StopAll(flagShutdownTimeout); err != nil {
			logger.Error("component shutdown failed", "error", err)
		}
	}()

	var metricServer *metric.Server
	if registry != nil {
		metricServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		go func() {
			if err := metricServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metric server failed", "error", err)
			}
		}()
		defer func() {
			if err := metricServer.Stop(); err != nil {
				logger.Error("metric server stop failed", "error", err)
			}
		}()
		logger.Info("metrics exposed", "address", metricServer.Address())
	}

	metrics.RecordServiceStatus(appName, 1)
	defer metrics.RecordServiceStatus(appName, 0)

	logger.Info("engine running",
		"input", cfg.NATS.InputSubject,
		"results", cfg.NATS.ResultSubjectPrefix)

	err = eng.Run(ctx, input.Ticks(), func(res engine.Result) error {
		return output.Publish(ctx, res)
	})
	if errors.Is(err, context.Canceled) {
		logger.Info("shutdown requested")
		return nil
	}
	return err
}

// registrarOrNil keeps the nil registry out of the non-nil interface
// value trap
func registrarOrNil(r *metric.MetricsRegistry) metric.MetricsRegistrar {
	if r == nil {
		return nil
	}
	return r
}
