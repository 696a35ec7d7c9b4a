package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/shortontech/pendoconsumer/internal/consumer"
	"github.com/shortontech/pendoconsumer/internal/metrics"
	"github.com/shortontech/pendoconsumer/internal/vendor"
	"github.com/shortontech/pendoconsumer/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pendoconsumer: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg, os.Stderr)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdin); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config, out io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "pendoconsumer",
		Level:      hclog.LevelFromString(cfg.LogLevel),
		Output:     out,
		JSONFormat: cfg.LogJSON,
	})
}

func run(ctx context.Context, cfg config.Config, logger hclog.Logger, in io.Reader) error {
	appMetrics := metrics.InitMetrics()
	metricsSrv := metrics.NewServer(metrics.LoadConfig(), logger.Named("metrics"))
	if err := metricsSrv.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	clients := initializeClients(cfg.Outputs, logger, appMetrics)
	if len(clients) == 0 {
		return fmt.Errorf("no usable outputs in %v", cfg.Outputs)
	}
	client := vendor.NewFanout(clients...)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing vendor clients", "error", err)
		}
	}()

	adapter, err := newAdapter(cfg, client, logger)
	if err != nil {
		return err
	}
	installType, err := consumer.ParseInstallType(cfg.InstallType)
	if err != nil {
		return err
	}

	if err := adapter.Initialize(ctx, installType, consumer.HostContext{}); err != nil {
		if errors.Is(err, consumer.ErrDisallowedInstallType) {
			appMetrics.IncrementGateRejections(installType.String())
			logger.Warn("analytics disabled for this install type", "install_type", installType, "enabled", adapter.EnabledInstallTypes())
			return nil
		}
		return fmt.Errorf("initialize %s: %w", client.Name(), err)
	}
	logger.Info("relaying analytics", "vendor", client.Name(), "install_type", installType, "redacted", adapter.Redacted())

	if cfg.TestMode {
		runTestMode(adapter, logger)
		return nil
	}

	stats, err := relay(ctx, adapter, in, logger)
	logger.Info("relay finished", "relayed", stats.Relayed, "failed", stats.Failed)
	return err
}

func newAdapter(cfg config.Config, client vendor.Client, logger hclog.Logger) (*consumer.Adapter, error) {
	enabled, err := consumer.ParseInstallTypes(cfg.EnabledInstallTypes)
	if err != nil {
		return nil, err
	}
	redacted := cfg.Redacted
	return consumer.New(client, consumer.Config{
		SDKKey:              cfg.SDKKey,
		EnabledInstallTypes: enabled,
		Redacted:            &redacted,
	}, consumer.WithLogger(logger.Named("consumer")))
}

// initializeClients builds one instrumented backend per known output name.
func initializeClients(outputs []string, logger hclog.Logger, m *metrics.Metrics) []vendor.Client {
	var clients []vendor.Client
	for _, output := range outputs {
		var c vendor.Client
		switch output {
		case "log":
			c = vendor.NewLogClient()
		case "kafka":
			c = vendor.NewKafkaClientFromEnv(logger.Named("kafka"))
		case "postgres":
			c = vendor.NewPGClientFromEnv()
		case "http":
			c = vendor.NewHTTPClientFromEnv()
		default:
			logger.Warn("unknown output, skipping", "output", output)
			continue
		}
		clients = append(clients, vendor.Instrument(c, m))
	}
	return clients
}
