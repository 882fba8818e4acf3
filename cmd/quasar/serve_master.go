package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"github.com/oriys/quasar/internal/admin"
	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/configsource"
	"github.com/oriys/quasar/internal/fleet"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/master"
	"github.com/oriys/quasar/internal/observability"
	"github.com/oriys/quasar/internal/proctitle"
)

// runTestConfig loads and validates configPath without starting
// anything, matching nginx's own -t semantics.
func runTestConfig() error {
	cfg, err := configsource.Load(context.Background(), configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration file %s test failed: %v\n", configPath, err)
		return err
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration file %s test failed: %v\n", configPath, err)
		return err
	}
	fmt.Printf("configuration file %s test is successful\n", configPath)
	return nil
}

// runMaster loads the ambient stack (logging, tracing), starts the
// master loop, and wires the optional admin gRPC surface and fleet
// notifier on top of it.
func runMaster() error {
	proctitle.Set("quasar: master process")

	ctx := context.Background()
	cfg, err := configsource.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.LoadFromEnv(cfg)

	logging.SetLevelFromString(cfg.LogLevel)
	logging.InitStructured(cfg.LogFormat, cfg.LogLevel)

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.TracingEnabled,
		Exporter:    cfg.TracingExporter,
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: "quasar",
		SampleRate:  cfg.TracingSampleRate,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.Shutdown(ctx)

	m, err := master.New(configPath)
	if err != nil {
		return fmt.Errorf("master: init: %w", err)
	}

	var adminServer *grpc.Server
	if cfg.AdminSocket != "" {
		_ = os.Remove(cfg.AdminSocket)
		lis, err := net.Listen("unix", cfg.AdminSocket)
		if err != nil {
			return fmt.Errorf("admin: listen %s: %w", cfg.AdminSocket, err)
		}
		adminServer = admin.Serve(lis, m)
		logging.Op().Info("admin API listening", "socket", cfg.AdminSocket)
		defer adminServer.GracefulStop()
	}

	if cfg.RedisAddr != "" {
		hostname, _ := os.Hostname()
		notifier := fleet.New(fleet.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.FleetChannel,
			Origin:   hostname,
		})
		fleetCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		defer notifier.Close()
		go func() {
			if err := notifier.Subscribe(fleetCtx, m.Flags()); err != nil && fleetCtx.Err() == nil {
				logging.Op().Warn("fleet: subscribe stopped", "error", err)
			}
		}()
	}

	if err := m.Start(); err != nil {
		return fmt.Errorf("master: start: %w", err)
	}

	logging.Op().Info("quasar master started", "config", configPath, "pid", os.Getpid())
	return m.Run(ctx)
}
