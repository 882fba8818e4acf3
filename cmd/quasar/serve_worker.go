package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oriys/quasar/internal/config"
	"github.com/oriys/quasar/internal/configsource"
	"github.com/oriys/quasar/internal/listener"
	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/procsup"
	"github.com/oriys/quasar/internal/proctitle"
	"github.com/oriys/quasar/internal/worker"
)

// runWorker reparses configPath (inherited via --config from the
// master's own re-exec) and starts the worker loop attached to the
// control channel at --worker-fd and whatever listener fds follow it
// in the inherited fd table (4, 5, 6, ... in cfg.Listen order, the
// same order master.spawnCohort built its ExtraFiles list from).
func runWorker() error {
	proctitle.Set("quasar: worker process")

	cfg, err := configsource.Load(context.Background(), configPath)
	if err != nil {
		return fmt.Errorf("worker: load config: %w", err)
	}
	config.LoadFromEnv(cfg)

	logging.SetLevelFromString(cfg.LogLevel)
	logging.InitStructured(cfg.LogFormat, cfg.LogLevel)

	channel := procsup.FromFD(uintptr(workerFD), "master-channel")

	listeners := make([]*listener.Listening, 0, len(cfg.Listen))
	for i := range cfg.Listen {
		fd := workerFD + 1 + i
		l, err := listener.AdoptInherited(fd)
		if err != nil {
			return fmt.Errorf("worker: adopt listener fd %d: %w", fd, err)
		}
		listeners = append(listeners, l)
	}

	w, err := worker.New(cfg, channel, listeners, cfg.AcceptLockPath)
	if err != nil {
		return fmt.Errorf("worker: init: %w", err)
	}

	if metricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", w.MetricsHandler())
		srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", metricsPort), Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Op().Warn("worker metrics server stopped", "error", err)
			}
		}()
	}

	w.Start()
	logging.Op().Info("worker started", "worker_fd", workerFD, "listeners", len(listeners))
	return w.Run(context.Background())
}
