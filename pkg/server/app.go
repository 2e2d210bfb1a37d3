package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinFuse/internal/usecase"
	"FinFuse/pkg/config"
	xhttp "FinFuse/pkg/http"
	pkgkafka "FinFuse/pkg/kafka"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/ws"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer // nil when kafka is disabled
	handlers   []pkgkafka.MessageHandler
	snapshots  *usecase.Snapshotter
	drift      *usecase.DriftUsecase
	hub        *ws.Hub // nil when streaming is disabled

	snapshotWG sync.WaitGroup
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *logger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	snapshots *usecase.Snapshotter,
	drift *usecase.DriftUsecase,
	hub *ws.Hub,
) *App {
	if log == nil {
		log = logger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		consumer:   consumer,
		handlers:   handlers,
		snapshots:  snapshots,
		drift:      drift,
		hub:        hub,
	}
}

// Run starts the HTTP server, the Kafka consumer and the snapshot ticker, then blocks
// until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	snapCtx, stopSnapshots := context.WithCancel(context.Background())
	defer stopSnapshots()

	if a.consumer != nil {
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", logger.Strings("topics", topics))
	}

	if a.snapshots != nil && a.cfg.Snapshot.Interval > 0 {
		a.snapshotWG.Add(1)
		go func() {
			defer a.snapshotWG.Done()
			a.snapshots.Run(snapCtx, a.cfg.Snapshot.Interval)
		}()
		a.log.Info("snapshot ticker started", logger.Duration("interval", a.cfg.Snapshot.Interval))
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-a.httpServer.Errors():
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownErr := a.shutdown(stopSnapshots)
	return errors.Join(runErr, shutdownErr)
}

// shutdown stops intake first, then drains background work. Infrastructure clients are
// released afterwards by the cleanup returned from di.InitializeApp.
func (a *App) shutdown(stopSnapshots context.CancelFunc) error {
	a.log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
		errs = append(errs, err)
	}
	// hijacked stream connections are not tracked by the HTTP server
	if a.hub != nil {
		_ = a.hub.Close()
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
			errs = append(errs, err)
		}
	}

	// The ticker publishes a final snapshot on its way out.
	stopSnapshots()
	a.snapshotWG.Wait()

	if a.drift != nil {
		if err := a.drift.Wait(ctx); err != nil {
			a.log.Warn("pending recommendations not delivered", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
