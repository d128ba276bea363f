package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc tears down one subsystem. The context carries the overall
// shutdown deadline.
type ShutdownFunc func(context.Context) error

type shutdownStage struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager coordinates graceful teardown of the platform server.
// The API server stops first so no new requests arrive, then registered
// stages run strictly in registration order: the server wires them so each
// stage only depends on stages that run after it (webhook draining before
// the database pool closes, for example).
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	timeout time.Duration

	mu     sync.Mutex
	stages []shutdownStage
}

// NewShutdownManager creates a manager for server. timeout bounds the whole
// teardown; zero means 30 seconds.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
	}
}

// RegisterShutdownFunc appends a named teardown stage. Stages run in the
// order they were registered.
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.stages = append(sm.stages, shutdownStage{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then tears the platform
// down: HTTP server first, then each registered stage in order. Every stage
// gets a chance to run even when an earlier one fails; the combined error
// is returned.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	sm.logger.WithField("signal", sig.String()).Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	var errs []error

	if sm.server != nil {
		sm.logger.Info("stopping API server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("API server shutdown failed")
			errs = append(errs, fmt.Errorf("api server: %w", err))
		}
	}

	sm.mu.Lock()
	stages := sm.stages
	sm.mu.Unlock()

	for _, stage := range stages {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("shutdown deadline reached before stage %q", stage.name))
			break
		}
		sm.logger.WithField("stage", stage.name).Info("running shutdown stage")
		if err := stage.fn(ctx); err != nil {
			sm.logger.WithError(err).WithField("stage", stage.name).Error("shutdown stage failed")
			errs = append(errs, fmt.Errorf("%s: %w", stage.name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	sm.logger.Info("graceful shutdown complete")
	return nil
}
