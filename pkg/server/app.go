package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockPulse/internal/handler/api"
	internalrepo "StockPulse/internal/repository"
	"StockPulse/internal/service/marketdata"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	xlogger "StockPulse/pkg/logger"
)

// sweepInterval bounds memory held by idle view-limiter entries.
const sweepInterval = 10 * time.Minute

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *xlogger.Logger
	handler    *api.MarketHandler
	market     *marketdata.Cache
	store      *internalrepo.SQLiteStore
	views      *ratelimit.ViewLimiter
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *xlogger.Logger,
	handler *api.MarketHandler,
	market *marketdata.Cache,
	store *internalrepo.SQLiteStore,
	views *ratelimit.ViewLimiter,
) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		handler: handler,
		market:  market,
		store:   store,
		views:   views,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed the market datasets in the background. Failures degrade to the
	// built-in fallbacks and never delay the listener.
	warm := a.market.Start(ctx)
	go func() {
		<-warm
		a.log.Info("market datasets warmed")
	}()

	go a.sweepLoop(ctx)

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithServerLogger(a.log),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", xlogger.Error(err))
		return err
	}
	a.log.Info("server started",
		xlogger.Int("port", a.cfg.Server.Port),
		xlogger.String("env", a.cfg.Environment),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.views.Sweep()
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", xlogger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close error", xlogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
