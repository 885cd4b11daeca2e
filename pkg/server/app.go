package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"MarketPulse/internal/service/broadcast"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle. Consumer, collector and
// sink are optional.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	hub        *broadcast.Hub
	sink       *broadcast.Sink
	scheduler  *usecase.Scheduler
	consumer   *pkgkafka.Consumer
	collector  *usecase.QuoteCollector

	wg sync.WaitGroup
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	hub *broadcast.Hub,
	sink *broadcast.Sink,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	collector *usecase.QuoteCollector,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		hub:        hub,
		sink:       sink,
		scheduler:  scheduler,
		consumer:   consumer,
		collector:  collector,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.goRun(func() { a.hub.Run(runCtx) })
	if a.sink != nil {
		a.goRun(func() { a.sink.Run(runCtx) })
		a.log.Info("insights sink started", applogger.String("topic", a.cfg.Kafka.InsightsTopic))
	}
	a.goRun(func() { a.scheduler.Run(runCtx) })
	a.log.Info("scheduler started", applogger.Duration("interval", a.cfg.Insights.RecomputeInterval))

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.EventsTopic))
	}

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(runCtx); err != nil {
				a.log.Error("collector error", applogger.Error(err))
			}
		}()
		a.log.Info("collector started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// shutdown gracefully stops all services. Inbound edges go first so no new
// events arrive while the rest drains.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("background workers did not stop in time")
	}

	a.log.Info("shutdown complete")
	return nil
}
