package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "CrudeDesk/internal/domain/repository"
	"CrudeDesk/internal/handler/api"
	internalrepo "CrudeDesk/internal/repository"
	"CrudeDesk/internal/service/quotes"
	"CrudeDesk/internal/usecase"
	pkgch "CrudeDesk/pkg/clickhouse"
	"CrudeDesk/pkg/config"
	xhttp "CrudeDesk/pkg/http"
	applogger "CrudeDesk/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	resolver   *usecase.Resolver
	refresher  *usecase.Refresher
	quotes     *quotes.Stream
	chClient   *pkgch.Client
	store      *internalrepo.CHArtifactStore
	notifier   *internalrepo.KafkaNotifier
	cache      domrepo.ArtifactCache
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	resolver *usecase.Resolver,
	refresher *usecase.Refresher,
	quotesStream *quotes.Stream,
	chClient *pkgch.Client,
	store *internalrepo.CHArtifactStore,
	notifier *internalrepo.KafkaNotifier,
	cache domrepo.ArtifactCache,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		resolver:  resolver,
		refresher: refresher,
		quotes:    quotesStream,
		chClient:  chClient,
		store:     store,
		notifier:  notifier,
		cache:     cache,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := api.NewMarketHandler(a.log, a.resolver, a.cfg.Auth.Tokens)
	a.httpServer = xhttp.NewServer(handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.quotes != nil {
		a.quotes.Start(ctx)
		a.log.Info("quote stream started")
	}

	if a.refresher != nil {
		a.refresher.Start()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("serving", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.refresher != nil {
		a.refresher.Stop()
	}
	if a.quotes != nil {
		a.quotes.Stop()
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.log.Warn("notifier close error", applogger.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
