package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/domains/organizations/be/clients"
	"github.com/zenGate-Global/orgsync/domains/organizations/be/handler"
	"github.com/zenGate-Global/orgsync/domains/organizations/be/outbox"
	"github.com/zenGate-Global/orgsync/domains/organizations/be/publisher"
	"github.com/zenGate-Global/orgsync/domains/organizations/be/service"
	"github.com/zenGate-Global/orgsync/domains/organizations/be/tenants"
	"github.com/zenGate-Global/orgsync/platform/go/broker"
	"github.com/zenGate-Global/orgsync/platform/go/directory"
	platformlogging "github.com/zenGate-Global/orgsync/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/orgsync/platform/go/middleware"
	"github.com/zenGate-Global/orgsync/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`

	DirectoryURL     string        `env:"DIRECTORY_URL,required"`
	DirectoryTimeout time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"15s"`
	BrokerAdminURL   string        `env:"BROKER_ADMIN_URL,required"`
	BrokerTimeout    time.Duration `env:"BROKER_TIMEOUT" envDefault:"15s"`
	StateTopic       string        `env:"STATE_TOPIC"` // empty falls back to the publisher default

	EventSource         string        `env:"EVENT_SOURCE" envDefault:"organizations"`
	RepublishInterval   time.Duration `env:"REPUBLISH_INTERVAL" envDefault:"5s"`
	RepublishAge        time.Duration `env:"REPUBLISH_AGE" envDefault:"5s"`
	ClientIDPrefix      string        `env:"CLIENT_ID_PREFIX" envDefault:"app-"`
	RedirectURIPatterns []string      `env:"REDIRECT_URI_PATTERNS" envSeparator:"," envDefault:"https://%{alias}%.cloud.example.com/*"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	outboxDB, err := persistence.NewOutboxStore(pool)
	if err != nil {
		logger.Fatal("init outbox store", zap.Error(err))
	}
	store := outbox.NewPostgresStore(outboxDB)

	dir, err := directory.NewHTTPClient(directory.HTTPConfig{
		BaseURL: cfg.DirectoryURL,
		Timeout: cfg.DirectoryTimeout,
	})
	if err != nil {
		logger.Fatal("init directory client", zap.Error(err))
	}

	brokerClient, err := broker.NewHTTPClient(broker.HTTPConfig{
		AdminBaseURL: cfg.BrokerAdminURL,
		Timeout:      cfg.BrokerTimeout,
	})
	if err != nil {
		logger.Fatal("init broker client", zap.Error(err))
	}

	clientService := clients.NewService(dir.ClientAPI(), logger)
	reconciler := clients.NewReconciler(clientService, clients.ReconcilerConfig{
		ClientIDPrefix:      cfg.ClientIDPrefix,
		RedirectURIPatterns: cfg.RedirectURIPatterns,
	}, logger)
	statePublisher := publisher.New(brokerClient, cfg.StateTopic, logger)
	tenantProvisioner := tenants.New(brokerClient, logger)

	dispatcher := outbox.NewDispatcher(store, logger, statePublisher, reconciler, tenantProvisioner)
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	scheduler := outbox.NewScheduler(store, dispatcher, cfg.RepublishInterval, cfg.RepublishAge, logger)
	scheduler.Start(ctx)
	defer scheduler.Close()

	orgService := service.New(dir, store, dispatcher, cfg.EventSource, logger)
	orgHandler := handler.New(orgService, clientService, logger)

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	orgHandler.Routes(apiRouter)
	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
