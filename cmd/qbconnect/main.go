package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/yachttime/qbconnect/internal/auth"
	"github.com/yachttime/qbconnect/internal/config"
	"github.com/yachttime/qbconnect/internal/custody"
	httptransport "github.com/yachttime/qbconnect/internal/http"
	"github.com/yachttime/qbconnect/internal/http/handler"
	httpmiddleware "github.com/yachttime/qbconnect/internal/http/middleware"
	qbclient "github.com/yachttime/qbconnect/internal/quickbooks"
	"github.com/yachttime/qbconnect/internal/repository"
	"github.com/yachttime/qbconnect/internal/server"
	"github.com/yachttime/qbconnect/internal/service"
	"github.com/yachttime/qbconnect/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newHTTPClient,
			newVerifier,
			newConnectionRepository,
			newProfileRepository,
			newNotificationRepository,
			newDiscoveryResolver,
			newProviderClient,
			newVault,
			newCustodyHandler,
			newCustodian,
			newQuickBooksService,
			newQuickBooksHandler,
			newGate,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newHTTPClient(cfg config.Config) *http.Client {
	return &http.Client{Timeout: cfg.HTTPClientTimeout}
}

func newVerifier(cfg config.Config) *auth.Verifier {
	return auth.NewVerifier(cfg.AuthJWTSecret)
}

func newConnectionRepository(pool *pgxpool.Pool) repository.ConnectionRepository {
	return repository.NewPostgresConnectionRepo(pool)
}

func newProfileRepository(pool *pgxpool.Pool) repository.ProfileRepository {
	return repository.NewPostgresProfileRepo(pool)
}

func newNotificationRepository(pool *pgxpool.Pool) repository.NotificationRepository {
	return repository.NewPostgresNotificationRepo(pool)
}

func newDiscoveryResolver(cfg config.Config, client *http.Client, logger *zap.Logger) *qbclient.Resolver {
	return qbclient.NewResolver(qbclient.DiscoveryURLFor(cfg.QBEnvironment), client, logger)
}

func newProviderClient(resolver *qbclient.Resolver, cfg config.Config, client *http.Client, logger *zap.Logger) *qbclient.Client {
	return qbclient.NewClient(resolver, qbclient.APIBaseURLFor(cfg.QBEnvironment), cfg.QBClientID, cfg.QBClientSecret, client, logger)
}

func newVault(cfg config.Config) *custody.Vault {
	return custody.NewVault(cfg.CustodySecret)
}

func newCustodyHandler(vault *custody.Vault, verifier *auth.Verifier, logger *zap.Logger) *custody.Handler {
	return custody.NewHandler(vault, verifier, logger)
}

func newCustodian(cfg config.Config, client *http.Client) custody.Custodian {
	return custody.NewClient(cfg.CustodyURL, client)
}

func newQuickBooksService(
	connections repository.ConnectionRepository,
	notifications repository.NotificationRepository,
	qb *qbclient.Client,
	custodian custody.Custodian,
	cfg config.Config,
	logger *zap.Logger,
) *service.QuickBooksService {
	return service.NewQuickBooksService(connections, notifications, qb, custodian, cfg, logger)
}

func newQuickBooksHandler(svc *service.QuickBooksService, logger *zap.Logger) *handler.QuickBooksHandler {
	return handler.NewQuickBooksHandler(svc, logger)
}

func newGate(verifier *auth.Verifier, profiles repository.ProfileRepository, logger *zap.Logger) *httpmiddleware.Gate {
	return &httpmiddleware.Gate{Verifier: verifier, Profiles: profiles, Logger: logger}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
