package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/token-service/internal/api/http"
	"github.com/spec-kit/token-service/internal/api/http/handlers"
	"github.com/spec-kit/token-service/internal/config"
	"github.com/spec-kit/token-service/internal/events"
	"github.com/spec-kit/token-service/internal/identity"
	"github.com/spec-kit/token-service/internal/observability"
	"github.com/spec-kit/token-service/internal/persistence"
	"github.com/spec-kit/token-service/internal/service"
	"github.com/spec-kit/token-service/internal/store"
	"github.com/spec-kit/token-service/internal/token"
	"github.com/spec-kit/token-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var awsClients *persistence.AWSClients
	if cfg.Store.Driver == config.StoreDriverDynamoDB || cfg.Cognito.UserPoolID != "" {
		awsClients, err = persistence.NewAWSClients(ctx, cfg.AWS, logger)
		if err != nil {
			logger.Fatal("failed to init aws clients", zap.Error(err))
		}
	}

	tokenStore, cleanup := buildStore(ctx, cfg, awsClients, logger)
	defer cleanup()

	fetcher := buildFetcher(cfg, awsClients, logger)
	builder := token.NewBuilder(cfg.Token)

	dispatcher := events.NewInMemoryDispatcher(logger)
	auditService := service.NewAuditService(dispatcher, logger, cfg.Hooks)
	worker.StartAuditWorker(auditService)

	issuanceService := service.NewIssuanceService(cfg.Issuance, service.IssuanceDependencies{
		Fetcher:    fetcher,
		Builder:    builder,
		Store:      tokenStore,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, tokenStore),
		Tokens: handlers.NewTokensHandler(issuanceService, metrics),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func buildStore(ctx context.Context, cfg *config.Config, awsClients *persistence.AWSClients, logger *zap.Logger) (store.TokenStore, func()) {
	switch cfg.Store.Driver {
	case config.StoreDriverDynamoDB:
		dynamoStore := store.NewDynamoStore(awsClients.DynamoDB, cfg.Store.TableName, logger)
		if cfg.Store.CreateTable {
			if err := dynamoStore.EnsureTable(ctx); err != nil {
				logger.Fatal("failed to ensure token table", zap.Error(err))
			}
		}
		return dynamoStore, func() {}

	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		return store.NewPostgresStore(pg.PoolHandle()), pg.Close

	case config.StoreDriverRedis:
		redis := persistence.NewRedis(cfg.Redis, logger)
		return store.NewRedisStore(redis.Client), redis.Close

	default:
		logger.Warn("using in-memory token store; entries are lost on restart")
		return store.NewMemoryStore(), func() {}
	}
}

func buildFetcher(cfg *config.Config, awsClients *persistence.AWSClients, logger *zap.Logger) identity.Fetcher {
	if cfg.Cognito.UserPoolID != "" {
		return identity.NewCognitoFetcher(awsClients.Cognito, cfg.Cognito.UserPoolID, logger)
	}
	logger.Warn("COGNITO_USER_POOL_ID not provided; using static identity fetcher")
	return identity.NewStaticFetcher(nil)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
