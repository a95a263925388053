package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/marketplace-gateway/internal/api/http"
	"github.com/spec-kit/marketplace-gateway/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-gateway/internal/auth"
	"github.com/spec-kit/marketplace-gateway/internal/config"
	"github.com/spec-kit/marketplace-gateway/internal/credential"
	"github.com/spec-kit/marketplace-gateway/internal/domain"
	"github.com/spec-kit/marketplace-gateway/internal/events"
	"github.com/spec-kit/marketplace-gateway/internal/identity"
	"github.com/spec-kit/marketplace-gateway/internal/observability"
	"github.com/spec-kit/marketplace-gateway/internal/onboarding"
	"github.com/spec-kit/marketplace-gateway/internal/persistence"
	"github.com/spec-kit/marketplace-gateway/internal/repository"
	"github.com/spec-kit/marketplace-gateway/internal/session"
	"github.com/spec-kit/marketplace-gateway/internal/worker"
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

	metrics := observability.NewMetrics()

	policy, err := auth.LoadRoutePolicy(cfg.Policy.File)
	if err != nil {
		logger.Fatal("failed to load route policy", zap.Error(err))
	}
	codec := auth.NewTokenCodec(policy.RoleTable)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	deps := map[string]handlers.Pinger{}
	if pg.PoolHandle() != nil {
		deps["postgres"] = pg
	}

	cookieOpts := credential.CookieOptions{
		Secure:   cfg.Session.CookieSecure,
		HTTPOnly: cfg.Session.CookieHTTPOnly,
		Domain:   cfg.Session.CookieDomain,
	}
	var stores credential.Provider
	switch cfg.Session.Backend {
	case config.BackendRedis:
		redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("redis credential backend unavailable", zap.Error(err))
		}
		defer redis.Close()
		deps["redis"] = redis
		stores = credential.NewRedisProvider(redis.Client, cookieOpts)
	default:
		stores = credential.NewCookieProvider(cookieOpts, nil)
	}

	normalize, err := session.NormalizerByName(cfg.Session.PhoneNormalization)
	if err != nil {
		logger.Fatal("invalid phone normalization", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartSessionAuditWorker(dispatcher, logger)

	identityClient := identity.NewClient(cfg.Identity, logger)
	sessions := session.NewService(session.Dependencies{
		API:            identityClient,
		Codec:          codec,
		Logger:         logger,
		Metrics:        metrics,
		NormalizePhone: normalize,
		Events:         dispatcher,
	})

	var snapshots onboarding.SnapshotSource = identityClient
	if cfg.Onboarding.Source == config.SourcePostgres {
		repo := repository.NewOnboardingRepository(pg.PoolHandle())
		snapshots = onboarding.SourceFunc(func(ctx context.Context, _, userID string) (*domain.OnboardingSnapshot, error) {
			return repo.Snapshot(ctx, userID)
		})
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:       handlers.NewAuthHandler(sessions, stores, policy, codec),
		Account:    handlers.NewAccountHandler(sessions, stores, cfg.Session.RefreshThreshold()),
		Onboarding: handlers.NewOnboardingHandler(snapshots, stores, logger),
		Gate:       auth.NewGateMiddleware(auth.NewGate(policy, codec, nil), stores, metrics, logger),
		Metrics:    metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
