package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/yakoovad/squad-manager/config"
	"github.com/yakoovad/squad-manager/internal/api"
	"github.com/yakoovad/squad-manager/internal/auth"
	"github.com/yakoovad/squad-manager/internal/db"
	"github.com/yakoovad/squad-manager/internal/repository"
	"github.com/yakoovad/squad-manager/internal/service"
	"github.com/yakoovad/squad-manager/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting application")

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if err = migrate(ctx, cfg); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	logger.Info("database connection established")

	transactor := db.NewPgxTransactor(pool)

	teamRepo := repository.NewPgxTeamRepository(pool)
	userRepo := repository.NewPgxUserRepository(pool)

	team := service.NewTeamService(transactor).WithTeamRepo(teamRepo).WithUserRepo(userRepo)
	user := service.NewUserService(transactor).WithUserRepo(userRepo).WithTeamRepo(teamRepo)

	issuer := auth.NewIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)

	checker := api.MustNewHealthChecker(health.Config{
		Name: "postgres",
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	e := echo.New()

	handler := api.NewHandler(logger).
		WithTeamService(team).
		WithUserService(user).
		WithIssuer(issuer).
		WithHealthChecker(checker)

	handler.RegisterRoutes(e)

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.ServerAddr()))
		if err := e.Start(cfg.ServerAddr()); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = cfg.Postgres.MaxConns
	poolCfg.MinConns = cfg.Postgres.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// migrate applies goose migrations through database/sql before the pgx
// pool is opened.
func migrate(ctx context.Context, cfg *config.Config) error {
	sqlDB, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	migrateCtx, cancel := context.WithTimeout(ctx, cfg.Postgres.MigrateTimeout)
	defer cancel()

	return goose.UpContext(migrateCtx, sqlDB, cfg.Postgres.MigrationsDir)
}
