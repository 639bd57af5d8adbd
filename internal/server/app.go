// Package server initializes and runs the backend: it opens the database,
// applies migrations, wires the services and starts the gRPC endpoint plus
// the session sweeper, with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gestion-comercial/backend/internal/logging"
	"github.com/gestion-comercial/backend/internal/server/auth"
	"github.com/gestion-comercial/backend/internal/server/config"
	gs "github.com/gestion-comercial/backend/internal/server/grpc"
	"github.com/gestion-comercial/backend/internal/server/password"
	"github.com/gestion-comercial/backend/internal/server/repositories/repomanager"
	"github.com/gestion-comercial/backend/internal/server/services"
	"github.com/gestion-comercial/backend/internal/server/sessions"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService *services.AuthService
	userService *services.UserService
	sweeper     *sessions.Sweeper
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	issuer := auth.NewIssuer(cfg)
	hasher := password.NewHasher(cfg.BcryptCost)

	authService := services.NewAuthService(db, repos, cfg, issuer, hasher, logger)
	userService := services.NewUserService(db, repos, cfg, hasher, logger)
	sweeper := sessions.NewSweeper(authService.Sessions(), cfg.SessionSweepInterval, logger)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		authService: authService,
		userService: userService,
		sweeper:     sweeper,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
}
