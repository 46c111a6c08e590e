package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tasks/activitymap"
	"github.com/goliatone/go-tasks/api"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/config"
	"github.com/goliatone/go-tasks/repository"
	"github.com/goliatone/go-tasks/repository/mongodb"
	"github.com/goliatone/go-tasks/tasks"
)

const connectTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	logger    auth.Logger
	repo      repository.Manager
	auther    *auth.Auther
	tasks     *tasks.Service
	srv       router.Server[*fiber.App]
	startedAt time.Time
}

func (a *App) GetLogger(name string) auth.Logger {
	return auth.NewLogger(name)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(auth.NewLogger("app"), "failed to load configuration", err)
	}

	auth.SetRootLogger(auth.NewRootLogger(cfg.App.LogLevel))

	app := &App{
		config:    cfg,
		logger:    auth.NewLogger("app"),
		startedAt: time.Now(),
	}

	if cfg.Auth.SigningKeyGenerated {
		app.logger.Warn("JWT_SECRET is not set, using a random secret for this process")
	}

	if cfg.IsDevelopment() {
		app.logger.Debug("configuration loaded", "config", print.MaybeSecureJSON(cfg))
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		fatal(app.logger, "failed to initialize storage", err)
	}

	if err := WithServices(ctx, app); err != nil {
		fatal(app.logger, "failed to initialize services", err)
	}

	WithHTTPServer(ctx, app)

	go func() {
		app.logger.Info("server listening", "addr", cfg.Addr(), "env", cfg.App.Env, "driver", cfg.Database.Driver)
		if err := app.srv.Serve(cfg.Addr()); err != nil {
			fatal(app.logger, "server stopped", err)
		}
	}()

	sig := WaitExitSignal()
	app.logger.Info("shutting down", "signal", sig.String())

	if err := app.Shutdown(); err != nil {
		app.logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
}

func fatal(logger auth.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

// WithPersistence opens the configured storage backend and runs its
// migrations
func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.config.Database

	switch cfg.Driver {
	case config.DriverMongoDB:
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		mngr, err := mongodb.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		app.repo = mngr

	default:
		mngr, err := repository.Open(ctx, cfg)
		if err != nil {
			return err
		}
		app.repo = mngr
	}

	app.repo.MustValidate()

	return app.repo.Migrate(ctx)
}

// WithServices builds the token service, the authentication flow and
// the task service
func WithServices(_ context.Context, app *App) error {
	tokens, err := auth.NewTokenService(app.config, auth.WithTokenLogger(app.GetLogger("auth:token")))
	if err != nil {
		return err
	}

	audit := activitymap.LoggerSink(app.GetLogger("audit"))

	app.auther = auth.NewAuthenticator(app.repo.Users(), tokens).
		WithLogger(app.GetLogger("auth")).
		WithPasswordHasher(auth.NewBcryptHasher(app.config.Auth.BcryptCost)).
		WithActivitySink(audit).
		WithHashidUserIDs(app.config.Auth.UseHashid)

	machine := tasks.NewStatusMachine(
		tasks.WithAfterTransitionHook(tasks.StatusActivityHook(audit, app.GetLogger("tasks:status"))),
	)

	app.tasks = tasks.NewService(app.repo.Tasks()).
		WithLogger(app.GetLogger("tasks")).
		WithActivitySink(audit).
		WithStatusMachine(machine)

	return nil
}

func WithHTTPServer(_ context.Context, app *App) {
	app.srv = api.New(api.Options{
		Config:    app.config,
		Auther:    app.auther,
		Tasks:     app.tasks,
		Logger:    app.GetLogger("http"),
		StartedAt: app.startedAt,
	})
}

// Shutdown drains in flight requests and then closes storage
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		return err
	}
	return a.repo.Close()
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
