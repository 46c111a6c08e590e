package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tasks/auth"
	"github.com/goliatone/go-tasks/config"
	"github.com/goliatone/go-tasks/middleware/jwtware"
	"github.com/goliatone/go-tasks/tasks"
)

const accessLogFormat = "${time} | ${locals:requestid} | ${status} | ${latency} | ${ip} | ${method} ${path}\n"

// Options holds the collaborators of the HTTP surface
type Options struct {
	Config *config.Config
	Auther *auth.Auther
	Tasks  *tasks.Service
	Logger auth.Logger
	// DisableAccessLog turns off the per request log line
	DisableAccessLog bool
	StartedAt        time.Time
	Now              func() time.Time
}

// New builds the HTTP server with the full middleware chain and routes
func New(opts Options) router.Server[*fiber.App] {
	cfg := opts.Config
	if cfg == nil {
		panic("Missing config in api server...")
	}

	log := opts.Logger
	if log == nil {
		log = auth.NewLogger("api")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	startedAt := opts.StartedAt
	if startedAt.IsZero() {
		startedAt = now()
	}

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "go-tasks",
			BodyLimit:             cfg.Server.BodyLimit,
			DisableStartupMessage: true,
			ErrorHandler: ErrorHandler(ErrorHandlerConfig{
				Development: cfg.IsDevelopment(),
				Logger:      log,
			}),
		})

		app.Use(recover.New(recover.Config{EnableStackTrace: cfg.IsDevelopment()}))
		app.Use(requestid.New())
		if !opts.DisableAccessLog {
			app.Use(logger.New(logger.Config{Format: accessLogFormat}))
		}
		app.Use(helmet.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.Server.CORSOrigins,
			AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		}))
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.Server.RateLimitMax,
			Expiration: cfg.Server.RateLimitWindow,
			LimitReached: func(c *fiber.Ctx) error {
				return ErrRateLimited
			},
		}))
		return app
	})

	r := srv.Router()
	r.Get("/health", Health(cfg.App.Env, startedAt, now)).SetName("health")

	guard := jwtware.New(jwtware.Config{
		Resolver:   opts.Auther,
		AuthScheme: cfg.GetAuthScheme(),
		ContextKey: cfg.GetContextKey(),
	})

	authController := NewAuthController(opts.Auther, log)
	RegisterAuthRoutes(r, authController, guard)

	taskController := NewTaskController(opts.Tasks, log)
	taskController.Now = now
	RegisterTaskRoutes(r, taskController, guard)

	// routes are added to the fiber app as they are registered, so this
	// runs after every one of them
	srv.WrappedRouter().Use(NotFound)

	return srv
}

// Health reports liveness
func Health(env string, startedAt time.Time, now func() time.Time) router.HandlerFunc {
	return func(c router.Context) error {
		at := now()
		return c.JSON(fiber.StatusOK, fiber.Map{
			"status":      "OK",
			"timestamp":   at.UTC().Format(time.RFC3339),
			"uptime":      at.Sub(startedAt).Seconds(),
			"environment": env,
		})
	}
}

// NotFound is mounted last and rejects every unmatched route
func NotFound(c *fiber.Ctx) error {
	return ErrRouteNotFound.Clone().WithMetadata(map[string]any{
		"method": c.Method(),
		"path":   c.Path(),
	})
}
