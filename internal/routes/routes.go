package routes

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pocketbank/pocketbank/internal/auth"
	"github.com/pocketbank/pocketbank/internal/banking"
	"github.com/pocketbank/pocketbank/internal/config"
	"github.com/pocketbank/pocketbank/internal/identity"
	"github.com/pocketbank/pocketbank/internal/ledger"
	"github.com/pocketbank/pocketbank/internal/middleware"
	"github.com/pocketbank/pocketbank/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(d.Cfg.CORSOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Request-ID",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Stores
	var (
		store        ledger.Store
		identityRepo identity.Repository
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB, d.Cfg.LockTimeout)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory stores")
		store = ledger.NewInMemory(d.Cfg.LockTimeout)
		identityRepo = identity.NewMemoryRepository()
	}

	// Services and handlers
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg, identitySvc)
	bankingSvc := banking.NewService(store, notification.NewLoggerNotifier(d.Logger), banking.Options{
		MaxConflictRetries: d.Cfg.MaxConflictRetries,
		Logger:             d.Logger,
	})

	identityHandler := identity.NewHandler(identitySvc, d.Logger)
	authHandler := auth.NewHandler(authSvc, d.Logger)
	bankingHandler := banking.NewHandler(bankingSvc)

	api := app.Group("/api")
	jwtmw := middleware.JWTAuth(authSvc)

	// Public routes
	RegisterIdentityRoutes(api, identityHandler)
	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginAttemptsPerMinute)
	RegisterAuthRoutes(api, authHandler, rateLimiter, jwtmw)

	// Protected routes
	protected := api.Group("", jwtmw)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterMeRoute(protected, identitySvc, bankingSvc)
	RegisterBankingRoutes(protected, bankingHandler)

	return nil
}
