package handlers

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/contentdb/internal/config"
	"github.com/localnerve/contentdb/internal/events"
	"github.com/localnerve/contentdb/internal/middleware"
	"github.com/localnerve/contentdb/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppOptions carries what the HTTP surface needs
type AppOptions struct {
	Config  *config.Config
	DB      *gorm.DB
	Service *services.EntityService
	Log     *zap.Logger
	// Metrics registers the prometheus middleware and /metrics. It registers
	// collectors on the default registry, so only one app per process may set it.
	Metrics bool
	Swagger bool
}

// NewApp builds the fiber app with every route mounted
func NewApp(opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(opts.Log))
	app.Use(compress.New())

	if opts.Metrics {
		prometheus := fiberprometheus.New("contentdb")
		prometheus.RegisterAt(app, "/metrics")
		app.Use(prometheus.Middleware)
	}
	if opts.Swagger {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	r := opts.Service.Registry()
	health := &HealthHandler{Config: opts.Config, DB: opts.DB, Registry: r, Log: opts.Log}
	app.Get("/health", health.Check)

	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	(&MetaHandler{Registry: r}).Register(api)
	var private []string
	if opts.Config != nil {
		private = opts.Config.PrivateAttributes
	}
	(&EntriesHandler{
		Service:   opts.Service,
		Sanitizer: events.NewSanitizer(r.Schemas(), private),
	}).Register(api)

	app.Use(NotFound)
	return app
}
