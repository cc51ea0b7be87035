package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/localnerve/contentdb/internal/bootstrap"
	"github.com/localnerve/contentdb/internal/config"
	"github.com/localnerve/contentdb/internal/handlers"
	"github.com/localnerve/contentdb/internal/logger"
	"go.uber.org/zap"

	_ "github.com/localnerve/contentdb/docs/api" // Swagger docs
)

// @title contentdb API
// @version 1.0.0
// @description Content entries with components, dynamic zones and relations over pluggable stores
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/contentdb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Load the schema, connect the store and sync collection tables
	rt, err := bootstrap.Open(context.Background(), cfg, zlog, true)
	if err != nil {
		zlog.Fatal("Failed to open content store", zap.Error(err))
	}
	defer func() {
		if err := rt.Close(); err != nil {
			zlog.Warn("Failed to close content store", zap.Error(err))
		}
	}()

	app := handlers.NewApp(handlers.AppOptions{
		Config:  cfg,
		DB:      rt.DB,
		Service: rt.Service,
		Log:     zlog,
		Metrics: true,
		Swagger: true,
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		zlog.Info("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	zlog.Info("Starting server",
		zap.String("port", cfg.Port),
		zap.String("database", cfg.DBType),
		zap.Int("models", len(rt.Registry.Schemas().Models())))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Error("Failed to start server", zap.Error(err))
		return
	}

	zlog.Info("Server stopped")
}
