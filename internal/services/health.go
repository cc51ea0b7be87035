package services

import (
	"context"
	"fmt"

	"github.com/localnerve/contentdb/internal/config"
	"github.com/localnerve/contentdb/internal/logger"
	"github.com/localnerve/contentdb/internal/registry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Models       int               `json:"models"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthCheck performs a comprehensive health check of the service. db is nil
// when content is held by the memory connector.
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, r *registry.Registry, log *zap.Logger) HealthCheckResult {
	log = logger.OrNop(log)
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}
	if r != nil {
		result.Models = len(r.Schemas().Models())
	}

	if db == nil {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		log.Debug("Health check passed - memory store")
		return result
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		log.Warn("Health check failed - database connection", zap.Error(err))
		return result
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		result.Status = "unhealthy"
		result.Database = "unreachable"
		result.Details["database_ping_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
		log.Warn("Health check failed - database ping", zap.Error(err))
		return result
	}

	result.Database = "ok"
	result.Details["database_type"] = cfg.DBType
	result.Details["database_name"] = cfg.DBDatabase
	log.Debug("Health check passed - all systems operational")
	return result
}
