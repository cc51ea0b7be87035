package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/localnerve/contentdb/internal/logger"
	"github.com/localnerve/contentdb/internal/types"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id back to the client
const RequestIDHeader = "X-Request-Id"

// RequestLogger assigns each request an id, stores a logger carrying it in the
// user context and logs the outcome once the handler chain returns
func RequestLogger(log *zap.Logger) fiber.Handler {
	log = logger.OrNop(log)
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)

		reqLog := log.With(zap.String("request_id", requestID))
		c.SetUserContext(logger.WithContext(c.UserContext(), reqLog))

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = types.StatusCode(err)
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			reqLog.Warn("Request failed", append(fields, zap.Error(err))...)
		} else {
			reqLog.Info("Request", fields...)
		}
		return err
	}
}
