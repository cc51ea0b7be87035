package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/contentdb/internal/config"
	"github.com/localnerve/contentdb/internal/registry"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/services"
	"github.com/localnerve/contentdb/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModelSummary is one row of the model listing
type ModelSummary struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	Namespace  string `json:"namespace"`
	Collection string `json:"collection"`
	Connector  string `json:"connector"`
	Component  bool   `json:"component"`
	Attributes int    `json:"attributes"`
}

// Summarize lists the models in registry order
func Summarize(models []*schema.Model) []ModelSummary {
	out := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		connector := m.Connector
		if connector == "" {
			connector = schema.DefaultConnector
		}
		out = append(out, ModelSummary{
			UID:        m.UID,
			Name:       m.Name,
			Namespace:  string(m.Namespace),
			Collection: m.Collection,
			Connector:  connector,
			Component:  m.IsComponent(),
			Attributes: len(m.Attributes),
		})
	}
	return out
}

// MetaHandler serves the loaded content schema
type MetaHandler struct {
	Registry *registry.Registry
}

// Register mounts the meta routes on r
func (h *MetaHandler) Register(r fiber.Router) {
	r.Get("/meta", h.List)
	r.Get("/meta/:uid", h.Get)
}

// List handles GET /api/meta
// @Summary List models
// @Tags Meta
// @Produce json
// @Success 200 {array} handlers.ModelSummary
// @Router /meta [get]
func (h *MetaHandler) List(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, Summarize(h.Registry.Schemas().Models()), fiber.StatusOK)
}

// Get handles GET /api/meta/:uid
// @Summary Get a model
// @Description Get a model descriptor with its attributes
// @Tags Meta
// @Produce json
// @Param uid path string true "Model uid"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /meta/{uid} [get]
func (h *MetaHandler) Get(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}
	m, err := h.Registry.Schemas().Model(uid)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, m, fiber.StatusOK)
}

// HealthHandler reports service health
type HealthHandler struct {
	Config   *config.Config
	DB       *gorm.DB
	Registry *registry.Registry
	Log      *zap.Logger
}

// Check handles GET /health
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	result := services.HealthCheck(c.UserContext(), h.Config, h.DB, h.Registry, h.Log)
	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
