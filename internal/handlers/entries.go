// entries.go
//
// A persistence core for headless content types and their relations
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of contentdb.
// contentdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// contentdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with contentdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/contentdb/internal/events"
	"github.com/localnerve/contentdb/internal/services"
	"github.com/localnerve/contentdb/internal/types"
	"github.com/localnerve/contentdb/internal/utils"
)

// EntriesHandler handles content entry routes
type EntriesHandler struct {
	Service   *services.EntityService
	Sanitizer *events.Sanitizer
}

// Register mounts the entry routes on r
func (h *EntriesHandler) Register(r fiber.Router) {
	r.Get("/entries/:uid", h.List)
	r.Post("/entries/:uid", h.Create)
	r.Delete("/entries/:uid", h.DeleteMany)
	r.Get("/entries/:uid/:id", h.Get)
	r.Put("/entries/:uid/:id", h.Update)
	r.Delete("/entries/:uid/:id", h.Delete)
	r.Post("/entries/:uid/:id/clone", h.Clone)
	r.Post("/entries/:uid/:id/publish", h.Publish)
	r.Delete("/entries/:uid/:id/publish", h.Unpublish)
}

// respond sanitizes doc against the model before sending it
func (h *EntriesHandler) respond(c *fiber.Ctx, uid string, doc services.Document, status int) error {
	if h.Sanitizer != nil {
		if q, err := h.Service.Registry().Query(uid); err == nil {
			doc = h.Sanitizer.Sanitize(q.Model(), doc)
		}
	}
	return utils.SuccessResponse(c, doc, status)
}

// List handles GET /api/entries/:uid
// @Summary List entries
// @Description List populated entries of a model. With q set, only entries whose text attributes contain q are returned.
// @Tags Entries
// @Produce json
// @Param uid path string true "Model uid"
// @Param q query string false "Search term"
// @Param ids query string false "Comma-separated ids"
// @Param limit query int false "Maximum number of entries"
// @Success 200 {object} utils.ListResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /entries/{uid} [get]
func (h *EntriesHandler) List(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}
	crit, err := parseCriteria(c)
	if err != nil {
		return err
	}

	var (
		docs  []services.Document
		total int64
	)
	if term := c.Query("q"); term != "" {
		if docs, err = h.Service.Search(c.UserContext(), uid, term, crit); err != nil {
			return err
		}
		if total, err = h.Service.CountSearch(c.UserContext(), uid, term, crit); err != nil {
			return err
		}
	} else {
		if docs, err = h.Service.Find(c.UserContext(), uid, crit); err != nil {
			return err
		}
		crit.Limit = 0
		if total, err = h.Service.Count(c.UserContext(), uid, crit); err != nil {
			return err
		}
	}

	q, err := h.Service.Registry().Query(uid)
	if err != nil {
		return err
	}
	if h.Sanitizer != nil {
		docs = h.Sanitizer.SanitizeList(q.Model(), docs)
	}
	return utils.ListResponse(c, docs, total)
}

// Get handles GET /api/entries/:uid/:id
// @Summary Get an entry
// @Tags Entries
// @Produce json
// @Param uid path string true "Model uid"
// @Param id path int true "Entry id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entries/{uid}/{id} [get]
func (h *EntriesHandler) Get(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	doc, err := h.Service.FindOne(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	return h.respond(c, uid, doc, fiber.StatusOK)
}

// Create handles POST /api/entries/:uid
// @Summary Create an entry
// @Description Create an entry with its components and relations
// @Tags Entries
// @Accept json
// @Produce json
// @Param uid path string true "Model uid"
// @Param body body object true "Entry data"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /entries/{uid} [post]
func (h *EntriesHandler) Create(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}
	data, err := bodyMap(c)
	if err != nil {
		return err
	}
	doc, err := h.Service.Create(c.UserContext(), uid, data)
	if err != nil {
		return err
	}
	return h.respond(c, uid, doc, fiber.StatusCreated)
}

// Update handles PUT /api/entries/:uid/:id
// @Summary Update an entry
// @Description Apply a sparse update. Attributes absent from the body are left unchanged.
// @Tags Entries
// @Accept json
// @Produce json
// @Param uid path string true "Model uid"
// @Param id path int true "Entry id"
// @Param body body object true "Entry data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entries/{uid}/{id} [put]
func (h *EntriesHandler) Update(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	data, err := bodyMap(c)
	if err != nil {
		return err
	}
	doc, err := h.Service.Update(c.UserContext(), uid, id, data)
	if err != nil {
		return err
	}
	return h.respond(c, uid, doc, fiber.StatusOK)
}

// Delete handles DELETE /api/entries/:uid/:id
// @Summary Delete an entry
// @Tags Entries
// @Produce json
// @Param uid path string true "Model uid"
// @Param id path int true "Entry id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entries/{uid}/{id} [delete]
func (h *EntriesHandler) Delete(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	doc, err := h.Service.Delete(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	return h.respond(c, uid, doc, fiber.StatusOK)
}

// DeleteMany handles DELETE /api/entries/:uid
// @Summary Delete entries
// @Description Delete every listed entry. Each entry is deleted in its own transaction and deletion stops at the first failure.
// @Tags Entries
// @Accept json
// @Produce json
// @Param uid path string true "Model uid"
// @Param body body object true "Ids to delete, a single id or a list"
// @Success 200 {object} utils.MutationResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /entries/{uid} [delete]
func (h *EntriesHandler) DeleteMany(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}

	var body struct {
		IDs types.FlexList[types.FlexUint64] `json:"ids"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, types.ErrorTypeValidation)
	}
	if len(body.IDs) == 0 {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, types.ErrorTypeValidation)
	}

	var affected int64
	for _, id := range types.UniqueIDs(body.IDs) {
		if _, err := h.Service.Delete(c.UserContext(), uid, id); err != nil {
			return err
		}
		affected++
	}
	return utils.MutationSuccessResponse(c, affected)
}

// Clone handles POST /api/entries/:uid/:id/clone
// @Summary Clone an entry
// @Description Copy an entry with its components. Body attributes override the copy.
// @Tags Entries
// @Accept json
// @Produce json
// @Param uid path string true "Model uid"
// @Param id path int true "Source entry id"
// @Param body body object false "Overrides"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entries/{uid}/{id}/clone [post]
func (h *EntriesHandler) Clone(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	override, err := bodyMap(c)
	if err != nil {
		return err
	}
	doc, err := h.Service.Clone(c.UserContext(), uid, id, override)
	if err != nil {
		return err
	}
	return h.respond(c, uid, doc, fiber.StatusCreated)
}

// Publish handles POST /api/entries/:uid/:id/publish
// @Summary Publish an entry
// @Tags Entries
// @Produce json
// @Param uid path string true "Model uid"
// @Param id path int true "Entry id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entries/{uid}/{id}/publish [post]
func (h *EntriesHandler) Publish(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	doc, err := h.Service.Publish(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	return h.respond(c, uid, doc, fiber.StatusOK)
}

// Unpublish handles DELETE /api/entries/:uid/:id/publish
// @Summary Unpublish an entry
// @Tags Entries
// @Produce json
// @Param uid path string true "Model uid"
// @Param id path int true "Entry id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entries/{uid}/{id}/publish [delete]
func (h *EntriesHandler) Unpublish(c *fiber.Ctx) error {
	uid, err := uidParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	doc, err := h.Service.Unpublish(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	return h.respond(c, uid, doc, fiber.StatusOK)
}
