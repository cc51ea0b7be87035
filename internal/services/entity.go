// entity.go
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

package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/contentdb/internal/components"
	"github.com/localnerve/contentdb/internal/events"
	"github.com/localnerve/contentdb/internal/lifecycle"
	"github.com/localnerve/contentdb/internal/logger"
	"github.com/localnerve/contentdb/internal/migration"
	"github.com/localnerve/contentdb/internal/registry"
	"github.com/localnerve/contentdb/internal/relations"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
	"go.uber.org/zap"
)

// MediaModel is the upload plugin's file model. Its writes emit media events.
const MediaModel = "plugin::upload.file"

// PublishedAtField holds the publication timestamp of an entry
const PublishedAtField = "publishedAt"

// Document is a populated entity as returned to callers
type Document = map[string]any

// EntityService runs content operations end to end: a transaction, the
// registered migrations and lifecycles, components and relations, then events
// once the transaction has committed.
type EntityService struct {
	registry   *registry.Registry
	engine     *relations.Engine
	components *components.Manager
	lifecycles *lifecycle.Manager
	migrations *migration.Manager
	hub        *events.Hub
	log        *zap.Logger
}

// Option configures an EntityService
type Option func(*EntityService)

// WithLifecycles sets the lifecycle manager
func WithLifecycles(m *lifecycle.Manager) Option {
	return func(s *EntityService) {
		s.lifecycles = m
	}
}

// WithMigrations sets the migration manager
func WithMigrations(m *migration.Manager) Option {
	return func(s *EntityService) {
		s.migrations = m
	}
}

// WithHub sets the event hub
func WithHub(h *events.Hub) Option {
	return func(s *EntityService) {
		s.hub = h
	}
}

// WithLogger sets the service logger
func WithLogger(log *zap.Logger) Option {
	return func(s *EntityService) {
		s.log = log
	}
}

// NewEntityService builds a service over a loaded registry. Missing managers
// default to empty ones and the hub to one sanitizing against the registry.
func NewEntityService(r *registry.Registry, maxDepth int, opts ...Option) *EntityService {
	s := &EntityService{registry: r}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log)
	if s.lifecycles == nil {
		s.lifecycles = lifecycle.NewManager(s.log)
	}
	if s.migrations == nil {
		s.migrations = migration.NewManager(s.log)
	}
	if s.hub == nil {
		s.hub = events.NewHub(events.NewSanitizer(r.Schemas(), nil), s.log)
	}
	s.engine = relations.NewEngine(r, s.log)
	s.components = components.NewManager(r, s.engine,
		components.WithMaxDepth(maxDepth),
		components.WithLogger(s.log))
	return s
}

// Registry returns the registry the service operates on
func (s *EntityService) Registry() *registry.Registry {
	return s.registry
}

// Lifecycles returns the lifecycle manager
func (s *EntityService) Lifecycles() *lifecycle.Manager {
	return s.lifecycles
}

// Migrations returns the migration manager
func (s *EntityService) Migrations() *migration.Manager {
	return s.migrations
}

// Hub returns the event hub
func (s *EntityService) Hub() *events.Hub {
	return s.hub
}

// Create validates and persists a new entry with its components and relations
func (s *EntityService) Create(ctx context.Context, uid string, data map[string]any) (Document, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()

	e, err := s.write(ctx, q, "create", data, func(ctx context.Context) (*storage.Entity, error) {
		if err := s.lifecycles.Run(ctx, lifecycle.BeforeCreate, model, data); err != nil {
			return nil, err
		}
		e, err := s.components.Create(ctx, model.UID, data)
		if err != nil {
			return nil, err
		}
		return e, s.lifecycles.Run(ctx, lifecycle.AfterCreate, model, e)
	})
	if err != nil {
		return nil, err
	}
	return s.emit(ctx, q, eventName(model, events.EntryCreate), e)
}

// Update applies a sparse payload to an existing entry
func (s *EntityService) Update(ctx context.Context, uid string, id uint64, data map[string]any) (Document, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()

	e, err := s.write(ctx, q, "update", data, func(ctx context.Context) (*storage.Entity, error) {
		existing, err := q.FindOne(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.lifecycles.Run(ctx, lifecycle.BeforeUpdate, model, existing, data); err != nil {
			return nil, err
		}
		e, err := s.components.Update(ctx, model.UID, existing, data)
		if err != nil {
			return nil, err
		}
		return e, s.lifecycles.Run(ctx, lifecycle.AfterUpdate, model, e)
	})
	if err != nil {
		return nil, err
	}
	return s.emit(ctx, q, eventName(model, events.EntryUpdate), e)
}

// Delete removes an entry, its components and its relation links. The
// returned document is the entry as it was before deletion.
func (s *EntityService) Delete(ctx context.Context, uid string, id uint64) (Document, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()

	var doc Document
	_, err = s.write(ctx, q, "delete", nil, func(ctx context.Context) (*storage.Entity, error) {
		existing, err := q.FindOne(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc, err = q.Populate(ctx, existing); err != nil {
			return nil, err
		}
		if err := s.lifecycles.Run(ctx, lifecycle.BeforeDelete, model, existing); err != nil {
			return nil, err
		}
		if err := s.components.Remove(ctx, model.UID, existing); err != nil {
			return nil, err
		}
		return existing, s.lifecycles.Run(ctx, lifecycle.AfterDelete, model, existing)
	})
	if err != nil {
		return nil, err
	}
	s.hub.EmitEntry(ctx, eventName(model, events.EntryDelete), model, doc)
	return doc, nil
}

// Clone copies an entry, applying override on top of the copy
func (s *EntityService) Clone(ctx context.Context, uid string, id uint64, override map[string]any) (Document, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()
	if override == nil {
		override = map[string]any{}
	}

	e, err := s.write(ctx, q, "clone", override, func(ctx context.Context) (*storage.Entity, error) {
		source, err := q.FindOne(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.lifecycles.Run(ctx, lifecycle.BeforeCreate, model, override); err != nil {
			return nil, err
		}
		e, err := s.components.Clone(ctx, model.UID, source, override)
		if err != nil {
			return nil, err
		}
		return e, s.lifecycles.Run(ctx, lifecycle.AfterCreate, model, e)
	})
	if err != nil {
		return nil, err
	}
	return s.emit(ctx, q, eventName(model, events.EntryCreate), e)
}

// Publish stamps the entry's publication time
func (s *EntityService) Publish(ctx context.Context, uid string, id uint64) (Document, error) {
	return s.setPublished(ctx, uid, id, time.Now().UTC().Format(time.RFC3339), events.EntryPublish)
}

// Unpublish clears the entry's publication time
func (s *EntityService) Unpublish(ctx context.Context, uid string, id uint64) (Document, error) {
	return s.setPublished(ctx, uid, id, nil, events.EntryUnpublish)
}

func (s *EntityService) setPublished(ctx context.Context, uid string, id uint64, value any, event string) (Document, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()
	data := map[string]any{PublishedAtField: value}

	e, err := s.write(ctx, q, strings.TrimPrefix(event, "entry."), data, func(ctx context.Context) (*storage.Entity, error) {
		existing, err := q.FindOne(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.lifecycles.Run(ctx, lifecycle.BeforeUpdate, model, existing, data); err != nil {
			return nil, err
		}
		e, err := q.Update(ctx, id, data)
		if err != nil {
			return nil, err
		}
		return e, s.lifecycles.Run(ctx, lifecycle.AfterUpdate, model, e)
	})
	if err != nil {
		return nil, err
	}
	return s.emit(ctx, q, event, e)
}

// write runs op inside a transaction on the model's store, wrapped by the
// registered migrations
func (s *EntityService) write(ctx context.Context, q *registry.Query, action string, data map[string]any, op func(ctx context.Context) (*storage.Entity, error)) (*storage.Entity, error) {
	opID := uuid.NewString()
	log := logger.FromContext(ctx, s.log).With(
		zap.String("operation_id", opID),
		zap.String("model", q.Model().UID),
		zap.String("action", action))
	ctx = logger.WithContext(ctx, log)

	var result *storage.Entity
	err := q.Store().Transaction(ctx, func(ctx context.Context) error {
		return s.migrations.Run(ctx, func(ctx context.Context, _ migration.Options, _ migration.State) error {
			e, err := op(ctx)
			if err != nil {
				return err
			}
			result = e
			return nil
		}, migration.Options{Action: action, Model: q.Model().UID, Data: data})
	})
	if err != nil {
		log.Debug("Write failed", zap.Error(err))
		return nil, err
	}
	log.Debug("Write committed", zap.Uint64("id", result.ID))
	return result, nil
}

// emit populates the committed entity and emits it
func (s *EntityService) emit(ctx context.Context, q *registry.Query, event string, e *storage.Entity) (Document, error) {
	doc, err := q.Populate(ctx, e)
	if err != nil {
		return nil, err
	}
	s.hub.EmitEntry(ctx, event, q.Model(), doc)
	return doc, nil
}

// eventName maps entry events to media events for the upload file model
func eventName(model *schema.Model, event string) string {
	if model.UID != MediaModel {
		return event
	}
	switch event {
	case events.EntryCreate:
		return events.MediaCreate
	case events.EntryUpdate:
		return events.MediaUpdate
	case events.EntryDelete:
		return events.MediaDelete
	}
	return event
}
