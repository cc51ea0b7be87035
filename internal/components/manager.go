// manager.go
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

// Package components creates, updates, deletes and clones entities together
// with their nested components and dynamic zones.
package components

import (
	"context"
	"errors"

	"github.com/localnerve/contentdb/internal/metrics"
	"github.com/localnerve/contentdb/internal/relations"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
	"go.uber.org/zap"
)

// Manager orchestrates component trees and relations for every model of the resolver
type Manager struct {
	resolver relations.Resolver
	engine   *relations.Engine
	maxDepth int
	log      *zap.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithMaxDepth bounds component nesting
func WithMaxDepth(depth int) Option {
	return func(m *Manager) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

// WithLogger sets the manager logger
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a component manager
func NewManager(resolver relations.Resolver, engine *relations.Engine, opts ...Option) *Manager {
	m := &Manager{
		resolver: resolver,
		engine:   engine,
		maxDepth: 32,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DeleteOptions controls where DeleteComponents reads the components to delete
type DeleteOptions struct {
	// LoadComponents reads the links from storage. Otherwise Loaded, a
	// populated document of the entity, supplies them.
	LoadComponents bool
	Loaded         map[string]any
}

func (m *Manager) model(uid string, depth int) (*schema.Model, error) {
	if depth > m.maxDepth {
		return nil, types.NewSchemaError("component nesting at %s exceeds depth %d", uid, m.maxDepth)
	}
	q, err := m.resolver.Query(uid)
	if err != nil {
		return nil, err
	}
	return q.Model(), nil
}

// Create validates the whole payload tree, creates nested components first,
// persists the entity's scalar attributes, links the components in payload
// order and finally applies relations. Ids in the payload are ignored.
func (m *Manager) Create(ctx context.Context, uid string, data map[string]any) (*storage.Entity, error) {
	if err := m.checkCreate(ctx, uid, data, 0); err != nil {
		return nil, err
	}
	e, err := m.create(ctx, uid, data, 0)
	if err != nil {
		return nil, err
	}
	metrics.RecordComponentOperation("create", uid)
	return e, nil
}

func (m *Manager) create(ctx context.Context, uid string, data map[string]any, depth int) (*storage.Entity, error) {
	model, err := m.model(uid, depth)
	if err != nil {
		return nil, err
	}
	q, err := m.resolver.Query(uid)
	if err != nil {
		return nil, err
	}

	links := map[string][]storage.ComponentLink{}
	for _, a := range model.Attributes {
		value, present := data[a.Name]
		if !present || (a.Kind != schema.KindComponent && a.Kind != schema.KindDynamicZone) {
			continue
		}
		list, err := entries(model, a, value)
		if err != nil {
			return nil, err
		}
		created, err := m.createEntries(ctx, q.Store(), list, depth)
		if err != nil {
			return nil, err
		}
		links[a.Name] = created
	}

	e, err := q.Create(ctx, scalars(model, data))
	if err != nil {
		return nil, err
	}

	for _, a := range model.Attributes {
		list, ok := links[a.Name]
		if !ok {
			continue
		}
		if err := q.Store().SetComponentLinks(ctx, model.UID, e.ID, a.Name, list); err != nil {
			return nil, err
		}
	}

	if rel := relationValues(model, data); len(rel) > 0 {
		return m.engine.Sync(ctx, model.UID, e, rel)
	}
	return e, nil
}

// createEntries creates one component per entry and returns their links with
// order indexes 1..N in entry order
func (m *Manager) createEntries(ctx context.Context, store storage.Store, list []entry, depth int) ([]storage.ComponentLink, error) {
	links := make([]storage.ComponentLink, len(list))
	err := fanOut(ctx, store.Capabilities().SerialWrites, len(list), func(ctx context.Context, i int) error {
		c, err := m.create(ctx, list[i].uid, list[i].data, depth+1)
		if err != nil {
			return err
		}
		links[i] = storage.ComponentLink{ComponentType: list[i].uid, ComponentID: c.ID, Order: i + 1}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// Update applies a sparse payload to an existing entity. Attributes absent
// from data are left untouched. A component list in data replaces the
// previous list: entries with an id are updated in place, entries without one
// are created, and previous entries not listed are deleted. A nil value clears
// the attribute. Every entry id must already belong to the entity.
func (m *Manager) Update(ctx context.Context, uid string, existing *storage.Entity, data map[string]any) (*storage.Entity, error) {
	if err := m.checkUpdate(ctx, uid, existing.ID, data, 0); err != nil {
		return nil, err
	}
	model, err := m.model(uid, 0)
	if err != nil {
		return nil, err
	}
	plan, err := m.engine.ResolveUpdate(ctx, uid, existing, relationValues(model, data))
	if err != nil {
		return nil, err
	}
	e, err := m.update(ctx, uid, existing, data, plan, 0)
	if err != nil {
		return nil, err
	}
	metrics.RecordComponentOperation("update", uid)
	return e, nil
}

func (m *Manager) update(ctx context.Context, uid string, existing *storage.Entity, data map[string]any, plan *relations.Plan, depth int) (*storage.Entity, error) {
	model, err := m.model(uid, depth)
	if err != nil {
		return nil, err
	}
	q, err := m.resolver.Query(uid)
	if err != nil {
		return nil, err
	}
	store := q.Store()

	for _, a := range model.Attributes {
		value, present := data[a.Name]
		if !present || (a.Kind != schema.KindComponent && a.Kind != schema.KindDynamicZone) {
			continue
		}
		list, err := entries(model, a, value)
		if err != nil {
			return nil, err
		}
		previous, err := store.ComponentLinks(ctx, model.UID, existing.ID, a.Name)
		if err != nil {
			return nil, err
		}

		keep := make(map[string]struct{}, len(list))
		for _, e := range list {
			if e.hasID {
				keep[e.key()] = struct{}{}
			}
		}

		links := make([]storage.ComponentLink, len(list))
		if err := fanOut(ctx, store.Capabilities().SerialWrites, len(list), func(ctx context.Context, i int) error {
			e := list[i]
			var c *storage.Entity
			if e.hasID {
				cq, err := m.resolver.Query(e.uid)
				if err != nil {
					return err
				}
				current, err := cq.FindOne(ctx, e.id)
				if err != nil {
					return err
				}
				if c, err = m.updateNested(ctx, e.uid, current, e.data, depth+1); err != nil {
					return err
				}
			} else {
				var err error
				if c, err = m.create(ctx, e.uid, e.data, depth+1); err != nil {
					return err
				}
			}
			links[i] = storage.ComponentLink{ComponentType: e.uid, ComponentID: c.ID, Order: i + 1}
			return nil
		}); err != nil {
			return nil, err
		}

		// previous entries go once the new list is in place
		var orphans []storage.ComponentLink
		for _, l := range previous {
			if _, ok := keep[linkKey(l.ComponentType, l.ComponentID)]; !ok {
				orphans = append(orphans, l)
			}
		}
		if err := fanOut(ctx, store.Capabilities().SerialWrites, len(orphans), func(ctx context.Context, i int) error {
			return m.deleteComponent(ctx, orphans[i].ComponentType, orphans[i].ComponentID, depth+1)
		}); err != nil {
			return nil, err
		}

		if err := store.SetComponentLinks(ctx, model.UID, existing.ID, a.Name, links); err != nil {
			return nil, err
		}
	}

	for k, v := range scalars(model, data) {
		plan.Assignments[k] = v
	}
	if plan.Empty() {
		return existing, nil
	}
	return m.engine.Apply(ctx, plan)
}

// updateNested updates a component entity in place, resolving its own relations
func (m *Manager) updateNested(ctx context.Context, uid string, existing *storage.Entity, data map[string]any, depth int) (*storage.Entity, error) {
	model, err := m.model(uid, depth)
	if err != nil {
		return nil, err
	}
	plan, err := m.engine.ResolveUpdate(ctx, uid, existing, relationValues(model, data))
	if err != nil {
		return nil, err
	}
	return m.update(ctx, uid, existing, data, plan, depth)
}

// DeleteComponents deletes every component owned by the entity, children
// before parents, then removes the entity's component links.
func (m *Manager) DeleteComponents(ctx context.Context, uid string, e *storage.Entity, opts DeleteOptions) error {
	return m.deleteComponents(ctx, uid, e.ID, opts, 0)
}

func (m *Manager) deleteComponents(ctx context.Context, uid string, id uint64, opts DeleteOptions, depth int) error {
	model, err := m.model(uid, depth)
	if err != nil {
		return err
	}
	q, err := m.resolver.Query(uid)
	if err != nil {
		return err
	}
	store := q.Store()

	for _, a := range model.Attributes {
		if a.Kind != schema.KindComponent && a.Kind != schema.KindDynamicZone {
			continue
		}
		var owned []storage.ComponentLink
		if loaded, ok := opts.Loaded[a.Name]; ok && !opts.LoadComponents {
			owned = linksFromLoaded(a, loaded)
		} else {
			if owned, err = store.ComponentLinks(ctx, model.UID, id, a.Name); err != nil {
				return err
			}
		}
		if len(owned) == 0 {
			continue
		}
		if err := fanOut(ctx, store.Capabilities().SerialWrites, len(owned), func(ctx context.Context, i int) error {
			return m.deleteComponent(ctx, owned[i].ComponentType, owned[i].ComponentID, depth+1)
		}); err != nil {
			return err
		}
		if err := store.SetComponentLinks(ctx, model.UID, id, a.Name, nil); err != nil {
			return err
		}
	}
	return nil
}

// deleteComponent deletes one component entity and its whole subtree
func (m *Manager) deleteComponent(ctx context.Context, uid string, id uint64, depth int) error {
	if err := m.deleteComponents(ctx, uid, id, DeleteOptions{LoadComponents: true}, depth); err != nil {
		return err
	}
	q, err := m.resolver.Query(uid)
	if err != nil {
		return err
	}
	if err := m.engine.Unlink(ctx, uid, &storage.Entity{ID: id, Model: uid}); err != nil {
		return err
	}
	if err := q.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// Remove deletes an entity: its components, its relation links and finally its row
func (m *Manager) Remove(ctx context.Context, uid string, e *storage.Entity) error {
	if err := m.DeleteComponents(ctx, uid, e, DeleteOptions{LoadComponents: true}); err != nil {
		return err
	}
	if err := m.engine.Unlink(ctx, uid, e); err != nil {
		return err
	}
	q, err := m.resolver.Query(uid)
	if err != nil {
		return err
	}
	if err := q.Delete(ctx, e.ID); err != nil {
		return err
	}
	metrics.RecordComponentOperation("delete", uid)
	return nil
}

// scalars returns the declared scalar attributes present in data
func scalars(model *schema.Model, data map[string]any) map[string]any {
	out := map[string]any{}
	for _, a := range model.AttributesOf(schema.KindScalar) {
		if v, ok := data[a.Name]; ok {
			out[a.Name] = v
		}
	}
	return out
}

// relationValues returns the relation attributes present in data
func relationValues(model *schema.Model, data map[string]any) map[string]any {
	out := map[string]any{}
	for _, a := range model.AttributesOf(schema.KindRelation) {
		if v, ok := data[a.Name]; ok {
			out[a.Name] = v
		}
	}
	return out
}

// linksFromLoaded reads component links back from a populated attribute value
func linksFromLoaded(a *schema.Attribute, loaded any) []storage.ComponentLink {
	var items []any
	switch v := loaded.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	case []map[string]any:
		for _, item := range v {
			items = append(items, item)
		}
	}
	links := make([]storage.ComponentLink, 0, len(items))
	for i, item := range items {
		doc, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, err := types.ToID(doc["id"])
		if err != nil {
			continue
		}
		uid := a.Component
		if a.Kind == schema.KindDynamicZone {
			uid, _ = doc["__component"].(string)
		}
		links = append(links, storage.ComponentLink{ComponentType: uid, ComponentID: id, Order: i + 1})
	}
	return links
}
