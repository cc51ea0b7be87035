// registry.go
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

// Package registry binds models to store adapters and hands out one query
// object per model.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
	"go.uber.org/zap"
)

// ConnectorFactory builds a store adapter for one connector type
type ConnectorFactory func(ctx context.Context, schemas schema.Provider) (storage.Store, error)

// Registry maps model identifiers to store adapters
type Registry struct {
	models      []*schema.Model
	schemas     *schema.Registry
	factories   map[string]ConnectorFactory
	connections map[string]string // connection name -> connector type
	maxDepth    int
	log         *zap.Logger

	mu       sync.RWMutex
	adapters map[string]storage.Store // connector type -> adapter
	queries  map[string]*Query        // model uid -> query
}

// Option configures a Registry
type Option func(*Registry)

// WithConnector registers the factory for a connector type
func WithConnector(connectorType string, factory ConnectorFactory) Option {
	return func(r *Registry) {
		r.factories[connectorType] = factory
	}
}

// WithConnection maps a connection name used by models to a connector type
func WithConnection(name, connectorType string) Option {
	return func(r *Registry) {
		r.connections[name] = connectorType
	}
}

// WithMaxDepth bounds component nesting while loading
func WithMaxDepth(depth int) Option {
	return func(r *Registry) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithLogger sets the registry logger
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a registry for the models. Validate and Load must run before Query.
func New(models []*schema.Model, opts ...Option) *Registry {
	r := &Registry{
		models:      models,
		factories:   map[string]ConnectorFactory{},
		connections: map[string]string{},
		maxDepth:    32,
		log:         zap.NewNop(),
		adapters:    map[string]storage.Store{},
		queries:     map[string]*Query{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate checks the schema once, before the model maps are built
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schemas != nil {
		return nil
	}
	schemas, err := schema.NewRegistry(r.models)
	if err != nil {
		return err
	}
	r.schemas = schemas
	r.log.Info("Schema validated", zap.Int("models", len(r.models)))
	return nil
}

// Load instantiates one adapter per distinct connector type used by the
// models. Calling it again is a no-op for adapters already built.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schemas == nil {
		return fmt.Errorf("registry: Load called before Validate")
	}

	for _, m := range r.models {
		connectorType, err := r.connectorTypeLocked(m)
		if err != nil {
			return err
		}
		if _, ok := r.adapters[connectorType]; ok {
			continue
		}
		factory, ok := r.factories[connectorType]
		if !ok {
			return types.NewSchemaError("model %s: no factory for connector type %q", m.UID, connectorType)
		}
		adapter, err := factory(ctx, r.schemas)
		if err != nil {
			return fmt.Errorf("connector %s: %w", connectorType, err)
		}
		r.adapters[connectorType] = adapter
		r.log.Info("Connector loaded", zap.String("connector", connectorType))
	}
	return nil
}

func (r *Registry) connectorTypeLocked(m *schema.Model) (string, error) {
	connectorType, ok := r.connections[m.Connector]
	if !ok {
		return "", types.NewSchemaError("model %s uses unknown connection %q", m.UID, m.Connector)
	}
	return connectorType, nil
}

// Schemas returns the validated schema provider
func (r *Registry) Schemas() schema.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas
}

// Stores returns the loaded adapters
func (r *Registry) Stores() []storage.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]storage.Store, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// Query resolves an identifier (uid or case-insensitive name) to the model's query object
func (r *Registry) Query(identifier string) (*Query, error) {
	return r.QueryPlugin(identifier, "")
}

// QueryPlugin resolves an identifier scoped to a plugin. The first resolution
// builds the query object and later calls return the same instance.
func (r *Registry) QueryPlugin(identifier, plugin string) (*Query, error) {
	r.mu.RLock()
	schemas := r.schemas
	if schemas == nil {
		r.mu.RUnlock()
		return nil, fmt.Errorf("registry: Query called before Validate")
	}
	m, err := schemas.Resolve(identifier, plugin)
	if err != nil {
		r.mu.RUnlock()
		return nil, err
	}
	if q, ok := r.queries[m.UID]; ok {
		r.mu.RUnlock()
		return q, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queries[m.UID]; ok {
		return q, nil
	}
	connectorType, err := r.connectorTypeLocked(m)
	if err != nil {
		return nil, err
	}
	adapter, ok := r.adapters[connectorType]
	if !ok {
		return nil, fmt.Errorf("registry: connector %s not loaded", connectorType)
	}
	q := &Query{
		model:    m,
		store:    adapter,
		registry: r,
		maxDepth: r.maxDepth,
	}
	r.queries[m.UID] = q
	return q, nil
}

// Close closes every adapter
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, a := range r.adapters {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
	}
	return firstErr
}
