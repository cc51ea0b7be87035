// Package registrytest builds loaded registries over the blog schema for tests.
package registrytest

import (
	"context"
	"testing"

	"github.com/localnerve/contentdb/internal/database/databasetest"
	"github.com/localnerve/contentdb/internal/registry"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/schema/schematest"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

// New returns a validated, loaded registry whose only connector is store
func New(t testing.TB, store storage.Store, opts ...registry.Option) *registry.Registry {
	t.Helper()
	opts = append([]registry.Option{
		registry.WithConnection(schema.DefaultConnector, "test"),
		registry.WithConnector("test", func(context.Context, schema.Provider) (storage.Store, error) {
			return store, nil
		}),
	}, opts...)
	r := registry.New(schematest.Models(), opts...)
	require.NoError(t, r.Validate())
	require.NoError(t, r.Load(context.Background()))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// Memory returns a registry over an empty memory store
func Memory(t testing.TB, opts ...registry.Option) *registry.Registry {
	return New(t, memory.New(), opts...)
}

// SQLite returns a registry over an empty in-memory SQLite store, which
// reports serial writes
func SQLite(t testing.TB, opts ...registry.Option) *registry.Registry {
	store, err := databasetest.Open(schematest.Registry())
	require.NoError(t, err)
	return New(t, store, opts...)
}

// Backends lists the registry constructors tests run against
var Backends = map[string]func(testing.TB, ...registry.Option) *registry.Registry{
	"memory": Memory,
	"sqlite": SQLite,
}
