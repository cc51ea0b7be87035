package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/localnerve/contentdb/internal/events"
	"github.com/localnerve/contentdb/internal/lifecycle"
	"github.com/localnerve/contentdb/internal/migration"
	"github.com/localnerve/contentdb/internal/registry"
	"github.com/localnerve/contentdb/internal/registry/registrytest"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/schema/schematest"
	"github.com/localnerve/contentdb/internal/services"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects events and step names in the order they happen
type recorder struct {
	mu     sync.Mutex
	steps  []string
	events []events.Event
}

func (r *recorder) step(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, name)
}

func (r *recorder) handle(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, "event:"+ev.Name)
	r.events = append(r.events, ev)
}

func newService(t *testing.T, newRegistry func(testing.TB, ...registry.Option) *registry.Registry) (*services.EntityService, *recorder) {
	r := newRegistry(t)
	svc := services.NewEntityService(r, 32)
	rec := &recorder{}
	svc.Hub().On(events.All, rec.handle)
	return svc, rec
}

func forEachBackend(t *testing.T, fn func(t *testing.T, svc *services.EntityService, rec *recorder)) {
	for name, newRegistry := range registrytest.Backends {
		t.Run(name, func(t *testing.T) {
			svc, rec := newService(t, newRegistry)
			fn(t, svc, rec)
		})
	}
}

func count(t *testing.T, svc *services.EntityService, uid string) int64 {
	t.Helper()
	n, err := svc.Count(context.Background(), uid, storage.Criteria{})
	require.NoError(t, err)
	return n
}

func docID(t *testing.T, doc services.Document) uint64 {
	t.Helper()
	id, err := types.ToID(doc["id"])
	require.NoError(t, err)
	return id
}

func TestCreateRunsPhasesInOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *services.EntityService, rec *recorder) {
		ctx := context.Background()
		for _, name := range []string{"m1", "m2"} {
			name := name
			svc.Migrations().Register(migration.Migration{
				Name: name,
				Before: func(context.Context, migration.Options, migration.State) error {
					rec.step(name + ".before")
					return nil
				},
				After: func(context.Context, migration.Options, migration.State) error {
					rec.step(name + ".after")
					return nil
				},
			})
		}
		svc.Lifecycles().Register(lifecycle.Lifecycle{
			Model: schematest.Article,
			Hooks: map[lifecycle.Action]lifecycle.HookFunc{
				lifecycle.BeforeCreate: func(context.Context, *schema.Model, ...any) error {
					rec.step("beforeCreate")
					return nil
				},
				lifecycle.AfterCreate: func(context.Context, *schema.Model, ...any) error {
					rec.step("afterCreate")
					return nil
				},
			},
		})

		doc, err := svc.Create(ctx, schematest.Article, map[string]any{
			"title":    "hello",
			"secret":   "s3cret",
			"password": "hunter2",
			"sections": []any{map[string]any{"heading": "a"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "hello", doc["title"])

		assert.Equal(t, []string{
			"m1.before", "m2.before", "beforeCreate", "afterCreate", "m2.after", "m1.after", "event:" + events.EntryCreate,
		}, rec.steps)

		require.Len(t, rec.events, 1)
		ev := rec.events[0]
		assert.Equal(t, schematest.Article, ev.Model)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, "hello", ev.Entry["title"])
		assert.NotContains(t, ev.Entry, "secret")
		assert.NotContains(t, ev.Entry, "password")
		assert.Len(t, ev.Entry["sections"], 1)
	})
}

func TestFailedWriteRollsBack(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *services.EntityService, rec *recorder) {
		ctx := context.Background()
		boom := errors.New("boom")
		svc.Lifecycles().Register(lifecycle.Lifecycle{
			Model: schematest.Article,
			Hooks: map[lifecycle.Action]lifecycle.HookFunc{
				lifecycle.AfterCreate: func(context.Context, *schema.Model, ...any) error {
					return boom
				},
			},
		})

		_, err := svc.Create(ctx, schematest.Article, map[string]any{
			"title":    "doomed",
			"seo":      map[string]any{"metaTitle": "m"},
			"sections": []any{map[string]any{"heading": "a"}},
		})
		require.ErrorIs(t, err, boom)
		assert.Zero(t, count(t, svc, schematest.Article))
		assert.Zero(t, count(t, svc, schematest.Section))
		assert.Zero(t, count(t, svc, schematest.SEO))
		assert.Empty(t, rec.events)
	})
}

func TestRelationErrorRollsBackCreate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *services.EntityService, rec *recorder) {
		_, err := svc.Create(context.Background(), schematest.Article, map[string]any{"title": "t", "author": 404})
		require.Error(t, err)
		assert.True(t, types.IsValidation(err))
		assert.Zero(t, count(t, svc, schematest.Article))
		assert.Empty(t, rec.events)
	})
}

func TestUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *services.EntityService, rec *recorder) {
		ctx := context.Background()
		created, err := svc.Create(ctx, schematest.Article, map[string]any{"title": "v1"})
		require.NoError(t, err)
		id := docID(t, created)

		var seen migration.Options
		svc.Migrations().Register(migration.Migration{
			Name: "capture",
			Before: func(_ context.Context, opts migration.Options, _ migration.State) error {
				seen = opts
				return nil
			},
		})

		updated, err := svc.Update(ctx, schematest.Article, id, map[string]any{"title": "v2"})
		require.NoError(t, err)
		assert.Equal(t, "v2", updated["title"])
		assert.Equal(t, "update", seen.Action)
		assert.Equal(t, schematest.Article, seen.Model)
		assert.Equal(t, "v2", seen.Data["title"])

		require.Len(t, rec.events, 2)
		assert.Equal(t, events.EntryUpdate, rec.events[1].Name)

		_, err = svc.Update(ctx, schematest.Article, 9999, map[string]any{"title": "x"})
		assert.True(t, types.IsNotFound(err))
	})
}

func TestDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *services.EntityService, rec *recorder) {
		ctx := context.Background()
		created, err := svc.Create(ctx, schematest.Article, map[string]any{
			"title":    "gone",
			"secret":   "s",
			"sections": []any{map[string]any{"heading": "a", "links": []any{map[string]any{"url": "/"}}}},
		})
		require.NoError(t, err)
		id := docID(t, created)

		deleted, err := svc.Delete(ctx, schematest.Article, id)
		require.NoError(t, err)
		assert.Equal(t, "gone", deleted["title"])
		assert.Zero(t, count(t, svc, schematest.Article))
		assert.Zero(t, count(t, svc, schematest.Section))
		assert.Zero(t, count(t, svc, schematest.Link))

		last := rec.events[len(rec.events)-1]
		assert.Equal(t, events.EntryDelete, last.Name)
		assert.Equal(t, "gone", last.Entry["title"])
		assert.NotContains(t, last.Entry, "secret")

		_, err = svc.Delete(ctx, schematest.Article, id)
		assert.True(t, types.IsNotFound(err))
	})
}

func TestMediaEvents(t *testing.T) {
	svc, rec := newService(t, registrytest.Memory)
	ctx := context.Background()

	file, err := svc.Create(ctx, schematest.File, map[string]any{"name": "pic.png"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, schematest.File, docID(t, file), map[string]any{"url": "/pic.png"})
	require.NoError(t, err)
	_, err = svc.Delete(ctx, schematest.File, docID(t, file))
	require.NoError(t, err)

	var names []string
	for _, ev := range rec.events {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{events.MediaCreate, events.MediaUpdate, events.MediaDelete}, names)
}

func TestClone(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *services.EntityService, rec *recorder) {
		ctx := context.Background()
		src, err := svc.Create(ctx, schematest.Article, map[string]any{
			"title": "src", "slug": "src", "sections": []any{map[string]any{"heading": "a"}},
		})
		require.NoError(t, err)

		clone, err := svc.Clone(ctx, schematest.Article, docID(t, src), map[string]any{"title": "copy"})
		require.NoError(t, err)
		assert.NotEqual(t, src["id"], clone["id"])
		assert.Equal(t, "copy", clone["title"])
		assert.Equal(t, "src", clone["slug"])
		assert.Len(t, clone["sections"], 1)
		assert.EqualValues(t, 2, count(t, svc, schematest.Section))
		assert.Equal(t, events.EntryCreate, rec.events[len(rec.events)-1].Name)

		_, err = svc.Clone(ctx, schematest.Article, 9999, nil)
		assert.True(t, types.IsNotFound(err))
	})
}

func TestPublish(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *services.EntityService, rec *recorder) {
		ctx := context.Background()
		doc, err := svc.Create(ctx, schematest.Article, map[string]any{"title": "draft"})
		require.NoError(t, err)
		id := docID(t, doc)

		published, err := svc.Publish(ctx, schematest.Article, id)
		require.NoError(t, err)
		assert.NotEmpty(t, published[services.PublishedAtField])

		unpublished, err := svc.Unpublish(ctx, schematest.Article, id)
		require.NoError(t, err)
		assert.Nil(t, unpublished[services.PublishedAtField])
		assert.Equal(t, "draft", unpublished["title"])

		var names []string
		for _, ev := range rec.events {
			names = append(names, ev.Name)
		}
		assert.Equal(t, []string{events.EntryCreate, events.EntryPublish, events.EntryUnpublish}, names)
	})
}
