package relations_test

import (
	"context"
	"testing"

	"github.com/localnerve/contentdb/internal/registry"
	"github.com/localnerve/contentdb/internal/registry/registrytest"
	"github.com/localnerve/contentdb/internal/relations"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/schema/schematest"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/storage/memory"
	"github.com/localnerve/contentdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	r      *registry.Registry
	engine *relations.Engine
}

func newFixture(t *testing.T, newRegistry func(testing.TB, ...registry.Option) *registry.Registry) *fixture {
	r := newRegistry(t)
	return &fixture{t: t, ctx: context.Background(), r: r, engine: relations.NewEngine(r, nil)}
}

func (f *fixture) create(uid string, data map[string]any) *storage.Entity {
	f.t.Helper()
	q, err := f.r.Query(uid)
	require.NoError(f.t, err)
	e, err := q.Create(f.ctx, data)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) get(uid string, id uint64) *storage.Entity {
	f.t.Helper()
	q, err := f.r.Query(uid)
	require.NoError(f.t, err)
	e, err := q.FindOne(f.ctx, id)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) load(uid string, id uint64, name string) any {
	f.t.Helper()
	q, err := f.r.Query(uid)
	require.NoError(f.t, err)
	loaded, err := q.Load(f.ctx, f.get(uid, id), name)
	require.NoError(f.t, err)
	return loaded[name]
}

func (f *fixture) sync(uid string, id uint64, proposed map[string]any) error {
	f.t.Helper()
	_, err := f.engine.Sync(f.ctx, uid, f.get(uid, id), proposed)
	return err
}

func forEachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for name, newRegistry := range registrytest.Backends {
		t.Run(name, func(t *testing.T) {
			fn(t, newFixture(t, newRegistry))
		})
	}
}

func TestOneToOneExclusive(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		banner := f.create(schematest.Banner, map[string]any{"caption": "T"})
		a := f.create(schematest.Article, map[string]any{"title": "A"})
		b := f.create(schematest.Article, map[string]any{"title": "B"})

		require.NoError(t, f.sync(schematest.Article, a.ID, map[string]any{"hero": banner.ID}))
		assert.Equal(t, a.ID, f.load(schematest.Banner, banner.ID, "article"))

		require.NoError(t, f.sync(schematest.Article, b.ID, map[string]any{"hero": map[string]any{"id": banner.ID}}))
		assert.Nil(t, f.load(schematest.Article, a.ID, "hero"))
		assert.Equal(t, banner.ID, f.load(schematest.Article, b.ID, "hero"))
		assert.Equal(t, b.ID, f.load(schematest.Banner, banner.ID, "article"))

		require.NoError(t, f.sync(schematest.Article, b.ID, map[string]any{"hero": nil}))
		assert.Nil(t, f.load(schematest.Article, b.ID, "hero"))
		assert.Nil(t, f.load(schematest.Banner, banner.ID, "article"))

		// from the other side
		require.NoError(t, f.sync(schematest.Banner, banner.ID, map[string]any{"article": a.ID}))
		assert.Equal(t, banner.ID, f.load(schematest.Article, a.ID, "hero"))
	})
}

func TestOneToOneUnchangedIsNoop(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		banner := f.create(schematest.Banner, map[string]any{"caption": "T"})
		a := f.create(schematest.Article, map[string]any{"title": "A"})
		require.NoError(t, f.sync(schematest.Article, a.ID, map[string]any{"hero": banner.ID}))

		plan, err := f.engine.ResolveUpdate(f.ctx, schematest.Article, f.get(schematest.Article, a.ID), map[string]any{"hero": banner.ID})
		require.NoError(t, err)
		assert.True(t, plan.Empty())
	})
}

func TestOneToMany(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		w := f.create(schematest.Writer, map[string]any{"name": "ada"})
		a1 := f.create(schematest.Article, map[string]any{"title": "1"})
		a2 := f.create(schematest.Article, map[string]any{"title": "2"})
		a3 := f.create(schematest.Article, map[string]any{"title": "3"})

		require.NoError(t, f.sync(schematest.Writer, w.ID, map[string]any{"articles": []any{a1.ID, a2.ID}}))
		assert.Equal(t, w.ID, f.load(schematest.Article, a1.ID, "author"))
		assert.Equal(t, w.ID, f.load(schematest.Article, a2.ID, "author"))

		require.NoError(t, f.sync(schematest.Writer, w.ID, map[string]any{"articles": []any{a2.ID, a3.ID}}))
		assert.Nil(t, f.load(schematest.Article, a1.ID, "author"))
		assert.Equal(t, []uint64{a2.ID, a3.ID}, f.load(schematest.Writer, w.ID, "articles"))
	})
}

func TestManyToMany(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		t1 := f.create(schematest.Tag, map[string]any{"label": "go"})
		t2 := f.create(schematest.Tag, map[string]any{"label": "db"})
		a1 := f.create(schematest.Article, map[string]any{"title": "1"})
		a2 := f.create(schematest.Article, map[string]any{"title": "2"})

		// dominant side stores the ids
		require.NoError(t, f.sync(schematest.Article, a1.ID, map[string]any{"tags": []any{t1.ID, t2.ID, t1.ID}}))
		assert.Equal(t, []uint64{t1.ID, t2.ID}, f.load(schematest.Article, a1.ID, "tags"))
		assert.Equal(t, []uint64{a1.ID}, f.load(schematest.Tag, t2.ID, "articles"))

		// non-dominant side pushes and pulls on the targets
		require.NoError(t, f.sync(schematest.Tag, t2.ID, map[string]any{"articles": []any{a2.ID}}))
		assert.Equal(t, []uint64{t1.ID}, f.load(schematest.Article, a1.ID, "tags"))
		assert.Equal(t, []uint64{t2.ID}, f.load(schematest.Article, a2.ID, "tags"))

		require.NoError(t, f.sync(schematest.Tag, t2.ID, map[string]any{"articles": nil}))
		assert.Equal(t, []uint64{}, f.load(schematest.Article, a2.ID, "tags"))
	})
}

func TestTargetSideMorph(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		a := f.create(schematest.Article, map[string]any{"title": "A"})
		f1 := f.create(schematest.File, map[string]any{"name": "1.png"})
		f2 := f.create(schematest.File, map[string]any{"name": "2.png"})

		require.NoError(t, f.sync(schematest.Article, a.ID, map[string]any{"gallery": []any{f1.ID, f2.ID}}))
		assert.Equal(t, []uint64{f1.ID, f2.ID}, f.load(schematest.Article, a.ID, "gallery"))
		assert.Equal(t, []any{map[string]any{"__type": schematest.Article, "id": a.ID, "field": "gallery"}},
			f.load(schematest.File, f1.ID, "related"))

		require.NoError(t, f.sync(schematest.Article, a.ID, map[string]any{"gallery": []any{f2.ID}, "attachment": f1.ID}))
		assert.Equal(t, []uint64{f2.ID}, f.load(schematest.Article, a.ID, "gallery"))
		assert.Equal(t, f1.ID, f.load(schematest.Article, a.ID, "attachment"))
		assert.Equal(t, []any{map[string]any{"__type": schematest.Article, "id": a.ID, "field": "attachment"}},
			f.load(schematest.File, f1.ID, "related"))

		require.NoError(t, f.sync(schematest.Article, a.ID, map[string]any{"attachment": nil}))
		assert.Nil(t, f.load(schematest.Article, a.ID, "attachment"))
	})
}

func TestMorphSide(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		a := f.create(schematest.Article, map[string]any{"title": "A"})
		b := f.create(schematest.Article, map[string]any{"title": "B"})
		c := f.create(schematest.Comment, map[string]any{"body": "nice"})

		ref := func(id uint64, field string) map[string]any {
			return map[string]any{"__type": "article", "id": id, "field": field}
		}

		require.NoError(t, f.sync(schematest.Comment, c.ID, map[string]any{"subject": ref(a.ID, "comments")}))
		assert.Equal(t, []uint64{c.ID}, f.load(schematest.Article, a.ID, "comments"))
		assert.Equal(t, map[string]any{"__type": schematest.Article, "id": a.ID, "field": "comments"},
			f.load(schematest.Comment, c.ID, "subject"))

		require.NoError(t, f.sync(schematest.Comment, c.ID, map[string]any{"subject": []any{ref(b.ID, "comments")}}))
		assert.Equal(t, []uint64{}, f.load(schematest.Article, a.ID, "comments"))
		assert.Equal(t, []uint64{c.ID}, f.load(schematest.Article, b.ID, "comments"))

		// a single-morph target field keeps only the latest linker
		f1 := f.create(schematest.File, map[string]any{"name": "1.png"})
		f2 := f.create(schematest.File, map[string]any{"name": "2.png"})
		require.NoError(t, f.sync(schematest.File, f1.ID, map[string]any{"related": []any{ref(a.ID, "attachment"), ref(a.ID, "gallery")}}))
		require.NoError(t, f.sync(schematest.File, f2.ID, map[string]any{"related": []any{map[string]any{"kind": schematest.Article, "refId": a.ID, "field": "attachment"}}}))
		assert.Equal(t, f2.ID, f.load(schematest.Article, a.ID, "attachment"))
		assert.Equal(t, []uint64{f1.ID}, f.load(schematest.Article, a.ID, "gallery"))

		require.NoError(t, f.sync(schematest.Comment, c.ID, map[string]any{"subject": nil}))
		assert.Nil(t, f.load(schematest.Comment, c.ID, "subject"))
	})
}

func TestMorphValidation(t *testing.T) {
	f := newFixture(t, registrytest.Memory)
	a := f.create(schematest.Article, map[string]any{"title": "A"})
	c := f.create(schematest.Comment, map[string]any{"body": "x"})

	tests := []struct {
		name    string
		subject any
	}{
		{"two targets on a to-one morph", []any{
			map[string]any{"__type": schematest.Article, "id": a.ID, "field": "comments"},
			map[string]any{"__type": schematest.Article, "id": a.ID, "field": "gallery"},
		}},
		{"unresolvable type", map[string]any{"__type": "api::nope.nope", "id": 1, "field": "comments"}},
		{"missing field", map[string]any{"__type": schematest.Article, "id": a.ID}},
		{"field is not a morph", map[string]any{"__type": schematest.Article, "id": a.ID, "field": "title"}},
		{"missing target", map[string]any{"__type": schematest.Article, "id": 999, "field": "comments"}},
		{"not an object", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.sync(schematest.Comment, c.ID, map[string]any{"subject": tt.subject})
			require.Error(t, err)
			assert.True(t, types.IsValidation(err), err.Error())
		})
	}
	assert.Nil(t, f.load(schematest.Comment, c.ID, "subject"))
}

func TestValidation(t *testing.T) {
	f := newFixture(t, registrytest.Memory)
	a := f.create(schematest.Article, map[string]any{"title": "A"})

	tests := []struct {
		name     string
		proposed map[string]any
	}{
		{"missing target", map[string]any{"author": 404}},
		{"list for a to-one", map[string]any{"related": []any{a.ID}}},
		{"bad id", map[string]any{"seeAlso": []any{"x"}}},
		{"missing one of many", map[string]any{"tags": []any{404}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ResolveUpdate(f.ctx, schematest.Article, a, tt.proposed)
			require.Error(t, err)
			assert.True(t, types.IsValidation(err), err.Error())
		})
	}
}

func TestCheck(t *testing.T) {
	f := newFixture(t, registrytest.Memory)
	a := f.create(schematest.Article, map[string]any{"title": "A"})
	b := f.create(schematest.Article, map[string]any{"title": "B"})
	w := f.create(schematest.Writer, map[string]any{"name": "w"})
	file := f.create(schematest.File, map[string]any{"name": "pic"})
	ref := map[string]any{"__type": schematest.Article, "id": a.ID, "field": "comments"}

	require.NoError(t, f.engine.Check(f.ctx, schematest.Article, map[string]any{
		"author":     w.ID,
		"hero":       nil,
		"attachment": file.ID,
		"gallery":    []any{file.ID},
	}))
	require.NoError(t, f.engine.Check(f.ctx, schematest.Comment, map[string]any{"subject": ref}))
	assert.Nil(t, f.load(schematest.Article, a.ID, "attachment"))
	assert.Nil(t, f.load(schematest.Article, a.ID, "author"))

	tests := []struct {
		name     string
		uid      string
		proposed map[string]any
	}{
		{"missing target", schematest.Article, map[string]any{"author": 404}},
		{"missing morph target", schematest.Article, map[string]any{"attachment": 404}},
		{"bad id in list", schematest.Article, map[string]any{"tags": []any{"x"}}},
		{"missing morph reference target", schematest.Comment, map[string]any{
			"subject": map[string]any{"__type": schematest.Article, "id": 404, "field": "comments"},
		}},
		{"reference to a plain field", schematest.Comment, map[string]any{
			"subject": map[string]any{"__type": schematest.Article, "id": a.ID, "field": "title"},
		}},
		{"two references for a single morph", schematest.Comment, map[string]any{
			"subject": []any{ref, map[string]any{"__type": schematest.Article, "id": b.ID, "field": "comments"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.Check(f.ctx, tt.uid, tt.proposed)
			require.Error(t, err)
			assert.True(t, types.IsValidation(err), err.Error())
		})
	}
}

func TestStoredRelations(t *testing.T) {
	f := newFixture(t, registrytest.Memory)
	w := f.create(schematest.Writer, map[string]any{"name": "w"})
	a := f.create(schematest.Article, map[string]any{"title": "A"})
	b := f.create(schematest.Article, map[string]any{"title": "B"})

	require.NoError(t, f.sync(schematest.Article, a.ID, map[string]any{
		"author":  w.ID,
		"related": b.ID,
		"seeAlso": []any{b.ID, a.ID},
		"title":   "ignored here",
	}))
	got := f.get(schematest.Article, a.ID)
	assert.Equal(t, "A", got.Data["title"])
	assert.Equal(t, []uint64{w.ID}, mustIDs(t, got.Data["author"]))
	assert.Equal(t, []uint64{b.ID, a.ID}, mustIDs(t, got.Data["seeAlso"]))

	plan, err := f.engine.ResolveUpdate(f.ctx, schematest.Article, got, map[string]any{})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestUnlink(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		w := f.create(schematest.Writer, map[string]any{"name": "w"})
		tag := f.create(schematest.Tag, map[string]any{"label": "go"})
		banner := f.create(schematest.Banner, map[string]any{"caption": "T"})
		file := f.create(schematest.File, map[string]any{"name": "f"})
		a := f.create(schematest.Article, map[string]any{"title": "A"})
		b := f.create(schematest.Article, map[string]any{"title": "B"})
		c := f.create(schematest.Comment, map[string]any{"body": "c"})

		require.NoError(t, f.sync(schematest.Article, a.ID, map[string]any{
			"author": w.ID, "tags": []any{tag.ID}, "hero": banner.ID, "gallery": []any{file.ID},
		}))
		require.NoError(t, f.sync(schematest.Article, b.ID, map[string]any{"related": a.ID, "seeAlso": []any{a.ID}}))
		require.NoError(t, f.sync(schematest.Comment, c.ID, map[string]any{
			"subject": map[string]any{"__type": schematest.Article, "id": a.ID, "field": "comments"},
		}))

		require.NoError(t, f.engine.Unlink(f.ctx, schematest.Article, f.get(schematest.Article, a.ID)))
		assert.Nil(t, f.load(schematest.Banner, banner.ID, "article"))
		assert.Equal(t, []any{}, f.load(schematest.File, file.ID, "related"))
		assert.Nil(t, f.load(schematest.Comment, c.ID, "subject"))
		assert.Nil(t, f.load(schematest.Article, b.ID, "related"))
		assert.Equal(t, []uint64{}, f.load(schematest.Article, b.ID, "seeAlso"))

		require.NoError(t, f.engine.Unlink(f.ctx, schematest.Writer, w))
		assert.Nil(t, f.load(schematest.Article, a.ID, "author"))

		require.NoError(t, f.engine.Unlink(f.ctx, schematest.Tag, tag))
		assert.Equal(t, []uint64{}, f.load(schematest.Article, a.ID, "tags"))
	})
}

func TestPruneDanglingMorphLinks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		a := f.create(schematest.Article, map[string]any{"title": "A"})
		f1 := f.create(schematest.File, map[string]any{"name": "1"})
		f2 := f.create(schematest.File, map[string]any{"name": "2"})
		require.NoError(t, f.sync(schematest.Article, a.ID, map[string]any{"gallery": []any{f1.ID}}))

		files, err := f.r.Query(schematest.File)
		require.NoError(t, err)
		require.NoError(t, files.Delete(f.ctx, f1.ID))

		require.NoError(t, f.sync(schematest.Article, a.ID, map[string]any{"gallery": []any{f2.ID}}))
		links, err := files.Store().MorphLinks(f.ctx, storage.MorphFilter{MorphModel: schematest.File})
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, f2.ID, links[0].MorphID)
	})
}

const unsupportedSchema = `
models:
  - uid: api::node.node
    name: node
    collection: nodes
    attributes:
      - { name: label, type: string }
      - { name: owner, type: relation, relation: oneMorphToOne, target: api::node.node, via: owner }
`

func TestUnsupportedMorph(t *testing.T) {
	models, err := schema.Parse([]byte(unsupportedSchema))
	require.NoError(t, err)

	r := registry.New(models,
		registry.WithConnection(schema.DefaultConnector, "memory"),
		registry.WithConnector("memory", memory.Factory))
	require.NoError(t, r.Validate())
	require.NoError(t, r.Load(context.Background()))

	q, err := r.Query("api::node.node")
	require.NoError(t, err)
	n, err := q.Create(context.Background(), map[string]any{"label": "n"})
	require.NoError(t, err)

	engine := relations.NewEngine(r, nil)
	_, err = engine.ResolveUpdate(context.Background(), "api::node.node", n, map[string]any{"owner": nil})
	require.Error(t, err)
	assert.True(t, types.IsUnsupported(err))
}

func mustIDs(t *testing.T, v any) []uint64 {
	t.Helper()
	ids, err := types.ToIDs(v)
	require.NoError(t, err)
	return ids
}
