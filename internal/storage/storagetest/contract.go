// Package storagetest exercises any storage.Store against the blog schema.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/localnerve/contentdb/internal/schema/schematest"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run runs the store contract. newStore must return an empty store migrated for the blog schema.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("CreateFindUpdateDelete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		e, err := s.Create(ctx, schematest.Article, map[string]any{"id": 99, "title": "hello", "author": 3})
		require.NoError(t, err)
		assert.NotZero(t, e.ID)
		assert.NotEqual(t, uint64(99), e.ID)
		assert.NotContains(t, e.Data, "id")

		got, err := s.FindOne(ctx, schematest.Article, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Data["title"])

		updated, err := s.Update(ctx, schematest.Article, e.ID, map[string]any{"slug": "hello-world", "author": nil})
		require.NoError(t, err)
		assert.Equal(t, "hello", updated.Data["title"])
		assert.Equal(t, "hello-world", updated.Data["slug"])
		assert.Nil(t, updated.Data["author"])

		require.NoError(t, s.Delete(ctx, schematest.Article, e.ID))
		_, err = s.FindOne(ctx, schematest.Article, e.ID)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		assert.True(t, types.IsNotFound(err))
		assert.True(t, errors.Is(s.Delete(ctx, schematest.Article, e.ID), storage.ErrNotFound))

		_, err = s.Update(ctx, schematest.Article, e.ID, map[string]any{"title": "x"})
		assert.True(t, types.IsNotFound(err))
	})

	t.Run("Criteria", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, _ := s.Create(ctx, schematest.Article, map[string]any{"title": "a", "author": 1, "tags": []any{1, 2}})
		b, _ := s.Create(ctx, schematest.Article, map[string]any{"title": "b", "author": 2, "tags": []any{2}})
		c, _ := s.Create(ctx, schematest.Article, map[string]any{"title": "c", "author": 1})

		found, err := s.Find(ctx, schematest.Article, storage.Criteria{Where: map[string]any{"author": uint64(1)}})
		require.NoError(t, err)
		assert.Equal(t, []uint64{a.ID, c.ID}, ids(found))

		found, err = s.Find(ctx, schematest.Article, storage.Criteria{Contains: map[string]uint64{"tags": 2}})
		require.NoError(t, err)
		assert.Equal(t, []uint64{a.ID, b.ID}, ids(found))

		found, err = s.Find(ctx, schematest.Article, storage.Criteria{IDs: []uint64{c.ID, b.ID}})
		require.NoError(t, err)
		assert.Equal(t, []uint64{b.ID, c.ID}, ids(found))

		found, err = s.Find(ctx, schematest.Article, storage.Criteria{Where: map[string]any{"title": "b"}, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []uint64{b.ID}, ids(found))

		n, err := s.Count(ctx, schematest.Article, storage.Criteria{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	})

	t.Run("ComponentLinks", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		links := []storage.ComponentLink{
			{ComponentType: schematest.Section, ComponentID: 7, Order: 1},
			{ComponentType: schematest.Section, ComponentID: 5, Order: 2},
		}
		require.NoError(t, s.SetComponentLinks(ctx, schematest.Article, 1, "sections", links))
		require.NoError(t, s.SetComponentLinks(ctx, schematest.Article, 1, "seo", []storage.ComponentLink{
			{ComponentType: schematest.SEO, ComponentID: 1, Order: 1},
		}))

		got, err := s.ComponentLinks(ctx, schematest.Article, 1, "sections")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint64(7), got[0].ComponentID)
		assert.Equal(t, "sections", got[0].Field)
		assert.Equal(t, uint64(5), got[1].ComponentID)

		all, err := s.ComponentLinks(ctx, schematest.Article, 1, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, s.SetComponentLinks(ctx, schematest.Article, 1, "sections", nil))
		got, err = s.ComponentLinks(ctx, schematest.Article, 1, "sections")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("MorphLinks", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, related := range []uint64{10, 11} {
			require.NoError(t, s.CreateMorphLink(ctx, storage.MorphLink{
				MorphModel: schematest.File, MorphID: 1, MorphField: "related",
				RelatedType: schematest.Article, RelatedID: related, Field: "gallery", Order: i + 1,
			}))
		}
		require.NoError(t, s.CreateMorphLink(ctx, storage.MorphLink{
			MorphModel: schematest.File, MorphID: 2, MorphField: "related",
			RelatedType: schematest.Article, RelatedID: 10, Field: "attachment", Order: 1,
		}))

		got, err := s.MorphLinks(ctx, storage.MorphFilter{MorphModel: schematest.File, MorphID: 1})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint64(10), got[0].RelatedID)

		got, err = s.MorphLinks(ctx, storage.MorphFilter{RelatedType: schematest.Article, RelatedID: 10})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		n, err := s.DeleteMorphLinks(ctx, storage.MorphFilter{RelatedID: 10, Field: "gallery"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err = s.MorphLinks(ctx, storage.MorphFilter{MorphModel: schematest.File})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("TransactionRollback", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		kept, err := s.Create(ctx, schematest.Tag, map[string]any{"label": "kept"})
		require.NoError(t, err)

		boom := errors.New("boom")
		err = s.Transaction(ctx, func(ctx context.Context) error {
			if _, err := s.Create(ctx, schematest.Tag, map[string]any{"label": "dropped"}); err != nil {
				return err
			}
			if _, err := s.Update(ctx, schematest.Tag, kept.ID, map[string]any{"label": "changed"}); err != nil {
				return err
			}
			// nested calls join the outer transaction
			return s.Transaction(ctx, func(ctx context.Context) error {
				return boom
			})
		})
		require.ErrorIs(t, err, boom)

		all, err := s.Find(ctx, schematest.Tag, storage.Criteria{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "kept", all[0].Data["label"])
	})
}

func ids(entities []*storage.Entity) []uint64 {
	out := make([]uint64, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}
