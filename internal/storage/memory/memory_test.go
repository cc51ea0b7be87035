package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/localnerve/contentdb/internal/schema/schematest"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/storage/memory"
	"github.com/localnerve/contentdb/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s := memory.New()
		require.NoError(t, s.Migrate(context.Background(), schematest.Models()))
		return s
	})
}

func TestMemoryStoreConcurrentWrites(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	assert.False(t, s.Capabilities().SerialWrites)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, schematest.Tag, map[string]any{"label": "t"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx, schematest.Tag, storage.Criteria{})
	require.NoError(t, err)
	assert.EqualValues(t, 50, n)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	e, err := s.Create(ctx, schematest.Tag, map[string]any{"label": "a"})
	require.NoError(t, err)
	e.Data["label"] = "mutated"

	got, err := s.FindOne(ctx, schematest.Tag, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Data["label"])
}
