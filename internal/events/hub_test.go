package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/localnerve/contentdb/internal/schema/schematest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitFIFO(t *testing.T) {
	h := NewHub(nil, nil)
	var order []string
	h.On(EntryCreate, func(ctx context.Context, ev Event) { order = append(order, "first") })
	h.On(All, func(ctx context.Context, ev Event) { order = append(order, "wildcard") })
	h.On(EntryCreate, func(ctx context.Context, ev Event) { order = append(order, "third") })
	h.On(EntryDelete, func(ctx context.Context, ev Event) { order = append(order, "other") })

	h.Emit(context.Background(), Event{Name: EntryCreate})
	assert.Equal(t, []string{"first", "wildcard", "third"}, order)
}

func TestEmitStampsEvent(t *testing.T) {
	h := NewHub(nil, nil)
	var got []Event
	h.On(EntryUpdate, func(ctx context.Context, ev Event) { got = append(got, ev) })

	h.Emit(context.Background(), Event{Name: EntryUpdate})
	h.Emit(context.Background(), Event{Name: EntryUpdate})
	require.Len(t, got, 2)
	assert.Len(t, got[0].ID, 26)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Less(t, got[0].ID, got[1].ID)
}

func TestOnceConcurrent(t *testing.T) {
	h := NewHub(nil, nil)
	var calls int32
	h.Once(EntryCreate, func(ctx context.Context, ev Event) { atomic.AddInt32(&calls, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Emit(context.Background(), Event{Name: EntryCreate})
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Zero(t, h.Listeners(EntryCreate))
}

func TestUnsubscribeAndOff(t *testing.T) {
	h := NewHub(nil, nil)
	calls := 0
	unsubscribe := h.On(EntryCreate, func(ctx context.Context, ev Event) { calls++ })
	h.On(EntryCreate, func(ctx context.Context, ev Event) { calls += 10 })

	unsubscribe()
	h.Emit(context.Background(), Event{Name: EntryCreate})
	assert.Equal(t, 10, calls)

	h.Off(EntryCreate)
	h.Emit(context.Background(), Event{Name: EntryCreate})
	assert.Equal(t, 10, calls)
}

func TestPanickingHandler(t *testing.T) {
	h := NewHub(nil, nil)
	delivered := false
	h.On(EntryDelete, func(ctx context.Context, ev Event) { panic("boom") })
	h.On(EntryDelete, func(ctx context.Context, ev Event) { delivered = true })

	assert.NotPanics(t, func() { h.Emit(context.Background(), Event{Name: EntryDelete}) })
	assert.True(t, delivered)
}

func TestEmitEntrySanitizes(t *testing.T) {
	schemas := schematest.Registry()
	article, err := schemas.Model(schematest.Article)
	require.NoError(t, err)

	h := NewHub(NewSanitizer(schemas, nil), nil)
	var got Event
	h.On(EntryCreate, func(ctx context.Context, ev Event) { got = ev })

	entry := map[string]any{"id": uint64(1), "title": "t", "secret": "s", "password": "p"}
	h.EmitEntry(context.Background(), EntryCreate, article, entry)

	assert.Equal(t, schematest.Article, got.Model)
	assert.Equal(t, map[string]any{"id": uint64(1), "title": "t"}, got.Entry)
	assert.Contains(t, entry, "secret")
}
