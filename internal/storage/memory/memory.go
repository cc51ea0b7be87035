// Package memory is an in-process storage.Store. Writes may run concurrently.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
)

// Dialect reported by the memory store
const Dialect = "memory"

type table struct {
	seq  uint64
	rows map[uint64]*storage.Entity
}

type state struct {
	tables     map[string]*table
	components []storage.ComponentLink
	morphs     []storage.MorphLink
	morphSeq   uint64
}

func (s *state) clone() *state {
	out := &state{
		tables:     make(map[string]*table, len(s.tables)),
		components: append([]storage.ComponentLink(nil), s.components...),
		morphs:     append([]storage.MorphLink(nil), s.morphs...),
		morphSeq:   s.morphSeq,
	}
	for name, t := range s.tables {
		ct := &table{seq: t.seq, rows: make(map[uint64]*storage.Entity, len(t.rows))}
		for id, e := range t.rows {
			ct.rows[id] = copyEntity(e)
		}
		out.tables[name] = ct
	}
	return out
}

// Store keeps every model in maps guarded by one mutex
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New creates an empty memory store
func New() *Store {
	return &Store{
		st:  &state{tables: map[string]*table{}},
		now: time.Now,
	}
}

// Factory adapts New to a connector factory signature
func Factory(_ context.Context, _ schema.Provider) (storage.Store, error) {
	return New(), nil
}

type txKey struct{}

// Transaction snapshots the store and restores it when fn fails. Transactions
// are not isolated from writers outside of them.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{Dialect: Dialect}
}

func (s *Store) Close() error {
	return nil
}

// Migrate creates empty tables for the models
func (s *Store) Migrate(_ context.Context, models []*schema.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range models {
		s.tableLocked(m.UID)
	}
	return nil
}

func (s *Store) tableLocked(model string) *table {
	t, ok := s.st.tables[model]
	if !ok {
		t = &table{rows: map[uint64]*storage.Entity{}}
		s.st.tables[model] = t
	}
	return t
}

func (s *Store) Create(_ context.Context, model string, data map[string]any) (*storage.Entity, error) {
	copied, err := storage.Clone(data)
	if err != nil {
		return nil, err
	}
	delete(copied, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tableLocked(model)
	t.seq++
	now := s.now()
	e := &storage.Entity{ID: t.seq, Model: model, Data: copied, CreatedAt: now, UpdatedAt: now}
	t.rows[e.ID] = e
	return copyEntity(e), nil
}

func (s *Store) Update(_ context.Context, model string, id uint64, data map[string]any) (*storage.Entity, error) {
	copied, err := storage.Clone(data)
	if err != nil {
		return nil, err
	}
	delete(copied, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tableLocked(model).rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	for k, v := range copied {
		e.Data[k] = v
	}
	e.UpdatedAt = s.now()
	return copyEntity(e), nil
}

func (s *Store) Delete(_ context.Context, model string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tableLocked(model)
	if _, ok := t.rows[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

func (s *Store) Find(_ context.Context, model string, c storage.Criteria) ([]*storage.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tableLocked(model)
	ids := make([]uint64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*storage.Entity
	for _, id := range ids {
		e := t.rows[id]
		if !storage.Match(e, c) {
			continue
		}
		out = append(out, copyEntity(e))
		if c.Limit > 0 && len(out) == c.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) FindOne(_ context.Context, model string, id uint64) (*storage.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tableLocked(model).rows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyEntity(e), nil
}

func (s *Store) Count(ctx context.Context, model string, c storage.Criteria) (int64, error) {
	c.Limit = 0
	found, err := s.Find(ctx, model, c)
	if err != nil {
		return 0, err
	}
	return int64(len(found)), nil
}

func (s *Store) ComponentLinks(_ context.Context, ownerModel string, ownerID uint64, field string) ([]storage.ComponentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ComponentLink
	for _, l := range s.st.components {
		if l.OwnerModel == ownerModel && l.OwnerID == ownerID && (field == "" || l.Field == field) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (s *Store) SetComponentLinks(_ context.Context, ownerModel string, ownerID uint64, field string, links []storage.ComponentLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.st.components[:0:0]
	for _, l := range s.st.components {
		if l.OwnerModel == ownerModel && l.OwnerID == ownerID && l.Field == field {
			continue
		}
		kept = append(kept, l)
	}
	for _, l := range links {
		l.OwnerModel, l.OwnerID, l.Field = ownerModel, ownerID, field
		kept = append(kept, l)
	}
	s.st.components = kept
	return nil
}

func (s *Store) MorphLinks(_ context.Context, f storage.MorphFilter) ([]storage.MorphLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.MorphLink
	for _, l := range s.st.morphs {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateMorphLink(_ context.Context, l storage.MorphLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.morphSeq++
	l.ID = s.st.morphSeq
	s.st.morphs = append(s.st.morphs, l)
	return nil
}

func (s *Store) DeleteMorphLinks(_ context.Context, f storage.MorphFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.st.morphs[:0:0]
	for _, l := range s.st.morphs {
		if f.Match(l) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	s.st.morphs = kept
	return n, nil
}

func copyEntity(e *storage.Entity) *storage.Entity {
	out := *e
	out.Data = make(map[string]any, len(e.Data))
	for k, v := range e.Data {
		out.Data[k] = copyValue(v)
	}
	return &out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, item := range x {
			m[k] = copyValue(item)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, item := range x {
			s[i] = copyValue(item)
		}
		return s
	}
	return v
}
