package relations

import (
	"context"
	"errors"

	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
)

// Operation is one deferred link or unlink step of a Plan. The set of
// operations is closed to this package.
type Operation interface {
	// Kind names the operation for logs and metrics
	Kind() string
	apply(ctx context.Context, r Resolver) error
}

// SetField sets one field on one entity. Clearing a field on an entity that
// no longer exists is not an error.
type SetField struct {
	Model string
	ID    uint64
	Field string
	Value any
}

func (SetField) Kind() string { return "setField" }

func (op SetField) apply(ctx context.Context, r Resolver) error {
	q, err := r.Query(op.Model)
	if err != nil {
		return err
	}
	_, err = q.Update(ctx, op.ID, map[string]any{op.Field: op.Value})
	if op.Value == nil && errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// ClearWhere nulls Field on every entity of Model whose Field holds Value,
// except ExcludeID.
type ClearWhere struct {
	Model     string
	Field     string
	Value     uint64
	ExcludeID uint64
}

func (ClearWhere) Kind() string { return "clearWhere" }

func (op ClearWhere) apply(ctx context.Context, r Resolver) error {
	q, err := r.Query(op.Model)
	if err != nil {
		return err
	}
	holders, err := q.Find(ctx, storage.Criteria{Where: map[string]any{op.Field: op.Value}})
	if err != nil {
		return err
	}
	for _, h := range holders {
		if h.ID == op.ExcludeID {
			continue
		}
		if _, err := q.Update(ctx, h.ID, map[string]any{op.Field: nil}); err != nil {
			return err
		}
	}
	return nil
}

// PushID appends Value to the id list in Field when it is not already present
type PushID struct {
	Model string
	ID    uint64
	Field string
	Value uint64
}

func (PushID) Kind() string { return "pushId" }

func (op PushID) apply(ctx context.Context, r Resolver) error {
	q, err := r.Query(op.Model)
	if err != nil {
		return err
	}
	e, err := q.FindOne(ctx, op.ID)
	if err != nil {
		return err
	}
	ids, err := types.ToIDs(e.Data[op.Field])
	if err != nil {
		return err
	}
	if containsID(ids, op.Value) {
		return nil
	}
	_, err = q.Update(ctx, op.ID, map[string]any{op.Field: append(ids, op.Value)})
	return err
}

// PullID removes Value from the id list in Field
type PullID struct {
	Model string
	ID    uint64
	Field string
	Value uint64
}

func (PullID) Kind() string { return "pullId" }

func (op PullID) apply(ctx context.Context, r Resolver) error {
	q, err := r.Query(op.Model)
	if err != nil {
		return err
	}
	e, err := q.FindOne(ctx, op.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	return pull(ctx, q.Update, e, op.Field, op.Value)
}

// PullWhere removes Value from the id list in Field on every entity of Model holding it
type PullWhere struct {
	Model string
	Field string
	Value uint64
}

func (PullWhere) Kind() string { return "pullWhere" }

func (op PullWhere) apply(ctx context.Context, r Resolver) error {
	q, err := r.Query(op.Model)
	if err != nil {
		return err
	}
	holders, err := q.Find(ctx, storage.Criteria{Contains: map[string]uint64{op.Field: op.Value}})
	if err != nil {
		return err
	}
	for _, h := range holders {
		if err := pull(ctx, q.Update, h, op.Field, op.Value); err != nil {
			return err
		}
	}
	return nil
}

type updateFunc func(ctx context.Context, id uint64, data map[string]any) (*storage.Entity, error)

func pull(ctx context.Context, update updateFunc, e *storage.Entity, field string, value uint64) error {
	ids, err := types.ToIDs(e.Data[field])
	if err != nil {
		return err
	}
	kept := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id != value {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(ids) {
		return nil
	}
	_, err = update(ctx, e.ID, map[string]any{field: kept})
	return err
}

// DeleteMorphLinks removes the morph links matching Filter. Filter.MorphModel
// selects the store holding the links and must be set.
type DeleteMorphLinks struct {
	Filter storage.MorphFilter
}

func (DeleteMorphLinks) Kind() string { return "deleteMorphLinks" }

func (op DeleteMorphLinks) apply(ctx context.Context, r Resolver) error {
	q, err := r.Query(op.Filter.MorphModel)
	if err != nil {
		return err
	}
	_, err = q.Store().DeleteMorphLinks(ctx, op.Filter)
	return err
}

// CreateMorphLink inserts a morph link. A zero Order appends after the morph
// entity's existing links for the same field.
type CreateMorphLink struct {
	Link storage.MorphLink
}

func (CreateMorphLink) Kind() string { return "createMorphLink" }

func (op CreateMorphLink) apply(ctx context.Context, r Resolver) error {
	q, err := r.Query(op.Link.MorphModel)
	if err != nil {
		return err
	}
	link := op.Link
	if link.Order == 0 {
		existing, err := q.Store().MorphLinks(ctx, storage.MorphFilter{
			MorphModel: link.MorphModel,
			MorphID:    link.MorphID,
			MorphField: link.MorphField,
		})
		if err != nil {
			return err
		}
		for _, l := range existing {
			if l.Order >= link.Order {
				link.Order = l.Order
			}
		}
		link.Order++
	}
	return q.Store().CreateMorphLink(ctx, link)
}

// PruneMorphLinks deletes links matching Filter whose morph entity or target
// no longer exists.
type PruneMorphLinks struct {
	Filter storage.MorphFilter
}

func (PruneMorphLinks) Kind() string { return "pruneMorphLinks" }

func (op PruneMorphLinks) apply(ctx context.Context, r Resolver) error {
	q, err := r.Query(op.Filter.MorphModel)
	if err != nil {
		return err
	}
	links, err := q.Store().MorphLinks(ctx, op.Filter)
	if err != nil {
		return err
	}
	for _, l := range links {
		live, err := linkAlive(ctx, r, l)
		if err != nil {
			return err
		}
		if live {
			continue
		}
		if _, err := q.Store().DeleteMorphLinks(ctx, storage.MorphFilter{
			MorphModel:  l.MorphModel,
			MorphID:     l.MorphID,
			MorphField:  l.MorphField,
			RelatedType: l.RelatedType,
			RelatedID:   l.RelatedID,
			Field:       l.Field,
		}); err != nil {
			return err
		}
	}
	return nil
}

func linkAlive(ctx context.Context, r Resolver, l storage.MorphLink) (bool, error) {
	mq, err := r.Query(l.MorphModel)
	if err != nil {
		return false, err
	}
	ok, err := mq.Exists(ctx, l.MorphID)
	if err != nil || !ok {
		return false, err
	}
	rq, err := r.Query(l.RelatedType)
	if err != nil {
		if types.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return rq.Exists(ctx, l.RelatedID)
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
