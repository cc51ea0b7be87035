package registry

import (
	"context"
	"errors"

	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
	"go.uber.org/zap"
)

// Query is the per-model query executor. One instance exists per model for
// the lifetime of the registry.
type Query struct {
	model    *schema.Model
	store    storage.Store
	registry *Registry
	maxDepth int
}

// Model returns the model descriptor
func (q *Query) Model() *schema.Model {
	return q.model
}

// Store returns the adapter backing the model
func (q *Query) Store() storage.Store {
	return q.store
}

// Registry returns the registry that built the query
func (q *Query) Registry() *Registry {
	return q.registry
}

func (q *Query) Create(ctx context.Context, data map[string]any) (*storage.Entity, error) {
	return q.store.Create(ctx, q.model.UID, data)
}

func (q *Query) Update(ctx context.Context, id uint64, data map[string]any) (*storage.Entity, error) {
	return q.store.Update(ctx, q.model.UID, id, data)
}

func (q *Query) Delete(ctx context.Context, id uint64) error {
	return q.store.Delete(ctx, q.model.UID, id)
}

func (q *Query) Find(ctx context.Context, c storage.Criteria) ([]*storage.Entity, error) {
	return q.store.Find(ctx, q.model.UID, c)
}

func (q *Query) FindOne(ctx context.Context, id uint64) (*storage.Entity, error) {
	return q.store.FindOne(ctx, q.model.UID, id)
}

func (q *Query) Count(ctx context.Context, c storage.Criteria) (int64, error) {
	return q.store.Count(ctx, q.model.UID, c)
}

// Exists reports whether every id names an entity of the model
func (q *Query) Exists(ctx context.Context, ids ...uint64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	unique := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	n, err := q.Count(ctx, storage.Criteria{IDs: ids})
	if err != nil {
		return false, err
	}
	return n == int64(len(unique)), nil
}

// Load lazy-loads the named attributes of an already fetched entity.
// Without names every component, dynamic zone and relation attribute is loaded.
//
// Components load as documents carrying their id, dynamic zone entries also
// carry __component. Relations load as ids, and morph-side relations as
// references of the form {"__type", "id", "field"}.
func (q *Query) Load(ctx context.Context, e *storage.Entity, names ...string) (map[string]any, error) {
	return q.load(ctx, e, names, 0)
}

// Populate renders the entity with every non-scalar attribute loaded
func (q *Query) Populate(ctx context.Context, e *storage.Entity) (map[string]any, error) {
	return q.populate(ctx, e, 0)
}

func (q *Query) populate(ctx context.Context, e *storage.Entity, depth int) (map[string]any, error) {
	loaded, err := q.load(ctx, e, nil, depth)
	if err != nil {
		return nil, err
	}
	doc := e.Map()
	if q.model.IsComponent() {
		delete(doc, "createdAt")
		delete(doc, "updatedAt")
	}
	for k, v := range loaded {
		doc[k] = v
	}
	return doc, nil
}

func (q *Query) load(ctx context.Context, e *storage.Entity, names []string, depth int) (map[string]any, error) {
	if depth > q.maxDepth {
		return nil, types.NewSchemaError("component nesting under %s exceeds depth %d", q.model.UID, q.maxDepth)
	}

	var attrs []*schema.Attribute
	if len(names) == 0 {
		for _, a := range q.model.Attributes {
			if a.Kind != schema.KindScalar {
				attrs = append(attrs, a)
			}
		}
	} else {
		for _, name := range names {
			a, ok := q.model.Attribute(name)
			if !ok {
				return nil, types.NewValidationError("unknown attribute %s on %s", name, q.model.UID)
			}
			attrs = append(attrs, a)
		}
	}

	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		var (
			v   any
			err error
		)
		switch a.Kind {
		case schema.KindScalar:
			v = e.Data[a.Name]
		case schema.KindComponent, schema.KindDynamicZone:
			v, err = q.loadComponents(ctx, e, a, depth)
		case schema.KindRelation:
			v, err = q.loadRelation(ctx, e, a)
		}
		if err != nil {
			return nil, err
		}
		out[a.Name] = v
	}
	return out, nil
}

func (q *Query) loadComponents(ctx context.Context, e *storage.Entity, a *schema.Attribute, depth int) (any, error) {
	links, err := q.store.ComponentLinks(ctx, q.model.UID, e.ID, a.Name)
	if err != nil {
		return nil, err
	}

	entries := make([]any, 0, len(links))
	for _, link := range links {
		cq, err := q.registry.Query(link.ComponentType)
		if err != nil {
			return nil, err
		}
		ce, err := cq.FindOne(ctx, link.ComponentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				q.registry.log.Warn("Dangling component link",
					zap.String("model", q.model.UID),
					zap.Uint64("id", e.ID),
					zap.String("field", a.Name),
					zap.String("component", link.ComponentType),
					zap.Uint64("componentId", link.ComponentID))
				continue
			}
			return nil, err
		}
		doc, err := cq.populate(ctx, ce, depth+1)
		if err != nil {
			return nil, err
		}
		if a.Kind == schema.KindDynamicZone {
			doc["__component"] = link.ComponentType
		}
		entries = append(entries, doc)
	}

	if a.Kind == schema.KindComponent && !a.Repeatable {
		if len(entries) == 0 {
			return nil, nil
		}
		return entries[0], nil
	}
	return entries, nil
}

func (q *Query) loadRelation(ctx context.Context, e *storage.Entity, a *schema.Attribute) (any, error) {
	switch a.Relation {
	case schema.OneWay, schema.ManyToOne, schema.OneToOne:
		return optionalID(e.Data[a.Name])

	case schema.ManyWay:
		return types.ToIDs(e.Data[a.Name])

	case schema.ManyToMany:
		if a.Dominant {
			return types.ToIDs(e.Data[a.Name])
		}
		return q.inverseIDs(ctx, a, storage.Criteria{Contains: map[string]uint64{a.Via: e.ID}})

	case schema.OneToMany:
		return q.inverseIDs(ctx, a, storage.Criteria{Where: map[string]any{a.Via: e.ID}})

	case schema.OneToManyMorph, schema.ManyToManyMorph:
		tq, err := q.registry.Query(a.Target)
		if err != nil {
			return nil, err
		}
		links, err := tq.store.MorphLinks(ctx, storage.MorphFilter{
			MorphModel:  a.Target,
			RelatedType: q.model.UID,
			RelatedID:   e.ID,
			Field:       a.Name,
		})
		if err != nil {
			return nil, err
		}
		if a.Relation == schema.OneToManyMorph {
			if len(links) == 0 {
				return nil, nil
			}
			return links[0].MorphID, nil
		}
		ids := make([]uint64, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.MorphID)
		}
		return ids, nil

	case schema.ManyMorphToOne, schema.ManyMorphToMany:
		links, err := q.store.MorphLinks(ctx, storage.MorphFilter{
			MorphModel: q.model.UID,
			MorphID:    e.ID,
			MorphField: a.Name,
		})
		if err != nil {
			return nil, err
		}
		if a.Relation == schema.ManyMorphToOne {
			if len(links) == 0 {
				return nil, nil
			}
			return MorphRef(links[0]), nil
		}
		refs := make([]any, 0, len(links))
		for _, l := range links {
			refs = append(refs, MorphRef(l))
		}
		return refs, nil

	case schema.OneMorphToOne, schema.OneMorphToMany:
		return nil, types.NewUnsupportedError("relation %s on %s.%s is not supported", a.Relation, q.model.UID, a.Name)

	case schema.RelationNone:
	}
	return nil, types.NewSchemaError("attribute %s.%s has no relation", q.model.UID, a.Name)
}

func (q *Query) inverseIDs(ctx context.Context, a *schema.Attribute, c storage.Criteria) ([]uint64, error) {
	tq, err := q.registry.Query(a.Target)
	if err != nil {
		return nil, err
	}
	found, err := tq.Find(ctx, c)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(found))
	for _, t := range found {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// MorphRef renders a morph link as the reference a morph-side attribute loads as
func MorphRef(l storage.MorphLink) map[string]any {
	return map[string]any{
		"__type": l.RelatedType,
		"id":     l.RelatedID,
		"field":  l.Field,
	}
}

func optionalID(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	id, err := types.ToID(v)
	if err != nil {
		return nil, err
	}
	return id, nil
}
