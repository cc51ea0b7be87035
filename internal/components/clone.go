package components

import (
	"context"

	"github.com/localnerve/contentdb/internal/metrics"
	"github.com/localnerve/contentdb/internal/relations"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
)

// Clone creates a new entity from source. Attributes absent from override are
// taken from source: scalars, stored relations and deep copies of every
// component. Exclusive relations (oneToOne, oneToMany and single-reference
// morph links) are not copied. Override
// component entries carrying an id must belong to source and are merged over
// the source component; entries without an id are created as given.
func (m *Manager) Clone(ctx context.Context, uid string, source *storage.Entity, override map[string]any) (*storage.Entity, error) {
	q, err := m.resolver.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()

	data := map[string]any{}
	var componentAttrs []string
	for _, a := range model.Attributes {
		switch a.Kind {
		case schema.KindScalar:
			if v, ok := source.Data[a.Name]; ok {
				data[a.Name] = v
			}
		case schema.KindRelation:
			if a.IsStoredRelation() && a.Relation != schema.OneToOne {
				if v, ok := source.Data[a.Name]; ok {
					data[a.Name] = v
				}
			}
		case schema.KindComponent, schema.KindDynamicZone:
			componentAttrs = append(componentAttrs, a.Name)
		}
	}

	if len(componentAttrs) > 0 {
		loaded, err := q.Load(ctx, source, componentAttrs...)
		if err != nil {
			return nil, err
		}
		for _, name := range componentAttrs {
			a, _ := model.Attribute(name)
			value := m.stripExclusive(a, loaded[name])
			if ov, ok := override[name]; ok {
				if value, err = mergeOverride(model, a, value, ov); err != nil {
					return nil, err
				}
			}
			data[name] = value
		}
	}

	for k, v := range override {
		if a, ok := model.Attribute(k); ok && (a.Kind == schema.KindComponent || a.Kind == schema.KindDynamicZone) {
			continue
		}
		data[k] = v
	}

	if err := m.checkCreate(ctx, uid, data, 0); err != nil {
		return nil, err
	}
	e, err := m.create(ctx, uid, data, 0)
	if err != nil {
		return nil, err
	}
	metrics.RecordComponentOperation("clone", uid)
	return e, nil
}

// mergeOverride overlays override entries on the loaded source entries
func mergeOverride(model *schema.Model, a *schema.Attribute, loaded, override any) (any, error) {
	list, err := entries(model, a, override)
	if err != nil {
		return nil, err
	}
	if override == nil {
		return nil, nil
	}

	sources := map[string]map[string]any{}
	for _, doc := range docs(loaded) {
		id, err := types.ToID(doc["id"])
		if err != nil {
			continue
		}
		uid := a.Component
		if a.Kind == schema.KindDynamicZone {
			uid, _ = doc["__component"].(string)
		}
		sources[linkKey(uid, id)] = doc
	}

	out := make([]any, 0, len(list))
	for _, e := range list {
		if !e.hasID {
			out = append(out, e.data)
			continue
		}
		src, ok := sources[e.key()]
		if !ok {
			return nil, types.NewValidationError("%s.%s: component %s %d is not related to the source entity", model.UID, a.Name, e.uid, e.id)
		}
		merged := make(map[string]any, len(src)+len(e.data))
		for k, v := range src {
			merged[k] = v
		}
		for k, v := range e.data {
			merged[k] = v
		}
		out = append(out, merged)
	}

	if a.Kind == schema.KindComponent && !a.Repeatable {
		if len(out) == 0 {
			return nil, nil
		}
		return out[0], nil
	}
	return out, nil
}

// stripExclusive removes relation values a copy cannot share with its source
// from loaded component documents, recursively: oneToOne, oneToMany and morph
// links whose target holds a single reference
func (m *Manager) stripExclusive(a *schema.Attribute, loaded any) any {
	switch v := loaded.(type) {
	case map[string]any:
		uid := a.Component
		if a.Kind == schema.KindDynamicZone {
			uid, _ = v["__component"].(string)
		}
		q, err := m.resolver.Query(uid)
		if err != nil {
			return v
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			attr, ok := q.Model().Attribute(k)
			if !ok {
				out[k] = item
				continue
			}
			switch {
			case attr.Kind == schema.KindRelation && (attr.Relation == schema.OneToOne || attr.Relation == schema.OneToMany):
				// dropped
			case attr.Kind == schema.KindRelation && (attr.Relation == schema.OneToManyMorph || attr.Relation == schema.ManyToManyMorph):
				if !m.claimsMorphTarget(attr) {
					out[k] = item
				}
			case attr.Kind == schema.KindRelation && (attr.Relation == schema.ManyMorphToOne || attr.Relation == schema.ManyMorphToMany):
				if refs := m.sharedMorphRefs(item); refs != nil {
					out[k] = refs
				}
			case attr.Kind == schema.KindComponent || attr.Kind == schema.KindDynamicZone:
				out[k] = m.stripExclusive(attr, item)
			default:
				out[k] = item
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = m.stripExclusive(a, item)
		}
		return out
	}
	return loaded
}

// claimsMorphTarget reports whether linking a morph-target attribute takes the
// target over, which is the case when the target's morph field holds one reference
func (m *Manager) claimsMorphTarget(a *schema.Attribute) bool {
	q, err := m.resolver.Query(a.Target)
	if err != nil {
		return false
	}
	via, ok := q.Model().Attribute(a.Via)
	return ok && via.Relation == schema.ManyMorphToOne
}

// sharedMorphRefs drops the references of a loaded morph-side value whose
// target field is oneToManyMorph. A single reference yields nil when dropped.
func (m *Manager) sharedMorphRefs(loaded any) any {
	keep := func(raw any) bool {
		ref, err := relations.ParseMorphRef(raw)
		if err != nil {
			return false
		}
		q, err := m.resolver.Query(ref.Type)
		if err != nil {
			return false
		}
		field, ok := q.Model().Attribute(ref.Field)
		return ok && field.Relation != schema.OneToManyMorph
	}

	switch v := loaded.(type) {
	case []any:
		out := make([]any, 0, len(v))
		for _, raw := range v {
			if keep(raw) {
				out = append(out, raw)
			}
		}
		return out
	case nil:
		return nil
	default:
		if keep(v) {
			return v
		}
		return nil
	}
}

func docs(loaded any) []map[string]any {
	switch v := loaded.(type) {
	case map[string]any:
		return []map[string]any{v}
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if doc, ok := item.(map[string]any); ok {
				out = append(out, doc)
			}
		}
		return out
	}
	return nil
}
