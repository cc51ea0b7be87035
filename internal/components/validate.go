package components

import (
	"context"
	"fmt"

	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/types"
)

// entry is one component value of a component or dynamic zone attribute
type entry struct {
	uid   string
	id    uint64
	hasID bool
	data  map[string]any
}

func (e entry) key() string {
	return linkKey(e.uid, e.id)
}

func linkKey(uid string, id uint64) string {
	return fmt.Sprintf("%s#%d", uid, id)
}

// entries checks the shape of a component or dynamic zone value and returns
// its entries in order. A nil value yields no entries.
func entries(model *schema.Model, a *schema.Attribute, value any) ([]entry, error) {
	if value == nil {
		return nil, nil
	}

	var items []any
	list := a.Kind == schema.KindDynamicZone || a.Repeatable
	switch v := value.(type) {
	case []any:
		if !list {
			return nil, types.NewValidationError("%s.%s expects a single component, got a list", model.UID, a.Name)
		}
		items = v
	case []map[string]any:
		if !list {
			return nil, types.NewValidationError("%s.%s expects a single component, got a list", model.UID, a.Name)
		}
		for _, m := range v {
			items = append(items, m)
		}
	case map[string]any:
		if list {
			return nil, types.NewValidationError("%s.%s expects a list of components", model.UID, a.Name)
		}
		items = []any{v}
	default:
		return nil, types.NewValidationError("%s.%s: unexpected component value %T", model.UID, a.Name, value)
	}

	if list {
		if a.Min != nil && len(items) < *a.Min {
			return nil, types.NewValidationError("%s.%s needs at least %d entries, got %d", model.UID, a.Name, *a.Min, len(items))
		}
		if a.Max != nil && len(items) > *a.Max {
			return nil, types.NewValidationError("%s.%s accepts at most %d entries, got %d", model.UID, a.Name, *a.Max, len(items))
		}
	}

	out := make([]entry, 0, len(items))
	for i, item := range items {
		data, ok := item.(map[string]any)
		if !ok {
			return nil, types.NewValidationError("%s.%s[%d] must be an object", model.UID, a.Name, i)
		}
		e := entry{uid: a.Component, data: data}
		if a.Kind == schema.KindDynamicZone {
			uid, _ := data["__component"].(string)
			if uid == "" {
				return nil, types.NewValidationError("%s.%s[%d] has no __component", model.UID, a.Name, i)
			}
			if !a.AllowsComponent(uid) {
				return nil, types.NewValidationError("%s.%s[%d]: component %s is not allowed", model.UID, a.Name, i, uid)
			}
			e.uid = uid
		}
		if raw, ok := data["id"]; ok && raw != nil {
			id, err := types.ToID(raw)
			if err != nil {
				return nil, types.NewValidationError("%s.%s[%d]: %v", model.UID, a.Name, i, err)
			}
			e.id, e.hasID = id, true
		}
		out = append(out, e)
	}
	return out, nil
}

// checkCreate validates a create payload and every nested component payload,
// relation targets included, before anything is written.
func (m *Manager) checkCreate(ctx context.Context, uid string, data map[string]any, depth int) error {
	model, err := m.model(uid, depth)
	if err != nil {
		return err
	}
	if err := m.engine.Check(ctx, model.UID, relationValues(model, data)); err != nil {
		return err
	}
	for _, a := range model.Attributes {
		value, present := data[a.Name]
		if a.Required && (!present || value == nil) {
			return types.NewValidationError("%s.%s is required", model.UID, a.Name)
		}
		if !present || (a.Kind != schema.KindComponent && a.Kind != schema.KindDynamicZone) {
			continue
		}
		list, err := entries(model, a, value)
		if err != nil {
			return err
		}
		for _, e := range list {
			if err := m.checkCreate(ctx, e.uid, e.data, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkUpdate validates an update payload against the entity's current
// component links. Kept entries must already belong to the owner, and
// relation values at every level must name existing targets.
func (m *Manager) checkUpdate(ctx context.Context, uid string, id uint64, data map[string]any, depth int) error {
	model, err := m.model(uid, depth)
	if err != nil {
		return err
	}
	if err := m.engine.Check(ctx, model.UID, relationValues(model, data)); err != nil {
		return err
	}
	q, err := m.resolver.Query(uid)
	if err != nil {
		return err
	}
	for _, a := range model.Attributes {
		value, present := data[a.Name]
		if !present {
			continue
		}
		if a.Required && value == nil {
			return types.NewValidationError("%s.%s is required", model.UID, a.Name)
		}
		if a.Kind != schema.KindComponent && a.Kind != schema.KindDynamicZone {
			continue
		}
		list, err := entries(model, a, value)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			continue
		}

		links, err := q.Store().ComponentLinks(ctx, model.UID, id, a.Name)
		if err != nil {
			return err
		}
		previous := make(map[string]struct{}, len(links))
		for _, l := range links {
			previous[linkKey(l.ComponentType, l.ComponentID)] = struct{}{}
		}

		seen := make(map[string]struct{}, len(list))
		for _, e := range list {
			if !e.hasID {
				if err := m.checkCreate(ctx, e.uid, e.data, depth+1); err != nil {
					return err
				}
				continue
			}
			if _, ok := previous[e.key()]; !ok {
				return types.NewValidationError("%s.%s: component %s %d is not related to the entity", model.UID, a.Name, e.uid, e.id)
			}
			if _, dup := seen[e.key()]; dup {
				return types.NewValidationError("%s.%s: component %s %d is listed twice", model.UID, a.Name, e.uid, e.id)
			}
			seen[e.key()] = struct{}{}
			if err := m.checkUpdate(ctx, e.uid, e.id, e.data, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
