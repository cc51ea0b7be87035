package relations

import (
	"fmt"

	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/types"
)

// MorphRef points a morph-side attribute at one field of one entity
type MorphRef struct {
	Type  string
	ID    uint64
	Field string

	exclusive bool
}

func (r MorphRef) key() string {
	return fmt.Sprintf("%s/%d/%s", r.Type, r.ID, r.Field)
}

// ParseMorphRef reads a reference payload. The model may be given as
// "__type", "ref" or "kind", the id as "id" or "refId"; "field" is required.
func ParseMorphRef(v any) (MorphRef, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return MorphRef{}, fmt.Errorf("morph reference must be an object, got %T", v)
	}

	var ref MorphRef
	for _, key := range []string{"__type", "ref", "kind"} {
		if s, ok := m[key].(string); ok && s != "" {
			ref.Type = s
			break
		}
	}
	if ref.Type == "" {
		return MorphRef{}, fmt.Errorf("morph reference has no target type")
	}

	raw, ok := m["id"]
	if !ok {
		raw = m["refId"]
	}
	if raw == nil {
		return MorphRef{}, fmt.Errorf("morph reference to %s has no id", ref.Type)
	}
	id, err := types.ToID(raw)
	if err != nil {
		return MorphRef{}, err
	}
	ref.ID = id

	ref.Field, _ = m["field"].(string)
	if ref.Field == "" {
		return MorphRef{}, fmt.Errorf("morph reference to %s %d has no field", ref.Type, ref.ID)
	}
	return ref, nil
}

// singleID reads a to-one relation value. set is false for an explicit null.
func singleID(model *schema.Model, a *schema.Attribute, v any) (id uint64, set bool, err error) {
	switch v.(type) {
	case nil:
		return 0, false, nil
	case []any, []uint64, []map[string]any:
		return 0, false, types.NewValidationError("%s.%s expects a single id, got a list", model.UID, a.Name)
	}
	id, err = types.ToID(v)
	if err != nil {
		return 0, false, types.NewValidationError("%s.%s: %v", model.UID, a.Name, err)
	}
	return id, true, nil
}

// idList reads a to-many relation value, dropping duplicates
func idList(model *schema.Model, a *schema.Attribute, v any) ([]uint64, error) {
	ids, err := types.ToIDs(v)
	if err != nil {
		return nil, types.NewValidationError("%s.%s: %v", model.UID, a.Name, err)
	}
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// difference returns the ids of a missing from b, in a's order
func difference(a, b []uint64) []uint64 {
	in := make(map[uint64]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	var out []uint64
	for _, id := range a {
		if _, ok := in[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
