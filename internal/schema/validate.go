package schema

import (
	"errors"
	"strings"

	"github.com/localnerve/contentdb/internal/types"
)

// ReservedModelNames may not be used as a model name
var ReservedModelNames = []string{
	"admin",
	"boolean",
	"date",
	"date-time",
	"dateTime",
	"time",
	"upload",
	"document",
	"then",
}

// ReservedAttributeNames may not be used as an attribute name
var ReservedAttributeNames = []string{
	"_id",
	"id",
	"length",
	"attributes",
	"relations",
	"changed",
	"then",
}

func isReserved(list []string, name string) bool {
	for _, r := range list {
		if strings.EqualFold(r, name) {
			return true
		}
	}
	return false
}

// Validate checks the whole set of models before any model map is built.
// Every problem found is reported, joined into a single error.
func Validate(models []*Model) error {
	var errs []error

	byUID := make(map[string]*Model, len(models))
	for _, m := range models {
		if m.UID == "" {
			errs = append(errs, types.NewSchemaError("model %q has no uid", m.Name))
			continue
		}
		if err := m.Init(); err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := byUID[m.UID]; dup {
			errs = append(errs, types.NewSchemaError("duplicate model uid %s (%s and %s)", m.UID, prev.Name, m.Name))
			continue
		}
		byUID[m.UID] = m
	}

	byCollection := make(map[string]*Model, len(models))
	for _, m := range models {
		if byUID[m.UID] != m {
			continue
		}
		if m.Collection == "" {
			errs = append(errs, types.NewSchemaError("model %s has no collection name", m.UID))
		} else if prev, dup := byCollection[strings.ToLower(m.Collection)]; dup {
			errs = append(errs, types.NewSchemaError(
				"duplicate collection name %s: used by model %s and model %s", m.Collection, prev.UID, m.UID))
		} else {
			byCollection[strings.ToLower(m.Collection)] = m
		}

		if isReserved(ReservedModelNames, m.Name) {
			errs = append(errs, types.NewSchemaError("model %s uses the reserved model name %q", m.UID, m.Name))
		}
		for _, a := range m.Attributes {
			if isReserved(ReservedAttributeNames, a.Name) {
				errs = append(errs, types.NewSchemaError("model %s uses the reserved attribute name %q", m.UID, a.Name))
			}
			errs = append(errs, lintAttribute(byUID, m, a)...)
		}
	}

	if len(errs) == 0 {
		if err := detectComponentCycles(byUID, models); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func lintAttribute(byUID map[string]*Model, m *Model, a *Attribute) []error {
	var errs []error
	switch a.Kind {
	case KindComponent:
		if c, ok := byUID[a.Component]; !ok || !c.IsComponent() {
			errs = append(errs, types.NewSchemaError("model %s attribute %s references unknown component %q", m.UID, a.Name, a.Component))
		}
	case KindDynamicZone:
		if len(a.Components) == 0 {
			errs = append(errs, types.NewSchemaError("model %s dynamic zone %s lists no components", m.UID, a.Name))
		}
		for _, uid := range a.Components {
			if c, ok := byUID[uid]; !ok || !c.IsComponent() {
				errs = append(errs, types.NewSchemaError("model %s dynamic zone %s references unknown component %q", m.UID, a.Name, uid))
			}
		}
	case KindRelation:
		if a.Relation == ManyMorphToOne || a.Relation == ManyMorphToMany {
			// targets are resolved per entry
			break
		}
		target, ok := byUID[a.Target]
		if !ok {
			errs = append(errs, types.NewSchemaError("model %s relation %s targets unknown model %q", m.UID, a.Name, a.Target))
			break
		}
		if a.Via == "" && a.IsVirtual() {
			errs = append(errs, types.NewSchemaError("model %s relation %s (%s) requires via", m.UID, a.Name, a.Relation))
		}
		if a.Via != "" {
			if _, ok := target.Attribute(a.Via); !ok {
				errs = append(errs, types.NewSchemaError("model %s relation %s: via %q is not an attribute of %s", m.UID, a.Name, a.Via, target.UID))
			}
		}
	}
	return errs
}

// detectComponentCycles fails when a component can reach itself through
// component or dynamic zone attributes.
func detectComponentCycles(byUID map[string]*Model, models []*Model) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(byUID))

	var visit func(uid string, path []string) error
	visit = func(uid string, path []string) error {
		switch state[uid] {
		case visiting:
			return types.NewSchemaError("component cycle: %s", strings.Join(append(path, uid), " -> "))
		case done:
			return nil
		}
		state[uid] = visiting
		m := byUID[uid]
		for _, a := range m.Attributes {
			var children []string
			switch a.Kind {
			case KindComponent:
				children = []string{a.Component}
			case KindDynamicZone:
				children = a.Components
			}
			for _, child := range children {
				if err := visit(child, append(path, uid)); err != nil {
					return err
				}
			}
		}
		state[uid] = done
		return nil
	}

	for _, m := range models {
		if err := visit(m.UID, nil); err != nil {
			return err
		}
	}
	return nil
}
