package events

import (
	"strings"

	"github.com/localnerve/contentdb/internal/schema"
)

// Sanitizer strips private and password attributes from entries before they
// leave the core. It walks nested components and dynamic zones by schema.
type Sanitizer struct {
	schemas schema.Provider
	private map[string]struct{}
}

// NewSanitizer creates a sanitizer. globalPrivate names attributes stripped
// from every model.
func NewSanitizer(schemas schema.Provider, globalPrivate []string) *Sanitizer {
	private := make(map[string]struct{}, len(globalPrivate))
	for _, name := range globalPrivate {
		if name = strings.TrimSpace(name); name != "" {
			private[name] = struct{}{}
		}
	}
	return &Sanitizer{schemas: schemas, private: private}
}

// Sanitize returns a sanitized copy of entry. The input is not modified.
func (s *Sanitizer) Sanitize(model *schema.Model, entry map[string]any) map[string]any {
	if entry == nil {
		return nil
	}
	out := make(map[string]any, len(entry))
	for key, value := range entry {
		if _, ok := s.private[key]; ok {
			continue
		}
		a, ok := model.Attribute(key)
		if !ok {
			out[key] = value
			continue
		}
		if a.Private || strings.EqualFold(a.Type, "password") {
			continue
		}
		switch a.Kind {
		case schema.KindComponent:
			out[key] = s.visit(value, func(map[string]any) *schema.Model {
				return s.model(a.Component)
			})
		case schema.KindDynamicZone:
			out[key] = s.visit(value, func(m map[string]any) *schema.Model {
				uid, _ := m["__component"].(string)
				return s.model(uid)
			})
		default:
			out[key] = value
		}
	}
	return out
}

// SanitizeList sanitizes entries element-wise
func (s *Sanitizer) SanitizeList(model *schema.Model, entries []map[string]any) []map[string]any {
	out := make([]map[string]any, len(entries))
	for i, e := range entries {
		out[i] = s.Sanitize(model, e)
	}
	return out
}

func (s *Sanitizer) visit(value any, modelOf func(map[string]any) *schema.Model) any {
	switch v := value.(type) {
	case map[string]any:
		if m := modelOf(v); m != nil {
			return s.Sanitize(m, v)
		}
		out := make(map[string]any, len(v))
		for key, item := range v {
			if _, ok := s.private[key]; !ok {
				out[key] = item
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.visit(item, modelOf)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.visit(item, modelOf)
		}
		return out
	}
	return value
}

func (s *Sanitizer) model(uid string) *schema.Model {
	if s.schemas == nil || uid == "" {
		return nil
	}
	m, err := s.schemas.Model(uid)
	if err != nil {
		return nil
	}
	return m
}
