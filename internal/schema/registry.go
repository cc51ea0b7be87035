package schema

import (
	"strings"

	"github.com/localnerve/contentdb/internal/types"
)

// Provider supplies model descriptors by identifier
type Provider interface {
	Model(uid string) (*Model, error)
	Models() []*Model
	Resolve(identifier, plugin string) (*Model, error)
}

// Registry is an immutable, validated set of models
type Registry struct {
	models []*Model
	byUID  map[string]*Model
}

// NewRegistry validates models and indexes them
func NewRegistry(models []*Model) (*Registry, error) {
	if err := Validate(models); err != nil {
		return nil, err
	}
	r := &Registry{
		models: models,
		byUID:  make(map[string]*Model, len(models)),
	}
	for _, m := range models {
		r.byUID[m.UID] = m
	}
	return r, nil
}

func (r *Registry) Model(uid string) (*Model, error) {
	m, ok := r.byUID[uid]
	if !ok {
		return nil, types.NewNotFoundError("unknown model %q", uid)
	}
	return m, nil
}

func (r *Registry) Models() []*Model {
	return r.models
}

// Resolve finds a model by uid, or by case-insensitive name optionally scoped to a plugin
func (r *Registry) Resolve(identifier, plugin string) (*Model, error) {
	if m, ok := r.byUID[identifier]; ok {
		return m, nil
	}
	for _, m := range r.models {
		if !strings.EqualFold(m.Name, identifier) {
			continue
		}
		if !strings.EqualFold(m.Plugin, plugin) {
			continue
		}
		return m, nil
	}
	return nil, types.NewNotFoundError("unknown model %q", identifier)
}
