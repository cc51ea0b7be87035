// model.go
//
// A persistence core for headless content types and their relations
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of contentdb.
// contentdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// contentdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with contentdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package schema describes content models: their attributes, component
// composition and relation cardinalities.
package schema

import (
	"fmt"
	"strings"

	"github.com/localnerve/contentdb/internal/types"
)

// Kind classifies an attribute
type Kind int

const (
	KindScalar Kind = iota
	KindComponent
	KindDynamicZone
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindComponent:
		return "component"
	case KindDynamicZone:
		return "dynamiczone"
	case KindRelation:
		return "relation"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Relation is the cardinality of a relation attribute
type Relation int

const (
	RelationNone Relation = iota
	OneWay
	OneToOne
	OneToMany
	ManyToOne
	ManyToMany
	ManyWay
	OneToManyMorph
	ManyToManyMorph
	ManyMorphToOne
	ManyMorphToMany
	// OneMorphToOne and OneMorphToMany parse but are rejected at write time.
	OneMorphToOne
	OneMorphToMany
)

var relationNames = map[Relation]string{
	OneWay:          "oneWay",
	OneToOne:        "oneToOne",
	OneToMany:       "oneToMany",
	ManyToOne:       "manyToOne",
	ManyToMany:      "manyToMany",
	ManyWay:         "manyWay",
	OneToManyMorph:  "oneToManyMorph",
	ManyToManyMorph: "manyToManyMorph",
	ManyMorphToOne:  "manyMorphToOne",
	ManyMorphToMany: "manyMorphToMany",
	OneMorphToOne:   "oneMorphToOne",
	OneMorphToMany:  "oneMorphToMany",
}

func (r Relation) String() string {
	if name, ok := relationNames[r]; ok {
		return name
	}
	return "none"
}

// ParseRelation maps a schema relation name to its Relation
func ParseRelation(s string) (Relation, error) {
	for r, name := range relationNames {
		if strings.EqualFold(name, s) {
			return r, nil
		}
	}
	return RelationNone, fmt.Errorf("unknown relation %q", s)
}

// IsMorph reports whether the relation is stored as morph-join rows
func (r Relation) IsMorph() bool {
	switch r {
	case OneToManyMorph, ManyToManyMorph, ManyMorphToOne, ManyMorphToMany, OneMorphToOne, OneMorphToMany:
		return true
	}
	return false
}

// Namespace groups models by origin
type Namespace string

const (
	NamespaceAdmin     Namespace = "admin"
	NamespaceAPI       Namespace = "api"
	NamespacePlugin    Namespace = "plugin"
	NamespaceComponent Namespace = "component"
)

// Attribute describes a single field of a model
type Attribute struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`

	// component and dynamiczone
	Component  string   `yaml:"component,omitempty" json:"component,omitempty"`
	Components []string `yaml:"components,omitempty" json:"components,omitempty"`
	Repeatable bool     `yaml:"repeatable,omitempty" json:"repeatable,omitempty"`
	Min        *int     `yaml:"min,omitempty" json:"min,omitempty"`
	Max        *int     `yaml:"max,omitempty" json:"max,omitempty"`

	// relation
	RelationName string `yaml:"relation,omitempty" json:"relation,omitempty"`
	Target       string `yaml:"target,omitempty" json:"target,omitempty"`
	Via          string `yaml:"via,omitempty" json:"via,omitempty"`
	Dominant     bool   `yaml:"dominant,omitempty" json:"dominant,omitempty"`
	Filter       string `yaml:"filter,omitempty" json:"filter,omitempty"`

	Private  bool `yaml:"private,omitempty" json:"private,omitempty"`
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	Kind     Kind     `yaml:"-" json:"-"`
	Relation Relation `yaml:"-" json:"-"`
}

// IsVirtual reports whether the attribute is derived from other rows and never
// stored on the owning entity.
func (a *Attribute) IsVirtual() bool {
	if a.Kind == KindComponent || a.Kind == KindDynamicZone {
		return true
	}
	if a.Kind != KindRelation {
		return false
	}
	switch a.Relation {
	case OneToMany:
		return true
	case ManyToMany:
		return !a.Dominant
	}
	return a.Relation.IsMorph()
}

// IsStoredRelation reports whether the relation keeps ids on the owning entity
func (a *Attribute) IsStoredRelation() bool {
	return a.Kind == KindRelation && !a.IsVirtual()
}

// AllowsComponent reports whether a dynamic zone accepts the component uid
func (a *Attribute) AllowsComponent(uid string) bool {
	for _, c := range a.Components {
		if c == uid {
			return true
		}
	}
	return false
}

func (a *Attribute) resolve() error {
	switch strings.ToLower(a.Type) {
	case "component":
		a.Kind = KindComponent
	case "dynamiczone":
		a.Kind = KindDynamicZone
	case "relation":
		a.Kind = KindRelation
		r, err := ParseRelation(a.RelationName)
		if err != nil {
			return err
		}
		a.Relation = r
	default:
		a.Kind = KindScalar
	}
	return nil
}

// Model describes an entity type
type Model struct {
	UID        string       `yaml:"uid" json:"uid"`
	Name       string       `yaml:"name" json:"name"`
	Plugin     string       `yaml:"plugin,omitempty" json:"plugin,omitempty"`
	Namespace  Namespace    `yaml:"namespace" json:"namespace"`
	Collection string       `yaml:"collection" json:"collection"`
	Connector  string       `yaml:"connector,omitempty" json:"connector,omitempty"`
	Attributes []*Attribute `yaml:"attributes" json:"attributes"`

	byName map[string]*Attribute
}

// Init resolves attribute kinds and indexes attributes by name. It must be
// called once before the model is used.
func (m *Model) Init() error {
	if m.Connector == "" {
		m.Connector = DefaultConnector
	}
	m.byName = make(map[string]*Attribute, len(m.Attributes))
	for _, a := range m.Attributes {
		if err := a.resolve(); err != nil {
			return types.NewSchemaError("model %s attribute %s: %v", m.UID, a.Name, err)
		}
		if _, dup := m.byName[a.Name]; dup {
			return types.NewSchemaError("model %s declares attribute %s twice", m.UID, a.Name)
		}
		m.byName[a.Name] = a
	}
	return nil
}

// Attribute returns the named attribute
func (m *Model) Attribute(name string) (*Attribute, bool) {
	a, ok := m.byName[name]
	return a, ok
}

// IsComponent reports whether the model is a component model
func (m *Model) IsComponent() bool {
	return m.Namespace == NamespaceComponent
}

// AttributesOf returns the attributes of the given kind in declaration order
func (m *Model) AttributesOf(kind Kind) []*Attribute {
	var out []*Attribute
	for _, a := range m.Attributes {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// DefaultConnector is the connection name models use when none is declared
const DefaultConnector = "default"
