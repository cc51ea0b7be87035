// storage.go
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

// Package storage defines the contract between the persistence core and the
// backing store adapters.
package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/types"
)

// ErrNotFound is returned when an entity id does not exist
var ErrNotFound error = &types.CustomError{
	Code:    http.StatusNotFound,
	Message: "entity not found",
	Type:    types.ErrorTypeNotFound,
}

// Entity is one stored row of a model
type Entity struct {
	ID        uint64
	Model     string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Map renders the entity as a flat document with id and timestamps
func (e *Entity) Map() map[string]any {
	out := make(map[string]any, len(e.Data)+3)
	for k, v := range e.Data {
		out[k] = v
	}
	out["id"] = e.ID
	if !e.CreatedAt.IsZero() {
		out["createdAt"] = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !e.UpdatedAt.IsZero() {
		out["updatedAt"] = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// Criteria selects entities of one model. All conditions must hold.
type Criteria struct {
	IDs []uint64
	// Where requires Data[field] to equal the value
	Where map[string]any
	// Contains requires Data[field] to be an id list holding the id
	Contains map[string]uint64
	Limit    int
}

// ComponentLink ties a component entity to the attribute slot that owns it
type ComponentLink struct {
	OwnerModel    string
	OwnerID       uint64
	Field         string
	ComponentType string
	ComponentID   uint64
	Order         int
}

// MorphLink ties an entity of a morph model to a polymorphic target
type MorphLink struct {
	ID          uint64
	MorphModel  string
	MorphID     uint64
	MorphField  string
	RelatedType string
	RelatedID   uint64
	Field       string
	Order       int
}

// MorphFilter selects morph links. Zero values match anything.
type MorphFilter struct {
	MorphModel  string
	MorphID     uint64
	MorphField  string
	RelatedType string
	RelatedID   uint64
	Field       string
}

// Match reports whether l satisfies the filter
func (f MorphFilter) Match(l MorphLink) bool {
	return (f.MorphModel == "" || f.MorphModel == l.MorphModel) &&
		(f.MorphID == 0 || f.MorphID == l.MorphID) &&
		(f.MorphField == "" || f.MorphField == l.MorphField) &&
		(f.RelatedType == "" || f.RelatedType == l.RelatedType) &&
		(f.RelatedID == 0 || f.RelatedID == l.RelatedID) &&
		(f.Field == "" || f.Field == l.Field)
}

// Capabilities describes dialect behavior the core has to respect
type Capabilities struct {
	Dialect string
	// SerialWrites is set when concurrent writes inside a transaction are
	// unsafe, so nested fan-out runs one task at a time.
	SerialWrites bool
}

// Store is a backing store adapter. Model arguments are model uids.
type Store interface {
	Create(ctx context.Context, model string, data map[string]any) (*Entity, error)
	// Update merges data into the stored entity
	Update(ctx context.Context, model string, id uint64, data map[string]any) (*Entity, error)
	Delete(ctx context.Context, model string, id uint64) error
	Find(ctx context.Context, model string, c Criteria) ([]*Entity, error)
	FindOne(ctx context.Context, model string, id uint64) (*Entity, error)
	Count(ctx context.Context, model string, c Criteria) (int64, error)

	// ComponentLinks lists an owner's links ordered by field then order. An empty field lists all.
	ComponentLinks(ctx context.Context, ownerModel string, ownerID uint64, field string) ([]ComponentLink, error)
	// SetComponentLinks replaces the owner's links for one field
	SetComponentLinks(ctx context.Context, ownerModel string, ownerID uint64, field string, links []ComponentLink) error

	MorphLinks(ctx context.Context, f MorphFilter) ([]MorphLink, error)
	CreateMorphLink(ctx context.Context, l MorphLink) error
	DeleteMorphLinks(ctx context.Context, f MorphFilter) (int64, error)

	// Transaction runs fn with a context bound to a single transaction.
	// Calls made with that context join it; nested calls reuse it.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Capabilities() Capabilities
	Close() error
}

// Migrator is implemented by stores that prepare physical storage for models
type Migrator interface {
	Migrate(ctx context.Context, models []*schema.Model) error
}

// Match reports whether e satisfies the criteria
func Match(e *Entity, c Criteria) bool {
	if len(c.IDs) > 0 {
		found := false
		for _, id := range c.IDs {
			if id == e.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for field, want := range c.Where {
		if !ValuesEqual(e.Data[field], want) {
			return false
		}
	}
	for field, id := range c.Contains {
		ids, err := types.ToIDs(e.Data[field])
		if err != nil {
			return false
		}
		found := false
		for _, v := range ids {
			if v == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ValuesEqual compares two data values by their JSON encoding so numbers
// decoded as float64 equal their integer counterparts.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ea, err := json.Marshal(a)
	if err != nil {
		return false
	}
	eb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ea) == string(eb)
}

// Clone deep copies data through a JSON round trip
func Clone(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
