// engine.go
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

// Package relations computes and applies the link and unlink operations that
// keep both sides of every association consistent.
package relations

import (
	"context"
	"fmt"

	"github.com/localnerve/contentdb/internal/metrics"
	"github.com/localnerve/contentdb/internal/registry"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
	"go.uber.org/zap"
)

// Resolver hands out per-model query executors and the schema they serve
type Resolver interface {
	Query(identifier string) (*registry.Query, error)
	Schemas() schema.Provider
}

// Plan is the outcome of resolving an update. Assignments are stored on the
// entity itself; Deferred operations touch other rows.
type Plan struct {
	Model       string
	ID          uint64
	Assignments map[string]any
	Deferred    []Operation
}

// Empty reports whether applying the plan would change nothing
func (p *Plan) Empty() bool {
	return len(p.Assignments) == 0 && len(p.Deferred) == 0
}

func (p *Plan) add(ops ...Operation) {
	p.Deferred = append(p.Deferred, ops...)
}

// Engine resolves relation updates for any model of the resolver
type Engine struct {
	resolver Resolver
	log      *zap.Logger
}

// NewEngine creates a relation engine
func NewEngine(resolver Resolver, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{resolver: resolver, log: log}
}

// ResolveUpdate computes the plan moving current to the relational state in
// proposed. Only relation attributes present in proposed are considered; an
// explicit nil clears the relation.
func (e *Engine) ResolveUpdate(ctx context.Context, uid string, current *storage.Entity, proposed map[string]any) (*Plan, error) {
	q, err := e.resolver.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()
	plan := &Plan{Model: model.UID, ID: current.ID, Assignments: map[string]any{}}

	var names []string
	for _, a := range model.AttributesOf(schema.KindRelation) {
		if _, ok := proposed[a.Name]; ok {
			names = append(names, a.Name)
		}
	}
	if len(names) == 0 {
		return plan, nil
	}

	loaded, err := q.Load(ctx, current, names...)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		a, _ := model.Attribute(name)
		if err := e.resolveAttribute(ctx, plan, model, a, loaded[name], proposed[name]); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (e *Engine) resolveAttribute(ctx context.Context, plan *Plan, model *schema.Model, a *schema.Attribute, current, value any) error {
	self := plan.ID

	switch a.Relation {
	case schema.OneWay, schema.ManyToOne:
		id, set, err := singleID(model, a, value)
		if err != nil {
			return err
		}
		if set {
			if err := e.verify(ctx, a, id); err != nil {
				return err
			}
			plan.Assignments[a.Name] = id
		} else {
			plan.Assignments[a.Name] = nil
		}
		return nil

	case schema.OneToOne:
		id, set, err := singleID(model, a, value)
		if err != nil {
			return err
		}
		cur, hasCur := current.(uint64)
		if set == hasCur && (!set || id == cur) {
			return nil
		}
		if !set {
			if a.Via != "" {
				plan.add(SetField{Model: a.Target, ID: cur, Field: a.Via, Value: nil})
			}
			plan.Assignments[a.Name] = nil
			return nil
		}
		if err := e.verify(ctx, a, id); err != nil {
			return err
		}
		if hasCur && a.Via != "" {
			plan.add(SetField{Model: a.Target, ID: cur, Field: a.Via, Value: nil})
		}
		plan.add(ClearWhere{Model: model.UID, Field: a.Name, Value: id, ExcludeID: self})
		if a.Via != "" {
			plan.add(SetField{Model: a.Target, ID: id, Field: a.Via, Value: self})
		}
		plan.Assignments[a.Name] = id
		return nil

	case schema.OneToMany:
		ids, err := idList(model, a, value)
		if err != nil {
			return err
		}
		if err := e.verify(ctx, a, ids...); err != nil {
			return err
		}
		curIDs, _ := current.([]uint64)
		for _, r := range difference(curIDs, ids) {
			plan.add(SetField{Model: a.Target, ID: r, Field: a.Via, Value: nil})
		}
		for _, p := range ids {
			plan.add(SetField{Model: a.Target, ID: p, Field: a.Via, Value: self})
		}
		return nil

	case schema.ManyWay:
		ids, err := idList(model, a, value)
		if err != nil {
			return err
		}
		if err := e.verify(ctx, a, ids...); err != nil {
			return err
		}
		plan.Assignments[a.Name] = ids
		return nil

	case schema.ManyToMany:
		ids, err := idList(model, a, value)
		if err != nil {
			return err
		}
		if err := e.verify(ctx, a, ids...); err != nil {
			return err
		}
		if a.Dominant {
			plan.Assignments[a.Name] = ids
			return nil
		}
		curIDs, _ := current.([]uint64)
		for _, r := range difference(curIDs, ids) {
			plan.add(PullID{Model: a.Target, ID: r, Field: a.Via, Value: self})
		}
		for _, p := range difference(ids, curIDs) {
			plan.add(PushID{Model: a.Target, ID: p, Field: a.Via, Value: self})
		}
		return nil

	case schema.OneToManyMorph, schema.ManyToManyMorph:
		return e.resolveTargetMorph(ctx, plan, model, a, current, value)

	case schema.ManyMorphToOne, schema.ManyMorphToMany:
		return e.resolveMorphSide(ctx, plan, model, a, current, value)

	case schema.OneMorphToOne, schema.OneMorphToMany:
		return types.NewUnsupportedError("relation %s on %s.%s is not supported", a.Relation, model.UID, a.Name)

	case schema.RelationNone:
	}
	return types.NewSchemaError("attribute %s.%s has no relation", model.UID, a.Name)
}

// resolveTargetMorph handles oneToManyMorph and manyToManyMorph attributes,
// whose links are owned by the morph model named in Target.
func (e *Engine) resolveTargetMorph(ctx context.Context, plan *Plan, model *schema.Model, a *schema.Attribute, current, value any) error {
	var ids []uint64
	if a.Relation == schema.OneToManyMorph {
		id, set, err := singleID(model, a, value)
		if err != nil {
			return err
		}
		if set {
			ids = []uint64{id}
		}
	} else {
		list, err := idList(model, a, value)
		if err != nil {
			return err
		}
		ids = list
	}
	if err := e.verify(ctx, a, ids...); err != nil {
		return err
	}

	var curIDs []uint64
	switch c := current.(type) {
	case uint64:
		curIDs = []uint64{c}
	case []uint64:
		curIDs = c
	}

	tq, err := e.resolver.Query(a.Target)
	if err != nil {
		return err
	}
	via, _ := tq.Model().Attribute(a.Via)

	plan.add(PruneMorphLinks{Filter: storage.MorphFilter{
		MorphModel:  a.Target,
		RelatedType: model.UID,
		RelatedID:   plan.ID,
		Field:       a.Name,
	}})
	for _, r := range difference(curIDs, ids) {
		plan.add(DeleteMorphLinks{Filter: storage.MorphFilter{
			MorphModel:  a.Target,
			MorphID:     r,
			MorphField:  a.Via,
			RelatedType: model.UID,
			RelatedID:   plan.ID,
			Field:       a.Name,
		}})
	}
	for _, p := range difference(ids, curIDs) {
		if via != nil && via.Relation == schema.ManyMorphToOne {
			plan.add(DeleteMorphLinks{Filter: storage.MorphFilter{
				MorphModel: a.Target,
				MorphID:    p,
				MorphField: a.Via,
			}})
		}
		plan.add(CreateMorphLink{Link: storage.MorphLink{
			MorphModel:  a.Target,
			MorphID:     p,
			MorphField:  a.Via,
			RelatedType: model.UID,
			RelatedID:   plan.ID,
			Field:       a.Name,
		}})
	}
	return nil
}

// resolveMorphSide handles manyMorphToOne and manyMorphToMany attributes,
// whose values are references to entities of any model.
func (e *Engine) resolveMorphSide(ctx context.Context, plan *Plan, model *schema.Model, a *schema.Attribute, current, value any) error {
	refs, err := e.morphRefs(ctx, model, a, value)
	if err != nil {
		return err
	}
	if a.Relation == schema.ManyMorphToOne && len(refs) > 1 {
		return types.NewValidationError("%s.%s accepts a single morph target, got %d", model.UID, a.Name, len(refs))
	}

	curRefs := map[string]MorphRef{}
	var curList []any
	switch c := current.(type) {
	case map[string]any:
		curList = []any{c}
	case []any:
		curList = c
	}
	for _, raw := range curList {
		ref, err := ParseMorphRef(raw)
		if err == nil {
			curRefs[ref.key()] = ref
		}
	}

	plan.add(PruneMorphLinks{Filter: storage.MorphFilter{
		MorphModel: model.UID,
		MorphID:    plan.ID,
		MorphField: a.Name,
	}})

	proposed := map[string]struct{}{}
	for _, ref := range refs {
		proposed[ref.key()] = struct{}{}
	}
	for key, ref := range curRefs {
		if _, keep := proposed[key]; keep {
			continue
		}
		plan.add(DeleteMorphLinks{Filter: storage.MorphFilter{
			MorphModel:  model.UID,
			MorphID:     plan.ID,
			MorphField:  a.Name,
			RelatedType: ref.Type,
			RelatedID:   ref.ID,
			Field:       ref.Field,
		}})
	}

	for _, ref := range refs {
		if _, exists := curRefs[ref.key()]; exists {
			continue
		}
		if ref.exclusive {
			plan.add(DeleteMorphLinks{Filter: storage.MorphFilter{
				MorphModel:  model.UID,
				MorphField:  a.Name,
				RelatedType: ref.Type,
				RelatedID:   ref.ID,
				Field:       ref.Field,
			}})
		}
		plan.add(CreateMorphLink{Link: storage.MorphLink{
			MorphModel:  model.UID,
			MorphID:     plan.ID,
			MorphField:  a.Name,
			RelatedType: ref.Type,
			RelatedID:   ref.ID,
			Field:       ref.Field,
		}})
	}
	return nil
}

// morphRefs parses and resolves the proposed references of a morph-side attribute
func (e *Engine) morphRefs(ctx context.Context, model *schema.Model, a *schema.Attribute, value any) ([]MorphRef, error) {
	var raw []any
	switch v := value.(type) {
	case nil:
	case []any:
		raw = v
	case []map[string]any:
		for _, m := range v {
			raw = append(raw, m)
		}
	default:
		raw = []any{v}
	}

	refs := make([]MorphRef, 0, len(raw))
	seen := map[string]struct{}{}
	for _, item := range raw {
		ref, err := ParseMorphRef(item)
		if err != nil {
			return nil, types.NewValidationError("%s.%s: %v", model.UID, a.Name, err)
		}
		tq, err := e.resolver.Query(ref.Type)
		if err != nil {
			return nil, types.NewValidationError("%s.%s: invalid morph target %q", model.UID, a.Name, ref.Type).Wrap(err)
		}
		target := tq.Model()
		ref.Type = target.UID

		field, ok := target.Attribute(ref.Field)
		if !ok || field.Kind != schema.KindRelation ||
			(field.Relation != schema.OneToManyMorph && field.Relation != schema.ManyToManyMorph) {
			return nil, types.NewValidationError("%s.%s: %s has no morph field %q", model.UID, a.Name, target.UID, ref.Field)
		}
		ref.exclusive = field.Relation == schema.OneToManyMorph

		ok, err = tq.Exists(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, types.NewValidationError("%s.%s: morph target %s %d not found", model.UID, a.Name, target.UID, ref.ID)
		}
		if _, dup := seen[ref.key()]; dup {
			continue
		}
		seen[ref.key()] = struct{}{}
		refs = append(refs, ref)
	}
	return refs, nil
}

// verify checks that every id names an existing target entity
func (e *Engine) verify(ctx context.Context, a *schema.Attribute, ids ...uint64) error {
	if len(ids) == 0 {
		return nil
	}
	tq, err := e.resolver.Query(a.Target)
	if err != nil {
		return types.NewValidationError("relation %s: invalid target %q", a.Name, a.Target).Wrap(err)
	}
	for _, id := range ids {
		ok, err := tq.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return types.NewValidationError("relation %s: %s %d not found", a.Name, a.Target, id)
		}
	}
	return nil
}

// Check validates the relation values present in proposed without reading
// current links or writing anything: ids must parse and name existing
// targets, and morph references must name a morph field of an existing entity.
func (e *Engine) Check(ctx context.Context, uid string, proposed map[string]any) error {
	q, err := e.resolver.Query(uid)
	if err != nil {
		return err
	}
	model := q.Model()
	for _, a := range model.AttributesOf(schema.KindRelation) {
		value, ok := proposed[a.Name]
		if !ok {
			continue
		}
		if err := e.check(ctx, model, a, value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) check(ctx context.Context, model *schema.Model, a *schema.Attribute, value any) error {
	switch a.Relation {
	case schema.OneWay, schema.ManyToOne, schema.OneToOne, schema.OneToManyMorph:
		id, set, err := singleID(model, a, value)
		if err != nil || !set {
			return err
		}
		return e.verify(ctx, a, id)

	case schema.OneToMany, schema.ManyWay, schema.ManyToMany, schema.ManyToManyMorph:
		ids, err := idList(model, a, value)
		if err != nil {
			return err
		}
		return e.verify(ctx, a, ids...)

	case schema.ManyMorphToOne, schema.ManyMorphToMany:
		refs, err := e.morphRefs(ctx, model, a, value)
		if err != nil {
			return err
		}
		if a.Relation == schema.ManyMorphToOne && len(refs) > 1 {
			return types.NewValidationError("%s.%s accepts a single morph target, got %d", model.UID, a.Name, len(refs))
		}
		return nil

	case schema.OneMorphToOne, schema.OneMorphToMany:
		return types.NewUnsupportedError("relation %s on %s.%s is not supported", a.Relation, model.UID, a.Name)

	case schema.RelationNone:
	}
	return types.NewSchemaError("attribute %s.%s has no relation", model.UID, a.Name)
}

// ResolveDelete computes the operations unlinking an entity about to be
// deleted: stored references to it are cleared on every model and morph
// links on either side are removed.
func (e *Engine) ResolveDelete(ctx context.Context, uid string, entity *storage.Entity) (*Plan, error) {
	q, err := e.resolver.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()
	plan := &Plan{Model: model.UID, ID: entity.ID}

	// morph links can only point at models declaring a morph target field
	morphTarget := false
	for _, a := range model.AttributesOf(schema.KindRelation) {
		if a.Relation == schema.OneToManyMorph || a.Relation == schema.ManyToManyMorph {
			morphTarget = true
			break
		}
	}

	for _, other := range e.resolver.Schemas().Models() {
		for _, a := range other.AttributesOf(schema.KindRelation) {
			switch {
			case a.Relation.IsMorph():
				if a.Relation == schema.ManyMorphToOne || a.Relation == schema.ManyMorphToMany {
					if other.UID == model.UID {
						plan.add(DeleteMorphLinks{Filter: storage.MorphFilter{
							MorphModel: model.UID, MorphID: entity.ID, MorphField: a.Name,
						}})
					}
					if morphTarget {
						plan.add(DeleteMorphLinks{Filter: storage.MorphFilter{
							MorphModel: other.UID, MorphField: a.Name, RelatedType: model.UID, RelatedID: entity.ID,
						}})
					}
				}
			case a.Target != model.UID || !a.IsStoredRelation():
				// holds no stored reference to this model
			case a.Relation == schema.ManyWay || a.Relation == schema.ManyToMany:
				plan.add(PullWhere{Model: other.UID, Field: a.Name, Value: entity.ID})
			default:
				plan.add(ClearWhere{Model: other.UID, Field: a.Name, Value: entity.ID, ExcludeID: entity.ID})
			}
		}
	}
	return plan, nil
}

// Apply runs the deferred operations in order, then stores the assignments
// on the plan's entity.
func (e *Engine) Apply(ctx context.Context, plan *Plan) (*storage.Entity, error) {
	for _, op := range plan.Deferred {
		if err := op.apply(ctx, e.resolver); err != nil {
			e.log.Debug("Relation operation failed",
				zap.String("model", plan.Model),
				zap.Uint64("id", plan.ID),
				zap.String("operation", op.Kind()),
				zap.Error(err))
			return nil, fmt.Errorf("%s on %s %d: %w", op.Kind(), plan.Model, plan.ID, err)
		}
		metrics.RecordRelationOperation(op.Kind())
	}

	q, err := e.resolver.Query(plan.Model)
	if err != nil {
		return nil, err
	}
	if len(plan.Assignments) == 0 {
		return q.FindOne(ctx, plan.ID)
	}
	return q.Update(ctx, plan.ID, plan.Assignments)
}

// Sync resolves and applies an update in one step
func (e *Engine) Sync(ctx context.Context, uid string, current *storage.Entity, proposed map[string]any) (*storage.Entity, error) {
	plan, err := e.ResolveUpdate(ctx, uid, current, proposed)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return current, nil
	}
	return e.Apply(ctx, plan)
}

// Unlink resolves and applies the delete plan of an entity
func (e *Engine) Unlink(ctx context.Context, uid string, entity *storage.Entity) error {
	plan, err := e.ResolveDelete(ctx, uid, entity)
	if err != nil {
		return err
	}
	for _, op := range plan.Deferred {
		if err := op.apply(ctx, e.resolver); err != nil {
			return fmt.Errorf("%s on %s %d: %w", op.Kind(), plan.Model, plan.ID, err)
		}
		metrics.RecordRelationOperation(op.Kind())
	}
	return nil
}
