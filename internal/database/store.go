// store.go
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

package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/localnerve/contentdb/internal/metrics"
	"github.com/localnerve/contentdb/internal/models"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
	"github.com/localnerve/contentdb/internal/types"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// GormStore keeps each model in its own collection table
type GormStore struct {
	db      *gorm.DB
	schemas schema.Provider
	caps    storage.Capabilities
	log     *zap.Logger
}

// StoreOption configures a GormStore
type StoreOption func(*GormStore)

// WithSerialWrites overrides the dialect default when v is not nil
func WithSerialWrites(v *bool) StoreOption {
	return func(s *GormStore) {
		if v != nil {
			s.caps.SerialWrites = *v
		}
	}
}

// WithStoreLogger sets the store logger
func WithStoreLogger(log *zap.Logger) StoreOption {
	return func(s *GormStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewGormStore wraps an open connection
func NewGormStore(db *gorm.DB, schemas schema.Provider, opts ...StoreOption) *GormStore {
	dialect := db.Dialector.Name()
	s := &GormStore{
		db:      db,
		schemas: schemas,
		caps: storage.Capabilities{
			Dialect:      dialect,
			SerialWrites: SerialWritesDefault(dialect),
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying connection
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// SerialWritesDefault reports whether the dialect deadlocks or errors under
// concurrent writes on one transaction.
func SerialWritesDefault(dialect string) bool {
	switch dialect {
	case "postgres":
		return false
	}
	return true
}

type txKey struct{}

// txHandle serializes statements issued on one transaction from concurrent goroutines
type txHandle struct {
	mu sync.Mutex
	db *gorm.DB
}

// session returns the db to use for ctx and a release func the caller must call
func (s *GormStore) session(ctx context.Context, op string) (*gorm.DB, func()) {
	done := metrics.TrackStoreOperation(op)
	if h, ok := ctx.Value(txKey{}).(*txHandle); ok {
		h.mu.Lock()
		return h.db.WithContext(ctx), func() {
			h.mu.Unlock()
			done()
		}
	}
	return s.db.WithContext(ctx), done
}

func (s *GormStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txHandle); ok {
		return fn(ctx)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, &txHandle{db: tx}))
	})
	if err != nil {
		s.log.Debug("Transaction rolled back", zap.String("dialect", s.caps.Dialect), zap.Error(err))
	}
	return err
}

func (s *GormStore) Capabilities() storage.Capabilities {
	return s.caps
}

func (s *GormStore) Close() error {
	return Close(s.db)
}

// Migrate creates the collection and link tables
func (s *GormStore) Migrate(ctx context.Context, defs []*schema.Model) error {
	db, release := s.session(ctx, "migrate")
	defer release()
	return AutoMigrate(db, defs)
}

func (s *GormStore) table(model string) (string, error) {
	m, err := s.schemas.Model(model)
	if err != nil {
		return "", err
	}
	return m.Collection, nil
}

func comment(clause, op string) hints.Hints {
	return hints.Comment(clause, "contentdb:"+op)
}

func (s *GormStore) Create(ctx context.Context, model string, data map[string]any) (*storage.Entity, error) {
	table, err := s.table(model)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]any, len(data))
	for k, v := range data {
		if k != "id" {
			doc[k] = v
		}
	}
	encoded, err := models.NewJSON(doc)
	if err != nil {
		return nil, err
	}

	db, release := s.session(ctx, "create")
	defer release()

	row := models.Entry{Data: encoded}
	if err := db.Table(table).Clauses(comment("insert", "create")).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create %s: %w", model, err)
	}
	return toEntity(model, row)
}

func (s *GormStore) Update(ctx context.Context, model string, id uint64, data map[string]any) (*storage.Entity, error) {
	table, err := s.table(model)
	if err != nil {
		return nil, err
	}

	db, release := s.session(ctx, "update")
	defer release()

	var row models.Entry
	if err := db.Table(table).Clauses(comment("select", "update")).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	current, err := row.Data.Map()
	if err != nil {
		return nil, err
	}
	for k, v := range data {
		if k != "id" {
			current[k] = v
		}
	}
	encoded, err := models.NewJSON(current)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	err = db.Table(table).Clauses(comment("update", "update")).
		Where("id = ?", id).
		Updates(map[string]any{"data": encoded, "updated_at": now}).Error
	if err != nil {
		return nil, fmt.Errorf("update %s %d: %w", model, id, err)
	}
	row.Data = encoded
	row.UpdatedAt = now
	return toEntity(model, row)
}

func (s *GormStore) Delete(ctx context.Context, model string, id uint64) error {
	table, err := s.table(model)
	if err != nil {
		return err
	}

	db, release := s.session(ctx, "delete")
	defer release()

	result := db.Table(table).Clauses(comment("delete", "delete")).Where("id = ?", id).Delete(&models.Entry{})
	if result.Error != nil {
		return fmt.Errorf("delete %s %d: %w", model, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *GormStore) Find(ctx context.Context, model string, c storage.Criteria) ([]*storage.Entity, error) {
	table, err := s.table(model)
	if err != nil {
		return nil, err
	}

	db, release := s.session(ctx, "find")
	defer release()

	q := db.Table(table).Clauses(comment("select", "find"))
	if len(c.IDs) > 0 {
		q = q.Where("id IN ?", c.IDs)
	}
	if s.queriesJSON() {
		for field, v := range c.Where {
			if pv, ok := pushdownValue(v); ok {
				q = q.Where(datatypes.JSONQuery("data").Equals(pv, field))
			}
		}
	}

	var rows []models.Entry
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", model, err)
	}

	var out []*storage.Entity
	for _, row := range rows {
		e, err := toEntity(model, row)
		if err != nil {
			return nil, err
		}
		if !storage.Match(e, c) {
			continue
		}
		out = append(out, e)
		if c.Limit > 0 && len(out) == c.Limit {
			break
		}
	}
	return out, nil
}

func (s *GormStore) FindOne(ctx context.Context, model string, id uint64) (*storage.Entity, error) {
	table, err := s.table(model)
	if err != nil {
		return nil, err
	}

	db, release := s.session(ctx, "findOne")
	defer release()

	var row models.Entry
	if err := db.Table(table).Clauses(comment("select", "findOne")).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return toEntity(model, row)
}

func (s *GormStore) Count(ctx context.Context, model string, c storage.Criteria) (int64, error) {
	c.Limit = 0
	found, err := s.Find(ctx, model, c)
	if err != nil {
		return 0, err
	}
	return int64(len(found)), nil
}

func (s *GormStore) ComponentLinks(ctx context.Context, ownerModel string, ownerID uint64, field string) ([]storage.ComponentLink, error) {
	db, release := s.session(ctx, "componentLinks")
	defer release()

	q := db.Clauses(comment("select", "componentLinks")).
		Where("owner_model = ? AND owner_id = ?", ownerModel, ownerID)
	if field != "" {
		q = q.Where("field = ?", field)
	}
	var rows []models.ComponentLink
	if err := q.Order("field").Order("sort_order").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("component links %s %d: %w", ownerModel, ownerID, err)
	}

	out := make([]storage.ComponentLink, 0, len(rows))
	for _, r := range rows {
		out = append(out, storage.ComponentLink{
			OwnerModel:    r.OwnerModel,
			OwnerID:       r.OwnerID,
			Field:         r.Field,
			ComponentType: r.ComponentType,
			ComponentID:   r.ComponentID,
			Order:         r.Order,
		})
	}
	return out, nil
}

func (s *GormStore) SetComponentLinks(ctx context.Context, ownerModel string, ownerID uint64, field string, links []storage.ComponentLink) error {
	db, release := s.session(ctx, "setComponentLinks")
	defer release()

	err := db.Clauses(comment("delete", "setComponentLinks")).
		Where("owner_model = ? AND owner_id = ? AND field = ?", ownerModel, ownerID, field).
		Delete(&models.ComponentLink{}).Error
	if err != nil {
		return fmt.Errorf("clear component links %s %d %s: %w", ownerModel, ownerID, field, err)
	}
	if len(links) == 0 {
		return nil
	}

	rows := make([]models.ComponentLink, 0, len(links))
	for _, l := range links {
		rows = append(rows, models.ComponentLink{
			OwnerModel:    ownerModel,
			OwnerID:       ownerID,
			Field:         field,
			ComponentType: l.ComponentType,
			ComponentID:   l.ComponentID,
			Order:         l.Order,
		})
	}
	if err := db.Clauses(comment("insert", "setComponentLinks")).Create(&rows).Error; err != nil {
		return fmt.Errorf("create component links %s %d %s: %w", ownerModel, ownerID, field, err)
	}
	return nil
}

func morphWhere(db *gorm.DB, f storage.MorphFilter) *gorm.DB {
	if f.MorphModel != "" {
		db = db.Where("morph_model = ?", f.MorphModel)
	}
	if f.MorphID != 0 {
		db = db.Where("morph_id = ?", f.MorphID)
	}
	if f.MorphField != "" {
		db = db.Where("morph_field = ?", f.MorphField)
	}
	if f.RelatedType != "" {
		db = db.Where("related_type = ?", f.RelatedType)
	}
	if f.RelatedID != 0 {
		db = db.Where("related_id = ?", f.RelatedID)
	}
	if f.Field != "" {
		db = db.Where("field = ?", f.Field)
	}
	return db
}

func (s *GormStore) MorphLinks(ctx context.Context, f storage.MorphFilter) ([]storage.MorphLink, error) {
	db, release := s.session(ctx, "morphLinks")
	defer release()

	var rows []models.MorphLink
	q := morphWhere(db.Clauses(comment("select", "morphLinks")), f)
	if err := q.Order("sort_order").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("morph links: %w", err)
	}

	out := make([]storage.MorphLink, 0, len(rows))
	for _, r := range rows {
		out = append(out, storage.MorphLink{
			ID:          r.ID,
			MorphModel:  r.MorphModel,
			MorphID:     r.MorphID,
			MorphField:  r.MorphField,
			RelatedType: r.RelatedType,
			RelatedID:   r.RelatedID,
			Field:       r.Field,
			Order:       r.Order,
		})
	}
	return out, nil
}

func (s *GormStore) CreateMorphLink(ctx context.Context, l storage.MorphLink) error {
	db, release := s.session(ctx, "createMorphLink")
	defer release()

	row := models.MorphLink{
		MorphModel:  l.MorphModel,
		MorphID:     l.MorphID,
		MorphField:  l.MorphField,
		RelatedType: l.RelatedType,
		RelatedID:   l.RelatedID,
		Field:       l.Field,
		Order:       l.Order,
	}
	if err := db.Clauses(comment("insert", "createMorphLink")).Create(&row).Error; err != nil {
		return fmt.Errorf("create morph link: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteMorphLinks(ctx context.Context, f storage.MorphFilter) (int64, error) {
	if f == (storage.MorphFilter{}) {
		return 0, fmt.Errorf("delete morph links: empty filter")
	}

	db, release := s.session(ctx, "deleteMorphLinks")
	defer release()

	result := morphWhere(db.Clauses(comment("delete", "deleteMorphLinks")), f).Delete(&models.MorphLink{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete morph links: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// queriesJSON reports whether criteria can be pushed into SQL with JSON functions
func (s *GormStore) queriesJSON() bool {
	switch s.caps.Dialect {
	case "mysql", "sqlite", "postgres":
		return true
	}
	return false
}

// pushdownValue converts a criteria value to a SQL argument. Composite values
// are only matched in Go.
func pushdownValue(v any) (any, bool) {
	switch x := v.(type) {
	case string, bool:
		return x, true
	case nil, map[string]any, []any:
		return nil, false
	}
	if id, err := types.ToID(v); err == nil {
		return int64(id), true
	}
	return nil, false
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func toEntity(model string, row models.Entry) (*storage.Entity, error) {
	data, err := row.Data.Map()
	if err != nil {
		return nil, err
	}
	return &storage.Entity{
		ID:        row.ID,
		Model:     model,
		Data:      data,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// NewFactory returns a connector factory building stores over db
func NewFactory(db *gorm.DB, opts ...StoreOption) func(context.Context, schema.Provider) (storage.Store, error) {
	return func(_ context.Context, schemas schema.Provider) (storage.Store, error) {
		return NewGormStore(db, schemas, opts...), nil
	}
}
