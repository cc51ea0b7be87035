package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/localnerve/contentdb/internal/lifecycle"
	"github.com/localnerve/contentdb/internal/registry"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
)

// FindOne returns the populated entry
func (s *EntityService) FindOne(ctx context.Context, uid string, id uint64) (Document, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()

	if err := s.lifecycles.Run(ctx, lifecycle.BeforeFindOne, model, id); err != nil {
		return nil, err
	}
	e, err := q.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := q.Populate(ctx, e)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycles.Run(ctx, lifecycle.AfterFindOne, model, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Find returns the populated entries matching c
func (s *EntityService) Find(ctx context.Context, uid string, c storage.Criteria) ([]Document, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()

	if err := s.lifecycles.Run(ctx, lifecycle.BeforeFind, model, c); err != nil {
		return nil, err
	}
	found, err := q.Find(ctx, c)
	if err != nil {
		return nil, err
	}
	docs, err := populateAll(ctx, q, found)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycles.Run(ctx, lifecycle.AfterFind, model, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the number of entries matching c
func (s *EntityService) Count(ctx context.Context, uid string, c storage.Criteria) (int64, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return 0, err
	}
	model := q.Model()

	if err := s.lifecycles.Run(ctx, lifecycle.BeforeCount, model, c); err != nil {
		return 0, err
	}
	n, err := q.Count(ctx, c)
	if err != nil {
		return 0, err
	}
	if err := s.lifecycles.Run(ctx, lifecycle.AfterCount, model, n); err != nil {
		return 0, err
	}
	return n, nil
}

// Search returns the populated entries matching c whose text attributes
// contain term, ignoring case. An empty term matches every entry.
func (s *EntityService) Search(ctx context.Context, uid, term string, c storage.Criteria) ([]Document, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return nil, err
	}
	model := q.Model()

	if err := s.lifecycles.Run(ctx, lifecycle.BeforeSearch, model, term, c); err != nil {
		return nil, err
	}
	found, err := s.search(ctx, q, term, c)
	if err != nil {
		return nil, err
	}
	docs, err := populateAll(ctx, q, found)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycles.Run(ctx, lifecycle.AfterSearch, model, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// CountSearch returns the number of entries Search would return without a limit
func (s *EntityService) CountSearch(ctx context.Context, uid, term string, c storage.Criteria) (int64, error) {
	q, err := s.registry.Query(uid)
	if err != nil {
		return 0, err
	}
	model := q.Model()

	if err := s.lifecycles.Run(ctx, lifecycle.BeforeCountSearch, model, term, c); err != nil {
		return 0, err
	}
	c.Limit = 0
	found, err := s.search(ctx, q, term, c)
	if err != nil {
		return 0, err
	}
	n := int64(len(found))
	if err := s.lifecycles.Run(ctx, lifecycle.AfterCountSearch, model, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *EntityService) search(ctx context.Context, q *registry.Query, term string, c storage.Criteria) ([]*storage.Entity, error) {
	limit := c.Limit
	c.Limit = 0
	found, err := q.Find(ctx, c)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return truncate(found, limit), nil
	}

	var out []*storage.Entity
	for _, e := range found {
		if matches(q.Model(), e, term) {
			out = append(out, e)
		}
	}
	return truncate(out, limit), nil
}

// matches reports whether a searchable scalar of e contains term
func matches(model *schema.Model, e *storage.Entity, term string) bool {
	for _, a := range model.AttributesOf(schema.KindScalar) {
		if a.Private || a.Type == "password" {
			continue
		}
		v, ok := e.Data[a.Name]
		if !ok || v == nil {
			continue
		}
		var text string
		switch val := v.(type) {
		case string:
			text = val
		case float64, int, int64, uint64, bool:
			text = fmt.Sprint(val)
		default:
			continue
		}
		if strings.Contains(strings.ToLower(text), term) {
			return true
		}
	}
	return false
}

func truncate(list []*storage.Entity, limit int) []*storage.Entity {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

func populateAll(ctx context.Context, q *registry.Query, list []*storage.Entity) ([]Document, error) {
	docs := make([]Document, 0, len(list))
	for _, e := range list {
		doc, err := q.Populate(ctx, e)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
