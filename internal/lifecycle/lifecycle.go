// lifecycle.go
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

// Package lifecycle runs registered hooks around entity operations.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/localnerve/contentdb/internal/metrics"
	"github.com/localnerve/contentdb/internal/schema"
	"go.uber.org/zap"
)

// Action names a lifecycle event
type Action string

const (
	BeforeCreate      Action = "beforeCreate"
	AfterCreate       Action = "afterCreate"
	BeforeUpdate      Action = "beforeUpdate"
	AfterUpdate       Action = "afterUpdate"
	BeforeDelete      Action = "beforeDelete"
	AfterDelete       Action = "afterDelete"
	BeforeFind        Action = "beforeFind"
	AfterFind         Action = "afterFind"
	BeforeFindOne     Action = "beforeFindOne"
	AfterFindOne      Action = "afterFindOne"
	BeforeCount       Action = "beforeCount"
	AfterCount        Action = "afterCount"
	BeforeSearch      Action = "beforeSearch"
	AfterSearch       Action = "afterSearch"
	BeforeCountSearch Action = "beforeCountSearch"
	AfterCountSearch  Action = "afterCountSearch"
)

// HookFunc handles one action. Args are action specific, e.g. the payload
// for beforeCreate and the stored result for afterCreate.
type HookFunc func(ctx context.Context, model *schema.Model, args ...any) error

// Lifecycle is a set of hooks, optionally restricted to one model uid
type Lifecycle struct {
	Model string
	Hooks map[Action]HookFunc
}

// Manager holds lifecycles in registration order
type Manager struct {
	mu         sync.RWMutex
	lifecycles []Lifecycle
	log        *zap.Logger
}

// NewManager creates an empty lifecycle manager
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log}
}

// Register appends a lifecycle. Duplicates are kept.
func (m *Manager) Register(l Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifecycles = append(m.lifecycles, l)
}

// Run invokes the handlers for action sequentially, in registration order.
// Lifecycles scoped to another model or without a handler for action are
// skipped. The first error stops the run and is returned.
func (m *Manager) Run(ctx context.Context, action Action, model *schema.Model, args ...any) error {
	m.mu.RLock()
	lifecycles := make([]Lifecycle, len(m.lifecycles))
	copy(lifecycles, m.lifecycles)
	m.mu.RUnlock()

	for i, l := range lifecycles {
		if l.Model != "" && l.Model != model.UID {
			continue
		}
		hook, ok := l.Hooks[action]
		if !ok || hook == nil {
			continue
		}
		metrics.RecordLifecycleHook(string(action))
		if err := hook(ctx, model, args...); err != nil {
			m.log.Debug("Lifecycle hook failed",
				zap.String("action", string(action)),
				zap.String("model", model.UID),
				zap.Int("index", i),
				zap.Error(err))
			return fmt.Errorf("%s %s: %w", action, model.UID, err)
		}
	}
	return nil
}

// Before returns the before action paired with an operation name such as "create"
func Before(op string) Action {
	return Action("before" + capitalize(op))
}

// After returns the after action paired with an operation name
func After(op string) Action {
	return Action("after" + capitalize(op))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
