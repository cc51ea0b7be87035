// migration.go
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

// Package migration wraps mutating operations with ordered before and after steps.
package migration

import (
	"context"
	"fmt"
	"sync"

	"github.com/localnerve/contentdb/internal/metrics"
	"go.uber.org/zap"
)

// Options describes the operation being wrapped
type Options struct {
	// Action is the operation name, e.g. "create", "update", "delete" or "sync"
	Action string
	Model  string
	Data   map[string]any
}

// State is shared by every step of one Run
type State map[string]any

// StepFunc is a before or after step
type StepFunc func(ctx context.Context, opts Options, state State) error

// Predicate gates a step. A nil predicate always runs.
type Predicate func(opts Options, state State) bool

// ShouldRun holds the optional per-phase gates of a migration
type ShouldRun struct {
	Before Predicate
	After  Predicate
}

// Migration is a named pair of optional steps
type Migration struct {
	Name      string
	Before    StepFunc
	After     StepFunc
	ShouldRun ShouldRun
}

// Operation is the mutating operation a Run wraps
type Operation func(ctx context.Context, opts Options, state State) error

// Manager holds migrations in registration order
type Manager struct {
	mu         sync.RWMutex
	migrations []Migration
	log        *zap.Logger
}

// NewManager creates an empty migration manager
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log}
}

// Register appends a migration
func (m *Manager) Register(mig Migration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrations = append(m.migrations, mig)
}

// Run executes before steps in registration order, then op, then after steps
// in reverse registration order. Any error aborts the remaining phases.
func (m *Manager) Run(ctx context.Context, op Operation, opts Options) error {
	m.mu.RLock()
	migrations := make([]Migration, len(m.migrations))
	copy(migrations, m.migrations)
	m.mu.RUnlock()

	state := State{}

	for _, mig := range migrations {
		if mig.Before == nil || (mig.ShouldRun.Before != nil && !mig.ShouldRun.Before(opts, state)) {
			continue
		}
		metrics.RecordMigrationStep("before")
		if err := mig.Before(ctx, opts, state); err != nil {
			m.log.Debug("Migration before step failed", zap.String("migration", mig.Name), zap.Error(err))
			return fmt.Errorf("migration %s before %s: %w", mig.Name, opts.Action, err)
		}
	}

	if err := op(ctx, opts, state); err != nil {
		return err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if mig.After == nil || (mig.ShouldRun.After != nil && !mig.ShouldRun.After(opts, state)) {
			continue
		}
		metrics.RecordMigrationStep("after")
		if err := mig.After(ctx, opts, state); err != nil {
			m.log.Debug("Migration after step failed", zap.String("migration", mig.Name), zap.Error(err))
			return fmt.Errorf("migration %s after %s: %w", mig.Name, opts.Action, err)
		}
	}
	return nil
}
