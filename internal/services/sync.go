package services

import (
	"context"
	"fmt"

	"github.com/localnerve/contentdb/internal/migration"
	"github.com/localnerve/contentdb/internal/registry"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/storage"
	"go.uber.org/zap"
)

// SyncAction is the migration action under which schema sync runs
const SyncAction = "sync"

// SyncSchema prepares physical storage for every model. Each model is synced
// through the migration manager with action "sync", so migrations can run
// data steps around table changes. Stores that do not implement
// storage.Migrator are skipped.
func SyncSchema(ctx context.Context, r *registry.Registry, migrations *migration.Manager, log *zap.Logger) error {
	if migrations == nil {
		migrations = migration.NewManager(log)
	}
	for _, model := range r.Schemas().Models() {
		q, err := r.Query(model.UID)
		if err != nil {
			return err
		}
		migrator, ok := q.Store().(storage.Migrator)
		if !ok {
			continue
		}
		err = migrations.Run(ctx, func(ctx context.Context, _ migration.Options, _ migration.State) error {
			return migrator.Migrate(ctx, []*schema.Model{model})
		}, migration.Options{Action: SyncAction, Model: model.UID})
		if err != nil {
			return fmt.Errorf("sync %s: %w", model.UID, err)
		}
	}
	return nil
}
