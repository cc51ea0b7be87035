// bootstrap.go
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

// Package bootstrap opens the persistence core the way every binary needs it:
// schema loaded and validated, connectors built, collection tables synced.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/localnerve/contentdb/internal/config"
	"github.com/localnerve/contentdb/internal/database"
	"github.com/localnerve/contentdb/internal/logger"
	"github.com/localnerve/contentdb/internal/registry"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/localnerve/contentdb/internal/services"
	"github.com/localnerve/contentdb/internal/storage/memory"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MemoryConnector names the in-process connector type
const MemoryConnector = "memory"

// GormConnector names the SQL connector type
const GormConnector = "gorm"

// Runtime is an opened core
type Runtime struct {
	Config   *config.Config
	DB       *gorm.DB // nil for the memory store
	Registry *registry.Registry
	Service  *services.EntityService
}

// Close releases every connector
func (rt *Runtime) Close() error {
	return rt.Registry.Close()
}

// Registry builds an unloaded registry for models, with the default
// connection bound to the configured store
func Registry(cfg *config.Config, models []*schema.Model, db *gorm.DB, log *zap.Logger) *registry.Registry {
	opts := []registry.Option{
		registry.WithLogger(log),
		registry.WithMaxDepth(cfg.MaxComponentDepth),
		registry.WithConnector(MemoryConnector, memory.Factory),
		registry.WithConnection(MemoryConnector, MemoryConnector),
	}
	if db != nil {
		opts = append(opts,
			registry.WithConnector(GormConnector, database.NewFactory(db,
				database.WithSerialWrites(cfg.SerialWritesOverride()),
				database.WithStoreLogger(log))),
			registry.WithConnection(schema.DefaultConnector, GormConnector))
	} else {
		opts = append(opts, registry.WithConnection(schema.DefaultConnector, MemoryConnector))
	}
	return registry.New(models, opts...)
}

// Open loads the schema at cfg.SchemaPath, connects the store and syncs the
// collection tables. With sync false the tables are left as they are.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger, sync bool) (*Runtime, error) {
	log = logger.OrNop(log)

	models, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	if cfg.DBType != MemoryConnector {
		if db, err = database.Connect(cfg, log); err != nil {
			return nil, err
		}
	}

	r := Registry(cfg, models, db, log)
	closeOnErr := func(err error) (*Runtime, error) {
		if db != nil {
			_ = database.Close(db)
		}
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return closeOnErr(fmt.Errorf("validate schema: %w", err))
	}
	if err := r.Load(ctx); err != nil {
		return closeOnErr(fmt.Errorf("load connectors: %w", err))
	}

	svc := services.NewEntityService(r, cfg.MaxComponentDepth, services.WithLogger(log))
	if sync {
		if err := services.SyncSchema(ctx, r, svc.Migrations(), log); err != nil {
			_ = r.Close()
			return nil, err
		}
	}

	return &Runtime{Config: cfg, DB: db, Registry: r, Service: svc}, nil
}
