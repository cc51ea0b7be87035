// main.go
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

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/localnerve/contentdb/internal/bootstrap"
	"github.com/localnerve/contentdb/internal/config"
	"github.com/localnerve/contentdb/internal/handlers"
	"github.com/localnerve/contentdb/internal/logger"
	"github.com/localnerve/contentdb/internal/schema"
	"github.com/spf13/cobra"
)

var (
	envFile    string
	schemaPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv applies --env-file, then lets --schema override SCHEMA_PATH
func loadEnv() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if schemaPath != "" {
		return os.Setenv("SCHEMA_PATH", schemaPath)
	}
	return nil
}

// loadSchema reads and validates the schema without touching any store
func loadSchema() (*schema.Registry, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}
	path := os.Getenv("SCHEMA_PATH")
	if path == "" {
		return nil, fmt.Errorf("no schema: pass --schema or set SCHEMA_PATH")
	}
	models, err := schema.Load(path)
	if err != nil {
		return nil, err
	}
	return schema.NewRegistry(models)
}

var rootCmd = &cobra.Command{
	Use:          "contentctl",
	Short:        "Inspect and migrate contentdb content schemas",
	SilenceUsage: true,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the content schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadSchema()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema OK: %d models\n", len(r.Models()))
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models of the content schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadSchema()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "UID\tCOLLECTION\tCONNECTOR\tKIND\tATTRIBUTES")
		for _, m := range handlers.Summarize(r.Models()) {
			kind := "entity"
			if m.Component {
				kind = "component"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", m.UID, m.Collection, m.Connector, kind, m.Attributes)
		}
		return w.Flush()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the collection and link tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(); err != nil {
			return err
		}
		cfg, err := config.FromEnv()
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		log, err := logger.New(cfg.Environment, cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		rt, err := bootstrap.Open(context.Background(), cfg, log, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d models on %s\n", len(rt.Registry.Schemas().Models()), cfg.DBType)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "f", "", "path to a .env file")
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "", "schema file or directory (overrides SCHEMA_PATH)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(migrateCmd)
}
