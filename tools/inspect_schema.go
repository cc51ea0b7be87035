package main

import (
	"fmt"
	"log"
	"os"

	"github.com/localnerve/contentdb/internal/database"
	"github.com/localnerve/contentdb/internal/schema"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Prints the tables GORM creates for a content schema.
// usage: go run ./tools/inspect_schema.go path/to/schema.yaml
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: inspect_schema SCHEMA_PATH")
	}
	models, err := schema.Load(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	if err := schema.Validate(models); err != nil {
		log.Fatal(err)
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		log.Fatal(err)
	}

	// Auto-migrate to see what GORM creates
	if err := database.AutoMigrate(db, models); err != nil {
		log.Fatal(err)
	}

	// Get the schema
	var tables []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' ORDER BY name").Scan(&tables)

	for _, table := range tables {
		fmt.Printf("\n=== Table: %s ===\n", table)
		var ddl string
		db.Raw("SELECT sql FROM sqlite_master WHERE name = ?", table).Scan(&ddl)
		fmt.Println(ddl)
	}
}
