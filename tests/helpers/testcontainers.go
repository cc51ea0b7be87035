// This file is a helper for running tests with testcontainers.
// It is used by cmd/testcontainers as a standalone executable and by the integration tests.
// Expects environment variables to be loaded from .env files.
//

package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/localnerve/contentdb/data"
	"github.com/localnerve/contentdb/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type TestContainers struct {
	DBContainer testcontainers.Container
	DBType      string
	DBHost      string
	DBPort      string
}

func (tc *TestContainers) Terminate(t *testing.T) {
	if tc.DBContainer != nil {
		if err := tc.DBContainer.Terminate(context.Background()); err != nil {
			logMessage(t, "Failed to terminate database: %v", err)
		}
	}
}

// Config returns service configuration pointing at the running database
func (tc *TestContainers) Config() *config.Config {
	return &config.Config{
		DBType:            tc.DBType,
		DBHost:            tc.DBHost,
		DBPort:            tc.DBPort,
		DBDatabase:        os.Getenv("DB_DATABASE"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBConnectionLimit: 5,
		DBLogLevel:        "silent",
		MaxComponentDepth: 32,
		SerialWrites:      "auto",
	}
}

// CreateDBTestContainer starts the database named by DB_IMAGE and prepares
// it for the service user.
func CreateDBTestContainer(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()
	dbType := os.Getenv("DB_TYPE")
	testContainers := &TestContainers{DBType: dbType}

	tcpDbPort, err := nat.NewPort("tcp", os.Getenv("DB_PORT"))
	if err != nil {
		exitWithError(t, err, "Failed to create DB port")
	}

	var waitStrategy wait.Strategy = wait.ForListeningPort(tcpDbPort).WithStartupTimeout(60 * time.Second)
	if dbType == "postgres" {
		waitStrategy = wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second)
	}

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        os.Getenv("DB_IMAGE"),
			ExposedPorts: []string{string(tcpDbPort)},
			Env:          getDBInitEnvMap(dbType),
			WaitingFor:   waitStrategy,
		},
		Started: true,
	})
	if err != nil {
		exitWithError(t, err, "Failed to start Database")
	}
	testContainers.DBContainer = dbContainer

	dbHost, err := dbContainer.Host(ctx)
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to get database host")
	}
	dbPort, err := dbContainer.MappedPort(ctx, tcpDbPort)
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to get database port")
	}
	testContainers.DBHost = dbHost
	testContainers.DBPort = dbPort.Port()

	switch dbType {
	case "mysql", "mariadb":
		if err := performMySqlDBInit(dbHost, dbPort); err != nil {
			testContainers.Terminate(t)
			exitWithError(t, err, "Failed to initialize database")
		}
	}

	logMessage(t, "DB_HOST=%s DB_PORT=%s", dbHost, dbPort.Port())
	logMessage(t, "Database testcontainer started successfully")
	return testContainers, nil
}

func getDBInitEnvMap(dbType string) map[string]string {
	switch dbType {
	case "postgres":
		return map[string]string{
			"POSTGRES_PASSWORD": os.Getenv("DB_PASSWORD"),
			"POSTGRES_USER":     os.Getenv("DB_USER"),
			"POSTGRES_DB":       os.Getenv("DB_DATABASE"),
		}
	case "mariadb", "mysql":
		return map[string]string{
			"MYSQL_ROOT_PASSWORD": os.Getenv("DB_ROOT_PASSWORD"),
		}
	}
	return nil
}

// performMySqlDBInit creates the service database and user, then the shared
// link tables inside that database
func performMySqlDBInit(dbHost string, dbPort nat.Port) error {
	database := os.Getenv("DB_DATABASE")
	rootDSN := fmt.Sprintf("root:%s@tcp(%s:%s)/", os.Getenv("DB_ROOT_PASSWORD"), dbHost, dbPort.Port())

	db, err := sql.Open("mysql", rootDSN)
	if err != nil {
		return fmt.Errorf("connect for setup: %w", err)
	}
	defer db.Close()

	// Wait for connection to be really ready
	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("database not ready after 30 seconds: %w", err)
	}

	statements := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database),
		fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD")),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", database, os.Getenv("DB_USER")),
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s : when executing > %s", err.Error(), stmt)
		}
	}
	if err := executeSQL(db, data.InitdbMariaDBPrivileges); err != nil {
		return fmt.Errorf("privileges init sql: %w", err)
	}

	appDB, err := sql.Open("mysql", rootDSN+database)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", database, err)
	}
	defer appDB.Close()
	if err := executeSQL(appDB, data.InitdbMariaDBTables); err != nil {
		return fmt.Errorf("tables init sql: %w", err)
	}
	return nil
}

// executeSQL runs each statement of script in order
func executeSQL(db *sql.DB, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s : when executing > %s", err.Error(), stmt)
		}
	}
	return nil
}

// splitStatements breaks a SQL script on semicolons, dropping -- comments.
// Quoted text is copied through untouched.
func splitStatements(script string) []string {
	var (
		stmts   []string
		current strings.Builder
		quote   rune
		comment bool
	)
	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case comment:
			if r == '\n' {
				comment = false
				current.WriteRune(' ')
			}
		case quote != 0:
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
			current.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			comment = true
			i++
		case r == ';':
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				stmts = append(stmts, stmt)
			}
			current.Reset()
		case r == '\n':
			current.WriteRune(' ')
		default:
			current.WriteRune(r)
		}
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}

func exitWithError(t *testing.T, err error, msg string) {
	if t != nil {
		t.Fatalf(msg+": %v", err)
	} else {
		fmt.Printf(msg+": %v\n", err)
		os.Exit(1)
	}
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
