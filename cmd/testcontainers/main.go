package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/contentdb/tests/helpers"
)

const usage = `
Start the contentdb database testcontainer described by the .env file and
keep it running until interrupted.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH] [-o OUT_ENV_PATH]

ENV_FILE_PATH: .env file describing the container (DB_TYPE, DB_IMAGE, DB_PORT, ...)
OUT_ENV_PATH:  writes a .env file pointing the service at the running container

example
  testcontainers -f .env.test -o .env.local
`

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var outFilename string
	flag.StringVar(&outFilename, "o", "", "path of the .env file to write for the service")
	flag.Parse()

	if showHelp {
		fmt.Print(usage + "\n")
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	started := make(chan *helpers.TestContainers, 1)
	go func() {
		testContainers, err := helpers.CreateDBTestContainer(nil)
		if err != nil {
			log.Fatalf("Failed to create test containers: %v\n", err)
		}
		started <- testContainers
	}()

	var testContainers *helpers.TestContainers
	select {
	case testContainers = <-started:
		if outFilename != "" {
			if err := writeServiceEnv(outFilename, testContainers); err != nil {
				log.Printf("Failed to write %s: %v\n", outFilename, err)
			}
		}
		sig := <-sigs
		log.Printf("\nReceived signal: %v, terminating test containers...\n", sig)
	case sig := <-sigs:
		log.Printf("\nReceived signal: %v before startup finished\n", sig)
	}
	if testContainers != nil {
		testContainers.Terminate(nil)
	}
}

// writeServiceEnv records the connection settings of the running container
func writeServiceEnv(path string, tc *helpers.TestContainers) error {
	cfg := tc.Config()
	env := map[string]string{
		"DB_TYPE":     cfg.DBType,
		"DB_HOST":     cfg.DBHost,
		"DB_PORT":     cfg.DBPort,
		"DB_DATABASE": cfg.DBDatabase,
		"DB_USER":     cfg.DBUser,
		"DB_PASSWORD": cfg.DBPassword,
	}
	if schemaPath := os.Getenv("SCHEMA_PATH"); schemaPath != "" {
		env["SCHEMA_PATH"] = schemaPath
	}
	if err := godotenv.Write(env, path); err != nil {
		return err
	}
	log.Printf("Wrote service environment to %s\n", path)
	return nil
}
