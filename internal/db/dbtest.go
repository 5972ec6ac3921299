package db

import (
	"errors"
	"os"
)

var TestStore Store

// InitTestDB connects the package to the database named by TEST_DATABASE_URL
// and runs migrations. Integration tests call it and skip when it errors.
func InitTestDB(migrationsPath string) error {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		return errors.New("TEST_DATABASE_URL environment variable is not set")
	}

	if err := Init(dbURL); err != nil {
		return err
	}

	if err := RunMigrations(migrationsPath); err != nil {
		return err
	}

	TestStore = NewStore()
	return nil
}
