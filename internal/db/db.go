package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

var (
	DB *sqlx.DB
)

// Init opens the Postgres connection and assigns it to DB, retrying with
// exponential backoff while the database comes up.
func Init(databaseURL string) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		var err error
		DB, err = sqlx.Connect("postgres", databaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("database not ready, retrying")
			return err
		}
		return nil
	}, bo)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}

	log.Info().Msg("connected to database")
	return nil
}

// RunMigrations applies every *.up.sql file under migrationsPath in lexical
// order, stopping at the first failure. Down migrations are never applied
// automatically.
func RunMigrations(migrationsPath string) error {
	files, err := filepath.Glob(filepath.Join(migrationsPath, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		stmt, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %q: %w", file, err)
		}
		if len(stmt) == 0 {
			continue
		}
		if _, err := DB.Exec(string(stmt)); err != nil {
			return fmt.Errorf("apply migration %q: %w", file, err)
		}
		log.Debug().Str("file", filepath.Base(file)).Msg("migration applied")
	}
	return nil
}
