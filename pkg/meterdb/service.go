// MeterDB contains data specifically about smart meter readings.
// This database should only be written to by meter_collector
// but can be read by any service.
package meterdb

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/NotCoffee418/dbmigrator"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Store struct {
	db *sql.DB
}

// Open the database file and verify the connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Migrate applies pending migrations, must be called manually on startup.
func (s *Store) Migrate() {
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		s.db,
		migrationFS,
		"migrations",
	)
}

// ApplySchema runs the up sections of all migrations directly,
// without migration bookkeeping. Meant for throwaway databases.
func (s *Store) ApplySchema() error {
	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := migrationFS.ReadFile(name)
		if err != nil {
			return err
		}
		up, _, _ := strings.Cut(string(content), "-- +down")
		up = strings.TrimPrefix(strings.TrimSpace(up), "-- +up")
		for _, stmt := range strings.Split(up, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
