package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
// Table creation belongs to the individual repositories (EnsureTable).
func New(path string) (*sql.DB, error) {
	// foreign_keys is a per-connection pragma, so it must go through the DSN:
	// the driver then sets it on every connection the pool opens. Cascade
	// delete on Page and DocumentsTags depends on it holding everywhere.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
