package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Notifuse/notifuse/internal/database/schema"
)

// Connect opens the shared PostgreSQL connection pool and verifies it
// is reachable. There is one pool for the whole process: tenants share
// it, isolated only by the tenant_id column on every table.
func Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// InitializeSchema creates every table and index this service needs if
// they don't already exist.
func InitializeSchema(db *sql.DB) error {
	for _, stmt := range schema.TableDefinitions {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
