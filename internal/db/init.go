package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"

	_ "github.com/lib/pq"
	"wakesched/internal/constants"
	"wakesched/internal/lock"
)

const schema = "sched_schema"

//go:embed migrations/*.sql
var migrations embed.FS

// Open returns a pinged connection pool for postgresURL.
func Open(ctx context.Context, postgresURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Init creates the schema and applies the embedded migration scripts in file name order.
// Only one instance migrates at a time: the scripts run while MigrationLock is held.
// Every script is idempotent, so Init is safe to call on every start.
func Init(ctx context.Context, db *sql.DB, distributedLock lock.DistributedLockManager) error {
	var migrationLock int64 = constants.MigrationLock

	if err := distributedLock.Acquire(ctx, migrationLock); err != nil {
		return err
	}
	defer func() {
		if err := distributedLock.Release(ctx, migrationLock); err != nil {
			log.Printf("db: release migration lock: %v", err)
		}
	}()

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return err
	}

	scripts, err := readSQLScripts()
	if err != nil {
		return err
	}
	for _, script := range scripts {
		log.Printf("db: applying %s", script.name)
		if _, err := db.ExecContext(ctx, script.body); err != nil {
			return fmt.Errorf("migration %s: %w", script.name, err)
		}
	}
	return nil
}

type sqlScript struct {
	name string
	body string
}

func readSQLScripts() ([]sqlScript, error) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return nil, err
	}

	var scripts []sqlScript
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := fs.ReadFile(migrations, "migrations/"+entry.Name())
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, sqlScript{name: entry.Name(), body: string(content)})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].name < scripts[j].name })
	return scripts, nil
}
