// Package db opens the per-workspace sqlite database backing the run
// diary, the catalog snapshot cache, and API keys. Everything lives in a
// single file under <workspace>/.modelscout so a workspace can be wiped
// by deleting that directory.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dataDir = ".modelscout"
	dbFile  = "modelscout.db"
)

// Dir returns the workspace data directory, creating it if missing.
func Dir(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	dir := filepath.Join(workspace, dataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace dir %s: %w", dir, err)
	}
	return dir, nil
}

// Path returns the database file path for a workspace without creating
// anything.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dataDir, dbFile)
}

// Open ensures the workspace data directory exists and opens its database
// with foreign keys enforced.
func Open(workspace string) (*sql.DB, error) {
	if _, err := Dir(workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", Path(workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open workspace db: %w", err)
	}
	return conn, nil
}
