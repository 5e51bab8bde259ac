// Package dbfile provisions the platform's shared SQLite database file.
//
// The worker and the API server both open the same database; neither of them
// runs as root inside the container, so the file has to exist and be
// world-writable before either child starts. The schema itself belongs to the
// children and is never touched here.
package dbfile

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gridhome/energy-supervisor/logger"

	_ "modernc.org/sqlite"
)

// FileMode is deliberately world-writable: the children run as an arbitrary
// uid and the file is created once at startup, not coordinated at runtime.
const FileMode = os.FileMode(0o666)

// Provision creates the database file if it is missing, makes it writable for
// the child processes, and verifies it is actually usable as a SQLite
// database. It is idempotent, so both launcher variants (with and without a
// separate pre-flight step) can call it.
func Provision(l logger.Logger, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		l.Info("Creating database file at %s", path)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, FileMode)
		if err != nil {
			return fmt.Errorf("creating database file %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing database file %s: %w", path, err)
		}
	case err != nil:
		return fmt.Errorf("inspecting database file %s: %w", path, err)
	default:
		l.Debug("Database file %s exists (%d bytes)", path, info.Size())
	}

	// chmod separately from create; O_CREATE's mode is masked by the umask.
	if err := os.Chmod(path, FileMode); err != nil {
		return fmt.Errorf("setting database file permissions: %w", err)
	}

	return verify(l, path)
}

// verify opens the file with the SQLite driver and runs an integrity check,
// surfacing corrupt or non-database files before the children trip over them.
func verify(l logger.Logger, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database %s: %w", path, err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("connecting to database %s: %w", path, err)
	}

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("checking database %s: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("database %s failed quick_check: %s", path, result)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("reading journal mode of %s: %w", path, err)
	}
	l.Debug("Database %s verified (journal_mode=%s)", path, journalMode)

	return nil
}
