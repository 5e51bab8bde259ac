package dbfile_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gridhome/energy-supervisor/dbfile"
	"github.com/gridhome/energy-supervisor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestProvisionCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "smart_home_energy.db")

	require.NoError(t, dbfile.Provision(logger.Discard, path))

	info, err := os.Stat(path)
	require.NoError(t, err)

	if runtime.GOOS != "windows" {
		assert.Equal(t, dbfile.FileMode, info.Mode().Perm())
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smart_home_energy.db")

	require.NoError(t, dbfile.Provision(logger.Discard, path))
	require.NoError(t, dbfile.Provision(logger.Discard, path))
}

func TestProvisionKeepsExistingData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smart_home_energy.db")

	// Simulate a database already populated by a previous run of the children.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE hubs (hub_code TEXT PRIMARY KEY)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO hubs (hub_code) VALUES ('HUB001')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, dbfile.Provision(logger.Discard, path))

	db, err = sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var hubCode string
	require.NoError(t, db.QueryRow("SELECT hub_code FROM hubs").Scan(&hubCode))
	assert.Equal(t, "HUB001", hubCode)
}

func TestProvisionRejectsNonDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-database.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite"), 0o666))

	err := dbfile.Provision(logger.Discard, path)
	assert.Error(t, err)
}
