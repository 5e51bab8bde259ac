package cliconfig_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridhome/energy-supervisor/cliconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

type testConfig struct {
	Config   string        `cli:"config"`
	Name     string        `cli:"name"`
	Interval int           `cli:"interval"`
	Delay    time.Duration `cli:"delay"`
	Debug    bool          `cli:"debug"`
	Tags     []string      `cli:"tag" normalize:"list"`
}

func testFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "config"},
		cli.StringFlag{Name: "name", Value: "default-name", EnvVar: "TEST_LOADER_NAME"},
		cli.IntFlag{Name: "interval", Value: 60},
		cli.DurationFlag{Name: "delay", Value: 5 * time.Second},
		cli.BoolFlag{Name: "debug"},
		cli.StringSliceFlag{Name: "tag", Value: &cli.StringSlice{}},
	}
}

// load runs a one-command app so the loader sees a real cli.Context, the same
// way the commands construct it.
func load(t *testing.T, cfg any, flags []cli.Flag, args ...string) (warnings []string, err error) {
	t.Helper()

	app := cli.NewApp()
	app.Name = "energy-supervisor"
	app.Commands = []cli.Command{
		{
			Name:  "test",
			Flags: flags,
			Action: func(c *cli.Context) {
				loader := cliconfig.Loader{CLI: c, Config: cfg}
				warnings, err = loader.Load()
			},
		},
	}

	require.NoError(t, app.Run(append([]string{"energy-supervisor", "test"}, args...)))
	return warnings, err
}

func TestLoaderSetsFieldsFromCLI(t *testing.T) {
	cfg := testConfig{}
	_, err := load(t, &cfg, testFlags(),
		"--name", "worker-a",
		"--interval", "15",
		"--delay", "250ms",
		"--debug",
		"--tag", "one",
		"--tag", "two,three",
	)

	require.NoError(t, err)
	assert.Equal(t, "worker-a", cfg.Name)
	assert.Equal(t, 15, cfg.Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.Delay)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"one", "two", "three"}, cfg.Tags)
}

func TestLoaderUsesFlagDefaults(t *testing.T) {
	cfg := testConfig{}
	_, err := load(t, &cfg, testFlags())

	require.NoError(t, err)
	assert.Equal(t, "default-name", cfg.Name)
	assert.Equal(t, 60, cfg.Interval)
	assert.Equal(t, 5*time.Second, cfg.Delay)
}

func TestLoaderLoadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.cfg")
	require.NoError(t, os.WriteFile(path, []byte("name=\"from-file\"\ninterval=30\ndelay=1s\n"), 0o600))

	cfg := testConfig{}
	_, err := load(t, &cfg, testFlags(), "--config", path)

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, 30, cfg.Interval)
	assert.Equal(t, time.Second, cfg.Delay)
}

func TestLoaderCLIOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.cfg")
	require.NoError(t, os.WriteFile(path, []byte("interval=30\n"), 0o600))

	cfg := testConfig{}
	_, err := load(t, &cfg, testFlags(), "--config", path, "--interval", "5")

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Interval)
}

func TestLoaderEnvOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.cfg")
	require.NoError(t, os.WriteFile(path, []byte("name=\"from-file\"\n"), 0o600))

	t.Setenv("TEST_LOADER_NAME", "from-env")

	cfg := testConfig{}
	_, err := load(t, &cfg, testFlags(), "--config", path)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Name)
}

func TestLoaderErrorsForMissingConfigFile(t *testing.T) {
	cfg := testConfig{}
	_, err := load(t, &cfg, testFlags(), "--config", "/does/not/exist.cfg")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a configuration file could not be found")
}

func TestLoaderValidatesRequiredFields(t *testing.T) {
	type requiredConfig struct {
		Config string `cli:"config"`
		Worker string `cli:"worker" validate:"required"`
	}

	flags := []cli.Flag{
		cli.StringFlag{Name: "config"},
		cli.StringFlag{Name: "worker"},
	}

	cfg := requiredConfig{}
	_, err := load(t, &cfg, flags)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing worker.")
}

func TestLoaderNormalizesFilePaths(t *testing.T) {
	type pathConfig struct {
		Config string `cli:"config"`
		Path   string `cli:"path" normalize:"filepath"`
	}

	flags := []cli.Flag{
		cli.StringFlag{Name: "config"},
		cli.StringFlag{Name: "path"},
	}

	cfg := pathConfig{}
	_, err := load(t, &cfg, flags, "--path", "relative/energy.db")

	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.Path), "expected %q to be absolute", cfg.Path)
}
