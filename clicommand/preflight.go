package clicommand

import (
	"github.com/gridhome/energy-supervisor/cliconfig"
	"github.com/gridhome/energy-supervisor/dbfile"
	"github.com/urfave/cli"
)

const preflightDescription = `Usage:

   energy-supervisor preflight [options...]

Description:

   Provisions the shared database file without starting any processes: the
   parent directory is created, the file is created if missing, permissions
   are opened up so both children can write to it, and the file is checked
   for corruption.

   This is the same provisioning step that ′start′ performs, split out so
   deploy tooling can run it ahead of time.

Example:

   $ energy-supervisor preflight --db-path /data/smart_home_energy.db`

type PreflightConfig struct {
	Config string `cli:"config"`

	DBPath string `cli:"db-path" normalize:"filepath" validate:"required"`

	Debug    bool   `cli:"debug"`
	LogLevel string `cli:"log-level"`
	NoColor  bool   `cli:"no-color"`
}

var PreflightCommand = cli.Command{
	Name:        "preflight",
	Usage:       "Provisions the shared database file and exits",
	Description: preflightDescription,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:   "db-path",
			Value:  "/data/smart_home_energy.db",
			Usage:  "Path to the shared SQLite database file",
			EnvVar: "ENERGY_SUPERVISOR_DB_PATH",
		},
		ConfigFlag,
		DebugFlag,
		LogLevelFlag,
		NoColorFlag,
	},
	Action: func(c *cli.Context) error {
		cfg := PreflightConfig{}

		loader := cliconfig.Loader{
			CLI:                    c,
			Config:                 &cfg,
			DefaultConfigFilePaths: DefaultConfigFilePaths(),
		}
		warnings, err := loader.Load()
		if err != nil {
			return err
		}

		l := CreateLogger(&cfg)
		for _, warning := range warnings {
			l.Warn("%s", warning)
		}

		if err := dbfile.Provision(l, cfg.DBPath); err != nil {
			l.Fatal("Database preflight failed: %v", err)
		}

		l.Notice("Database file at %s is ready", cfg.DBPath)
		return nil
	},
}
