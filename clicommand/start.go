package clicommand

import (
	"context"
	"time"

	"github.com/gridhome/energy-supervisor/cliconfig"
	"github.com/gridhome/energy-supervisor/lockfile"
	"github.com/gridhome/energy-supervisor/metrics"
	"github.com/gridhome/energy-supervisor/process"
	"github.com/gridhome/energy-supervisor/status"
	"github.com/gridhome/energy-supervisor/supervisor"
	"github.com/gridhome/energy-supervisor/version"
	"github.com/urfave/cli"
)

const startDescription = `Usage:

   energy-supervisor start [options...]

Description:

   Starts the calculation worker in scheduler mode, waits for it to
   initialize, then starts the HTTP API server. Termination signals are
   relayed to both processes, and the supervisor exits with the status of
   whichever child exits first.

Example:

   $ energy-supervisor start --worker /app/energy-calculator --server /app/api-server`

// DefaultConfigFilePaths returns the paths to search for a config file when
// --config isn't given, most specific first.
func DefaultConfigFilePaths() []string {
	return []string{
		"energy-supervisor.cfg",
		"$HOME/.energy-supervisor/energy-supervisor.cfg",
		"/etc/energy-supervisor/energy-supervisor.cfg",
	}
}

type StartConfig struct {
	Config string `cli:"config"`

	Worker     string   `cli:"worker" normalize:"filepath" validate:"required"`
	WorkerArgs []string `cli:"worker-arg" normalize:"list"`
	Server     string   `cli:"server" normalize:"filepath" validate:"required"`
	ServerArgs []string `cli:"server-arg" normalize:"list"`

	Interval     int           `cli:"interval"`
	StartupDelay time.Duration `cli:"startup-delay"`

	DBPath   string `cli:"db-path" normalize:"filepath"`
	LockPath string `cli:"lock-path" normalize:"filepath"`

	PTY               bool          `cli:"pty"`
	CancelSignal      string        `cli:"cancel-signal"`
	SignalGracePeriod time.Duration `cli:"signal-grace-period"`
	TimestampLines    bool          `cli:"timestamp-lines"`

	StatusAddr string `cli:"status-addr"`

	MetricsDatadog     bool   `cli:"metrics-datadog"`
	MetricsDatadogHost string `cli:"metrics-datadog-host"`

	Debug    bool   `cli:"debug"`
	LogLevel string `cli:"log-level"`
	NoColor  bool   `cli:"no-color"`
}

var StartCommand = cli.Command{
	Name:        "start",
	Usage:       "Starts the worker and API server processes",
	Description: startDescription,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:   "worker",
			Value:  "",
			Usage:  "Path to the energy calculator executable",
			EnvVar: "ENERGY_SUPERVISOR_WORKER",
		},
		cli.StringSliceFlag{
			Name:   "worker-arg",
			Value:  &cli.StringSlice{},
			Usage:  "Extra argument to pass to the worker, repeatable",
			EnvVar: "ENERGY_SUPERVISOR_WORKER_ARGS",
		},
		cli.StringFlag{
			Name:   "server",
			Value:  "",
			Usage:  "Path to the API server executable",
			EnvVar: "ENERGY_SUPERVISOR_SERVER",
		},
		cli.StringSliceFlag{
			Name:   "server-arg",
			Value:  &cli.StringSlice{},
			Usage:  "Extra argument to pass to the server, repeatable",
			EnvVar: "ENERGY_SUPERVISOR_SERVER_ARGS",
		},
		cli.IntFlag{
			Name:   "interval",
			Value:  supervisor.DefaultInterval,
			Usage:  "Minutes between calculation runs, passed to the worker",
			EnvVar: "ENERGY_SUPERVISOR_INTERVAL",
		},
		cli.DurationFlag{
			Name:   "startup-delay",
			Value:  supervisor.DefaultStartupDelay,
			Usage:  "How long to wait after starting the worker before starting the server",
			EnvVar: "ENERGY_SUPERVISOR_STARTUP_DELAY",
		},
		cli.StringFlag{
			Name:   "db-path",
			Value:  "/data/smart_home_energy.db",
			Usage:  "Path to the shared SQLite database file, provisioned before the children start. Set empty to skip provisioning",
			EnvVar: "ENERGY_SUPERVISOR_DB_PATH",
		},
		cli.StringFlag{
			Name:   "lock-path",
			Value:  "",
			Usage:  "Path to the supervisor lock file. Defaults to the database path with a .lock suffix",
			EnvVar: "ENERGY_SUPERVISOR_LOCK_PATH",
		},
		cli.BoolFlag{
			Name:   "pty",
			Usage:  "Run the children in pseudo terminals, so they line-buffer and colorize as if attached to a terminal",
			EnvVar: "ENERGY_SUPERVISOR_PTY",
		},
		cli.StringFlag{
			Name:   "cancel-signal",
			Value:  "SIGTERM",
			Usage:  "The signal relayed to the children on termination",
			EnvVar: "ENERGY_SUPERVISOR_CANCEL_SIGNAL",
		},
		cli.DurationFlag{
			Name:   "signal-grace-period",
			Value:  10 * time.Second,
			Usage:  "How long a child has to exit after the cancel signal before it is forcibly killed",
			EnvVar: "ENERGY_SUPERVISOR_SIGNAL_GRACE_PERIOD",
		},
		cli.BoolFlag{
			Name:   "timestamp-lines",
			Usage:  "Prepend timestamps to each line of child output",
			EnvVar: "ENERGY_SUPERVISOR_TIMESTAMP_LINES",
		},
		cli.StringFlag{
			Name:   "status-addr",
			Value:  "",
			Usage:  "Serve a supervisor status page on this address, e.g. localhost:9400",
			EnvVar: "ENERGY_SUPERVISOR_STATUS_ADDR",
		},
		cli.BoolFlag{
			Name:   "metrics-datadog",
			Usage:  "Send supervisor metrics to a local DogStatsD agent",
			EnvVar: "ENERGY_SUPERVISOR_METRICS_DATADOG",
		},
		cli.StringFlag{
			Name:   "metrics-datadog-host",
			Value:  "127.0.0.1:8125",
			Usage:  "The DogStatsD instance to send metrics to",
			EnvVar: "ENERGY_SUPERVISOR_METRICS_DATADOG_HOST",
		},
		ConfigFlag,
		DebugFlag,
		LogLevelFlag,
		NoColorFlag,
	},
	Action: func(c *cli.Context) error {
		cfg := StartConfig{}

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

		cancelSig, err := process.ParseSignal(cfg.CancelSignal)
		if err != nil {
			l.Fatal("Failed to parse cancel-signal: %v", err)
		}

		// Refuse to run a second supervisor against the same database
		lockPath := cfg.LockPath
		if lockPath == "" && cfg.DBPath != "" {
			lockPath = cfg.DBPath + ".lock"
		}
		if lockPath != "" {
			lock := lockfile.New(lockPath)
			if err := lock.TryLock(); err != nil {
				l.Fatal("%v", err)
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					l.Warn("Failed to release lock: %v", err)
				}
			}()
		}

		collector := metrics.NewCollector(l, metrics.CollectorConfig{
			Datadog:     cfg.MetricsDatadog,
			DatadogHost: cfg.MetricsDatadogHost,
		})
		if err := collector.Start(); err != nil {
			l.Fatal("Failed to start metrics collection: %v", err)
		}
		defer collector.Stop()

		l.Notice("Starting energy supervisor v%s", version.Version())

		// Captured output is only kept when the status server is around to
		// drain it.
		var outputBuffer *process.Buffer
		if cfg.StatusAddr != "" {
			outputBuffer = &process.Buffer{}
		}

		sup := supervisor.New(l, collector.Scope(metrics.Tags{"version": version.Version()}), supervisor.Config{
			WorkerPath:        cfg.Worker,
			WorkerArgs:        cfg.WorkerArgs,
			ServerPath:        cfg.Server,
			ServerArgs:        cfg.ServerArgs,
			Interval:          cfg.Interval,
			StartupDelay:      cfg.StartupDelay,
			DatabasePath:      cfg.DBPath,
			PTY:               cfg.PTY,
			InterruptSignal:   cancelSig,
			SignalGracePeriod: cfg.SignalGracePeriod,
			Timestamps:        cfg.TimestampLines,
			OutputBuffer:      outputBuffer,
		})

		if cfg.StatusAddr != "" {
			svr := status.NewServer(l, cfg.StatusAddr, sup, outputBuffer)
			if err := svr.Start(); err != nil {
				l.Fatal("Failed to start status server: %v", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = svr.Stop(ctx)
			}()
		}

		exit, err := sup.Run(context.Background())
		if err != nil {
			l.Fatal("%v", err)
		}

		if exit.Status == 0 {
			l.Notice("%v", exit)
		} else {
			l.Error("%v", exit)
		}

		// Deferred cleanup still runs; the actual exit happens in main via
		// cli's exit coder.
		return cli.NewExitError("", exit.Status)
	},
}
