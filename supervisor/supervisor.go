// Package supervisor starts and minds the two platform processes: the
// periodic energy-calculator worker and the HTTP API server.
//
// The supervisor owns both child handles explicitly. It provisions the shared
// database file, starts the worker, waits a fixed startup delay, starts the
// server, relays termination signals to both children, and reports the first
// child exit as its own result. There is deliberately no restart or
// health-check logic; whoever runs the supervisor (compose, systemd, a
// kubelet) owns restarts.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/buildkite/roko"

	"github.com/gridhome/energy-supervisor/dbfile"
	"github.com/gridhome/energy-supervisor/logger"
	"github.com/gridhome/energy-supervisor/metrics"
	"github.com/gridhome/energy-supervisor/process"
	"github.com/gridhome/energy-supervisor/signalwatcher"
	"github.com/gridhome/energy-supervisor/version"
)

const (
	// DefaultStartupDelay is how long the worker gets to initialize before
	// the server starts. Best-effort ordering only, not a readiness check.
	DefaultStartupDelay = 5 * time.Second

	// DefaultInterval is the worker's polling interval in minutes.
	DefaultInterval = 60
)

// Config contains everything needed to launch the worker and the server.
type Config struct {
	// WorkerPath and WorkerArgs describe the calculation scheduler process.
	// The supervisor appends --scheduler --interval <Interval> to WorkerArgs.
	WorkerPath string
	WorkerArgs []string

	// ServerPath and ServerArgs describe the HTTP API process. Its port 8000
	// contract belongs to the server itself.
	ServerPath string
	ServerArgs []string

	// Interval is the worker's polling interval in minutes.
	Interval int

	// StartupDelay is the pause between starting the worker and the server.
	StartupDelay time.Duration

	// DatabasePath is the shared SQLite file provisioned before any child
	// starts. Empty disables provisioning.
	DatabasePath string

	// Env is extra environment for both children in KEY=value form.
	Env []string

	// PTY runs the children in pseudo-terminals, so line-buffering and color
	// detection behave as if they were attached to a terminal.
	PTY bool

	// InterruptSignal is what gets relayed to the children; SIGTERM unless
	// set.
	InterruptSignal process.Signal

	// SignalGracePeriod is how long a child has between the interrupt signal
	// and a SIGKILL.
	SignalGracePeriod time.Duration

	// Timestamps prepends a timestamp to every line of child output.
	Timestamps bool

	// Stdout is where child output goes; defaults to os.Stdout.
	Stdout io.Writer

	// OutputBuffer, when set, also captures the children's labelled output so
	// it can be drained elsewhere, like the status server's output endpoint.
	OutputBuffer *process.Buffer
}

// Supervisor owns the two child process handles.
type Supervisor struct {
	logger  logger.Logger
	conf    Config
	metrics *metrics.Scope

	mu       sync.Mutex
	children []*child
	started  time.Time

	outMu sync.Mutex
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(b []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(b)
}

type child struct {
	name string
	proc *process.Process
}

// New returns a Supervisor. The metrics scope may be from a stopped
// collector, in which case metric calls are no-ops.
func New(l logger.Logger, scope *metrics.Scope, c Config) *Supervisor {
	if c.StartupDelay <= 0 {
		c.StartupDelay = DefaultStartupDelay
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	return &Supervisor{
		logger:  l,
		conf:    c,
		metrics: scope,
	}
}

// Run provisions the database file, launches both children and blocks until
// one of them exits. The returned ProcessExit is the first exit, no matter
// which child it came from or what happened to the survivor afterwards. The
// error return is for supervisor-level failures only (provisioning, launch).
func (s *Supervisor) Run(ctx context.Context) (ProcessExit, error) {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	if s.conf.DatabasePath != "" {
		if err := s.provisionDatabase(ctx); err != nil {
			return ProcessExit{}, err
		}
	}

	childEnv := s.childEnv()

	// Children share a context: cancelling it interrupts both process
	// groups, and each Process escalates to SIGKILL after the grace period.
	childCtx, stopChildren := context.WithCancel(context.Background())
	defer stopChildren()

	// Buffered for both children so the late exit never blocks a goroutine.
	exits := make(chan *child, 2)
	var wg sync.WaitGroup

	worker, err := s.startChild(childCtx, "worker", s.conf.WorkerPath, s.workerArgs(), childEnv, exits, &wg)
	if err != nil {
		return ProcessExit{}, fmt.Errorf("starting worker: %w", err)
	}

	s.metrics.Count("child.started", 1, metrics.Tags{"child": "worker"})

	// Give the worker a head start before the server comes up. If the worker
	// dies during the delay that's our first exit; the server never starts.
	s.logger.Info("Waiting %v before starting the server", s.conf.StartupDelay)
	select {
	case <-time.After(s.conf.StartupDelay):
	case <-worker.proc.Done():
		first := <-exits
		wg.Wait()
		return s.report(first), nil
	case <-ctx.Done():
		s.logger.Notice("Shutting down before the server was started")
		stopChildren()
		<-exits
		wg.Wait()
		return s.report(worker), nil
	}

	if _, err := s.startChild(childCtx, "server", s.conf.ServerPath, s.conf.ServerArgs, childEnv, exits, &wg); err != nil {
		// The worker is already running; take it down before bailing out.
		stopChildren()
		<-exits
		wg.Wait()
		return ProcessExit{}, fmt.Errorf("starting server: %w", err)
	}

	s.metrics.Count("child.started", 1, metrics.Tags{"child": "server"})

	// The watcher gets its own context so the Notify registration and the
	// watching goroutine are torn down when Run returns.
	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	signals := signalwatcher.Watch(watchCtx)

	// Join: wait for the first exit, relaying any termination signals that
	// arrive in the meantime. Each received signal is relayed at most once.
	var first *child
	for first == nil {
		select {
		case sig, ok := <-signals:
			if !ok {
				// Watcher has shut down; ctx.Done is about to fire too.
				signals = nil
				continue
			}
			s.relay(sig)
		case <-ctx.Done():
			s.logger.Notice("Shutting down, stopping both children")
			stopChildren()
			first = <-exits
		case first = <-exits:
		}
	}

	// First exit wins. Terminate the survivor, but keep reporting the first
	// exit's status regardless of how the survivor goes down.
	stopChildren()
	wg.Wait()

	return s.report(first), nil
}

// Snapshot returns the current state of the supervisor and its children, for
// the status endpoint.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Version: version.Version(),
		PID:     os.Getpid(),
		Started: s.started,
	}
	if !s.started.IsZero() {
		snap.Uptime = time.Since(s.started).Truncate(time.Second).String()
	}

	for _, c := range s.children {
		cs := ChildStatus{
			Name:  c.name,
			Pid:   c.proc.Pid(),
			State: "running",
		}
		select {
		case <-c.proc.Done():
			cs.State = "exited"
			if ws := c.proc.WaitStatus(); ws != nil {
				status := ws.ExitStatus()
				cs.ExitStatus = &status
			}
		default:
			select {
			case <-c.proc.Started():
			default:
				cs.State = "pending"
			}
		}
		snap.Children = append(snap.Children, cs)
	}
	return snap
}

// Snapshot is a point-in-time view of the supervisor, serialized by the
// status endpoint.
type Snapshot struct {
	Version  string        `json:"version"`
	PID      int           `json:"pid"`
	Started  time.Time     `json:"started"`
	Uptime   string        `json:"uptime,omitempty"`
	Children []ChildStatus `json:"children"`
}

type ChildStatus struct {
	Name       string `json:"name"`
	Pid        int    `json:"pid,omitempty"`
	State      string `json:"state"`
	ExitStatus *int   `json:"exit_status,omitempty"`
}

func (s *Supervisor) provisionDatabase(ctx context.Context) error {
	// The volume mount can be slow to appear on container start, so retry
	// provisioning a few times before giving up.
	return roko.NewRetrier(
		roko.WithMaxAttempts(3),
		roko.WithStrategy(roko.Constant(1*time.Second)),
	).DoWithContext(ctx, func(r *roko.Retrier) error {
		if err := dbfile.Provision(s.logger, s.conf.DatabasePath); err != nil {
			s.logger.Warn("Database provisioning failed: %v (%s)", err, r)
			return err
		}
		return nil
	})
}

// workerArgs appends the scheduler flags the worker contract requires.
func (s *Supervisor) workerArgs() []string {
	return append(append([]string{}, s.conf.WorkerArgs...),
		"--scheduler", "--interval", strconv.Itoa(s.conf.Interval))
}

// childEnv builds the environment additions shared by both children.
func (s *Supervisor) childEnv() []string {
	env := append([]string{}, s.conf.Env...)

	// The children are line-logging Python processes; without this their
	// output arrives in 4KB lumps long after the fact.
	env = append(env, "PYTHONUNBUFFERED=1")

	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		s.logger.Warn("GOOGLE_APPLICATION_CREDENTIALS is not set; the worker will not be able to reach the cloud service")
	}

	return env
}

func (s *Supervisor) startChild(ctx context.Context, name, path string, args, env []string, exits chan<- *child, wg *sync.WaitGroup) (*child, error) {
	s.logger.Info("Starting %s: %s", name, process.FormatCommand(path, args))

	outR, outW := io.Pipe()

	proc := process.New(s.logger.WithPrefix(name), process.Config{
		Path:              path,
		Args:              args,
		Env:               env,
		PTY:               s.conf.PTY,
		Stdout:            outW,
		Stderr:            outW,
		InterruptSignal:   s.conf.InterruptSignal,
		SignalGracePeriod: s.conf.SignalGracePeriod,
	})

	c := &child{name: name, proc: proc}

	s.mu.Lock()
	s.children = append(s.children, c)
	s.mu.Unlock()

	// Scan whole lines out of the pipe, so however the child buffers its
	// writes, the labelled output never tears mid-line.
	w := s.childWriter(name)
	wg.Add(1)
	go func() {
		defer wg.Done()

		scanner := process.NewScanner(s.logger.WithPrefix(name))
		if err := scanner.ScanLines(outR, func(line string) {
			fmt.Fprintln(w, line)
		}); err != nil {
			s.logger.Error("Reading %s output: %v", name, err)
		}
	}()

	runErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()

		start := time.Now()
		err := proc.Run(ctx)
		outW.Close()
		if err != nil {
			runErr <- err
			return
		}

		ws := proc.WaitStatus()
		s.logger.Notice("The %s exited with status %d", name, ws.ExitStatus())
		s.metrics.Count("child.exited", 1, metrics.Tags{"child": name})
		s.metrics.Timing("child.runtime", time.Since(start), metrics.Tags{"child": name})

		exits <- c
	}()

	// Wait until the process has started (or failed to).
	select {
	case <-proc.Started():
		return c, nil
	case err := <-runErr:
		return nil, err
	case <-proc.Done():
		// Done without Started means the launch itself failed.
		return nil, fmt.Errorf("%s failed to start", name)
	}
}

// report converts a child's exit into the supervisor's own result.
func (s *Supervisor) report(c *child) ProcessExit {
	exit := exitFrom(c.name, c.proc.WaitStatus())
	if exit.Signal != "" {
		s.logger.Notice("Propagating exit of the %s (killed by %s) as status %d", exit.Name, exit.Signal, exit.Status)
	} else {
		s.logger.Notice("Propagating exit status %d of the %s", exit.Status, exit.Name)
	}
	return exit
}

// relay forwards one termination signal to every child that is still
// running. Relaying to an already-exited child is a no-op inside
// Process.Interrupt, which is exactly what we want: the signal may race with
// the exit.
func (s *Supervisor) relay(sig signalwatcher.Signal) {
	s.logger.Notice("Received %s, relaying to children", sig)
	s.metrics.Count("signal.relayed", 1, metrics.Tags{"signal": sig.String()})

	s.mu.Lock()
	children := append([]*child{}, s.children...)
	s.mu.Unlock()

	for _, c := range children {
		if err := c.proc.Interrupt(); err != nil {
			s.logger.Error("Failed to relay signal to %s: %v", c.name, err)
		}
	}
}

// childWriter labels each child's output lines, optionally with timestamps.
// Both children write to the same destination, so the final write goes
// through a shared lock to keep whole chunks together.
func (s *Supervisor) childWriter(name string) io.Writer {
	var w io.Writer = &lockedWriter{mu: &s.outMu, w: s.conf.Stdout}

	if s.conf.OutputBuffer != nil {
		w = io.MultiWriter(w, s.conf.OutputBuffer)
	}

	if s.conf.Timestamps {
		w = process.NewTimestamper(w, func(t time.Time) string {
			return t.Format("[2006-01-02 15:04:05] ")
		})
	}

	prefix := fmt.Sprintf("%-6s | ", name)
	return process.NewPrefixer(w, func() string { return prefix })
}
