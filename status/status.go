// Package status provides a small local HTTP endpoint exposing what the
// supervisor and its children are doing. It reports the supervisor's own
// state only; the energy API itself is the server child's contract.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gridhome/energy-supervisor/logger"
	"github.com/gridhome/energy-supervisor/process"
	"github.com/gridhome/energy-supervisor/supervisor"
)

// Server serves the supervisor status page over HTTP on a local address.
type Server struct {
	logger logger.Logger
	addr   string
	sup    *supervisor.Supervisor
	out    *process.Buffer

	svr *http.Server
}

// NewServer returns a status server for the given supervisor. The out buffer
// holds captured child output for the output endpoint, and may be nil.
func NewServer(l logger.Logger, addr string, sup *supervisor.Supervisor, out *process.Buffer) *Server {
	return &Server{
		logger: l,
		addr:   addr,
		sup:    sup,
		out:    out,
	}
}

// Start begins listening in a background goroutine. Failure to serve is
// logged, not fatal: the status page is best effort and must never take the
// children down with it.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.svr = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Serving supervisor status on http://%s/status", ln.Addr().String())

	go func() {
		if err := s.svr.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server stopped with error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.svr == nil {
		return nil
	}
	return s.svr.Shutdown(ctx)
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(jsonHeadersMiddleware)

	r.Get("/healthz", s.getHealth)
	r.Get("/status", s.getStatus)
	r.Get("/output", s.getOutput)

	return r
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.sup.Snapshot()

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("Failed to encode status snapshot: %v", err)
	}
}

// getOutput returns the child output captured since the last call, then
// truncates the buffer, so pollers see each line once.
func (s *Server) getOutput(w http.ResponseWriter, r *http.Request) {
	if s.out == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(s.out.ReadAndTruncate())
}

func jsonHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
