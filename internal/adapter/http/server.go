package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/noise-telemetry-service/internal/producer"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Simulator is the lifecycle facade the realtime API drives.
type Simulator interface {
	Start(ctx context.Context) producer.Status
	Stop(ctx context.Context) producer.Status
	Status(ctx context.Context) producer.Status
	Subscribe() *producer.Stream
}

// Server exposes health, metrics, and the realtime simulation API.
type Server struct {
	httpServer *http.Server
	sim        Simulator
	logger     *slog.Logger

	// Cancelling baseCtx ends every open event stream.
	baseCtx       context.Context
	cancelStreams context.CancelFunc
	streams       sync.WaitGroup
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/realtime routes.
func NewServer(addr string, sim Simulator, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			BaseContext:  func(net.Listener) context.Context { return baseCtx },
		},
		sim:           sim,
		logger:        logger,
		baseCtx:       baseCtx,
		cancelStreams: cancel,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/realtime/start", s.handleStart)
	mux.HandleFunc("POST /api/realtime/stop", s.handleStop)
	mux.HandleFunc("GET /api/realtime/status", s.handleStatus)
	mux.HandleFunc("GET /api/realtime/stream", s.handleStream)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln. Returns http.ErrServerClosed on graceful
// shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server starting", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown cancels open event streams, then drains connections within the
// given context deadline. It returns once every stream handler has returned,
// or with an error when ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelStreams()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	drained := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event streams still open: %w", ctx.Err())
	}
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Start(r.Context()))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Stop(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Status(r.Context()))
}

// handleStream pushes one Server-Sent Event per stream batch until the client
// disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.streams.Add(1)
	defer s.streams.Done()

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Error("event stream not supported", "error", err)
		return
	}

	s.logger.Info("event stream opened", "remote", r.RemoteAddr)
	defer s.logger.Info("event stream closed", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	for batch := range s.sim.Subscribe().Batches(ctx) {
		data, err := json.Marshal(batch)
		if err != nil {
			s.logger.Error("encode stream batch failed", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
