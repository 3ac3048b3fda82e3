package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/fargate-tools/ecs-metrics-exporter/internal/metrics"
	"github.com/fargate-tools/ecs-metrics-exporter/internal/transport"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the metrics, passthrough and health endpoints
type Server struct {
	Addr      string
	Fetcher   transport.MetadataFetcher
	Collector *metrics.Collector

	httpServer *http.Server
}

// New creates a server that scrapes through the given fetcher
func New(addr string, fetcher transport.MetadataFetcher, namespace string) *Server {
	s := &Server{
		Addr:    addr,
		Fetcher: fetcher,
		Collector: &metrics.Collector{
			Fetcher:   fetcher,
			Namespace: namespace,
		},
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /task", s.handleRaw(transport.TaskPath))
	mux.HandleFunc("GET /stats", s.handleRaw(transport.StatsPath))

	healthHandler := &healthz.Handler{Checks: map[string]healthz.Checker{
		"ping": healthz.Ping,
	}}
	readyHandler := &healthz.Handler{Checks: map[string]healthz.Checker{
		"metadata": s.metadataReachable,
	}}
	mux.Handle("/healthz", http.StripPrefix("/healthz", healthHandler))
	mux.Handle("/healthz/", http.StripPrefix("/healthz", healthHandler))
	mux.Handle("/readyz", http.StripPrefix("/readyz", readyHandler))
	mux.Handle("/readyz/", http.StripPrefix("/readyz", readyHandler))

	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("server")

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}

	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics", "addr", listener.Addr().String())
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context()).WithName("server")

	body, err := s.Collector.Scrape(r.Context())
	if err != nil {
		logger.Error(err, "Failed to render metrics")
		http.Error(w, "failed to render metrics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", metrics.ContentType)
	if _, err := w.Write(body); err != nil {
		logger.V(1).Info("Failed to write metrics response", "error", err.Error())
	}
}

// handleRaw proxies one metadata document verbatim
func (s *Server) handleRaw(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.FromContext(r.Context()).WithName("server")

		raw, err := s.Fetcher.FetchRaw(r.Context(), path)
		if err != nil {
			logger.Error(err, "Failed to fetch metadata document", "path", path, "kind", metrics.ErrorKind(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, raw)
	}
}

func (s *Server) metadataReachable(req *http.Request) error {
	if _, err := s.Fetcher.FetchRaw(req.Context(), transport.TaskPath); err != nil {
		return fmt.Errorf("metadata endpoint not reachable: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
