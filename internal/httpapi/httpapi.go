// Package httpapi serves monitor snapshot and metrics over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"expvar"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/linescope/log2"
	"github.com/temoto/linescope/monitor"
)

type SnapshotSource interface {
	Snapshot() monitor.Snapshot
}

type Server struct {
	router   *mux.Router
	source   SnapshotSource
	gatherer prometheus.Gatherer
	log      *log2.Log
}

// gatherer may be nil, then /metrics serves default registry.
func New(source SnapshotSource, gatherer prometheus.Gatherer, log *log2.Log) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	self := &Server{
		router:   mux.NewRouter(),
		source:   source,
		gatherer: gatherer,
		log:      log,
	}
	self.setupRoutes()
	return self
}

func (self *Server) setupRoutes() {
	self.router.HandleFunc("/health", self.healthHandler).Methods("GET")
	self.router.HandleFunc("/snapshot", self.snapshotHandler).Methods("GET")
	self.router.Handle("/metrics", promhttp.HandlerFor(self.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	self.router.Handle("/debug/vars", expvar.Handler()).Methods("GET")
}

func (self *Server) Handler() http.Handler { return self.router }

func (self *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	self.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// snapshotHandler accepts optional tail=N to limit points to last N.
func (self *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap := self.source.Snapshot()
	if tailText := r.URL.Query().Get("tail"); tailText != "" {
		tail, err := strconv.Atoi(tailText)
		if err != nil || tail < 0 {
			http.Error(w, errors.NotValidf("tail=%q", tailText).Error(), http.StatusBadRequest)
			return
		}
		if tail < len(snap.Points) {
			snap.Points = snap.Points[len(snap.Points)-tail:]
		}
	}
	self.writeJSON(w, http.StatusOK, snap)
}

func (self *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		self.log.Errorf("http write err=%v", err)
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (self *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      self.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	errch := make(chan error, 1)
	self.log.Infof("http listen=%s", addr)
	go func() { errch <- srv.ListenAndServe() }()
	select {
	case err := <-errch:
		return errors.Annotatef(err, "http listen=%s", addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Annotate(err, "http shutdown")
	}
	return nil
}
