// Package balancer wires the registry, probe loop, backend and client
// channels, assignment log, admin console, and metrics HTTP server
// together into a running server.
package balancer

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/pranshu258/linebalancer/internal/admin"
	"github.com/pranshu258/linebalancer/internal/assignlog"
	"github.com/pranshu258/linebalancer/internal/backendchannel"
	"github.com/pranshu258/linebalancer/internal/clientchannel"
	"github.com/pranshu258/linebalancer/internal/config"
	"github.com/pranshu258/linebalancer/internal/contracts"
	"github.com/pranshu258/linebalancer/internal/metrics"
	"github.com/pranshu258/linebalancer/internal/probe"
	"github.com/pranshu258/linebalancer/internal/registry"
)

// Server owns every balancer component and their lifecycle.
type Server struct {
	cfg *config.Config

	Registry  *registry.Registry
	AssignLog *assignlog.Log
	Metrics   *metrics.Metrics
	Probes    *probe.Loop

	backendCh *backendchannel.Channel
	clientCh  *clientchannel.Channel
	console   *admin.Console
}

// New constructs a Server from configuration. It performs no I/O.
func New(ctx context.Context, cfg *config.Config) *Server {
	reg := registry.New()

	if mode, ok := contracts.ParseMode(cfg.DefaultMode); ok {
		reg.SetDefaultMode(mode)
	} else {
		log.Printf("balancer: invalid DEFAULT_MODE %q, keeping static", cfg.DefaultMode)
	}
	reg.SetPingInterval(cfg.PingIntervalMs)

	m := metrics.New()
	al := assignlog.New()
	pl := probe.New(reg, m, log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds))

	s := &Server{
		cfg:       cfg,
		Registry:  reg,
		AssignLog: al,
		Metrics:   m,
		Probes:    pl,
		backendCh: backendchannel.New(reg, log.New(os.Stdout, "[backendchan] ", log.LstdFlags|log.Lmicroseconds)),
		clientCh:  clientchannel.New(reg, al, m, log.New(os.Stdout, "[clientchan] ", log.LstdFlags|log.Lmicroseconds)),
	}
	s.console = admin.New(ctx, reg, al, pl, log.New(os.Stdout, "[admin] ", log.LstdFlags|log.Lmicroseconds), os.Stdout)
	return s
}

// Run starts every background component and blocks serving the admin
// console on stdin until stdin hits EOF or a read error; cancelling ctx
// stops the probe loop but does not end Run. Listener bind failures are
// returned as errors.
func (s *Server) Run(ctx context.Context) error {
	clientLn, err := net.Listen("tcp", s.cfg.ClientAddr)
	if err != nil {
		return fmt.Errorf("balancer: bind client channel: %w", err)
	}
	backendLn, err := net.Listen("tcp", s.cfg.BackendAddr)
	if err != nil {
		clientLn.Close()
		return fmt.Errorf("balancer: bind backend channel: %w", err)
	}

	go func() {
		if err := s.clientCh.Serve(clientLn); err != nil {
			log.Printf("clientchannel: accept loop stopped: %v", err)
		}
	}()
	go func() {
		if err := s.backendCh.Serve(backendLn); err != nil {
			log.Printf("backendchannel: accept loop stopped: %v", err)
		}
	}()

	s.Probes.Start(ctx)

	if s.cfg.AdminMetricsAddr != "" {
		go s.serveMetricsHTTP()
	}

	log.Printf("balancer listening: clients=%s backends=%s ping=%dms default_mode=%s metrics=%s",
		s.cfg.ClientAddr, s.cfg.BackendAddr, s.cfg.PingIntervalMs, s.cfg.DefaultMode, s.cfg.AdminMetricsAddr)

	s.console.Run(os.Stdin)
	return nil
}

// serveMetricsHTTP serves the ambient /metrics and /healthz endpoints.
// This surface carries no balancer semantics.
func (s *Server) serveMetricsHTTP() {
	r := mux.NewRouter()
	r.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		snap := s.Registry.Snapshot()
		s.Metrics.RegistrySize.Set(float64(len(snap.Entries)))
		live := 0
		for _, e := range snap.Entries {
			live += e.LiveCount()
		}
		s.Metrics.LiveClientsTotal.Set(float64(live))
		s.Metrics.Handler().ServeHTTP(w, req)
	}).Methods("GET")
	r.HandleFunc("/healthz", s.healthz).Methods("GET")

	log.Printf("metrics/healthz listening on %s", s.cfg.AdminMetricsAddr)
	if err := http.ListenAndServe(s.cfg.AdminMetricsAddr, r); err != nil {
		log.Printf("metrics server stopped: %v", err)
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	snap := s.Registry.Snapshot()
	s.Metrics.RegistrySize.Set(float64(len(snap.Entries)))
	live := 0
	for _, e := range snap.Entries {
		live += e.LiveCount()
	}
	s.Metrics.LiveClientsTotal.Set(float64(live))

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "ok backends=%d live_clients=%d\n", len(snap.Entries), live)
}
