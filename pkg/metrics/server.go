// HTTP server exposing the feeder's metrics for Prometheus scraping,
// plus /health and /ready probes for a container orchestrator.
//
//	srv := metrics.NewMetricsServer(metrics.GlobalMetrics(), ":9100")
//	go srv.Start()
//	defer srv.Shutdown(context.Background())
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// MetricsServer serves the feeder's metrics registry over HTTP.
type MetricsServer struct {
	fm   *FeedMetrics
	addr string

	server *http.Server
	mux    *http.ServeMux

	username string
	password string

	mu        sync.RWMutex
	running   bool
	startTime time.Time
}

// MetricsServerConfig controls the listen address, optional basic-auth
// credentials, and HTTP timeouts for a MetricsServer.
type MetricsServerConfig struct {
	Address string

	Username string
	Password string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultMetricsServerConfig listens on :9100 with no auth and 10s
// read/write timeouts.
func DefaultMetricsServerConfig() MetricsServerConfig {
	return MetricsServerConfig{
		Address:      ":9100",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// NewMetricsServer creates a server on addr with DefaultMetricsServerConfig's
// timeouts and no authentication.
func NewMetricsServer(fm *FeedMetrics, addr string) *MetricsServer {
	config := DefaultMetricsServerConfig()
	config.Address = addr
	return NewMetricsServerWithConfig(fm, config)
}

// NewMetricsServerWithConfig creates a server with an explicit config.
func NewMetricsServerWithConfig(fm *FeedMetrics, config MetricsServerConfig) *MetricsServer {
	ms := &MetricsServer{
		fm:       fm,
		addr:     config.Address,
		mux:      http.NewServeMux(),
		username: config.Username,
		password: config.Password,
	}

	ms.mux.HandleFunc("/metrics", ms.handleMetrics)
	ms.mux.HandleFunc("/health", ms.handleHealth)
	ms.mux.HandleFunc("/ready", ms.handleReady)
	ms.mux.HandleFunc("/", ms.handleRoot)

	ms.server = &http.Server{
		Addr:         config.Address,
		Handler:      ms.mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return ms
}

// Start runs the server until it is shut down or fails to bind. It
// blocks; callers wanting a background server should use StartAsync.
func (ms *MetricsServer) Start() error {
	ms.mu.Lock()
	ms.running = true
	ms.startTime = time.Now()
	ms.mu.Unlock()

	err := ms.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine, returning a channel that receives
// at most one error (nil on a clean shutdown) before being closed.
func (ms *MetricsServer) StartAsync() chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := ms.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// to finish or ctx to expire.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	ms.mu.Lock()
	ms.running = false
	ms.mu.Unlock()

	return ms.server.Shutdown(ctx)
}

// IsRunning reports whether Start has been called and Shutdown has not.
func (ms *MetricsServer) IsRunning() bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.running
}

// GetAddress returns the configured listen address.
func (ms *MetricsServer) GetAddress() string {
	return ms.addr
}

// GetStatus returns a diagnostics snapshot: address, running state, and
// uptime in seconds if running.
func (ms *MetricsServer) GetStatus() map[string]any {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	status := map[string]any{
		"address": ms.addr,
		"running": ms.running,
	}
	if ms.running {
		status["uptime"] = time.Since(ms.startTime).Seconds()
	}
	return status
}
