// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Thermoquad/rainbow/internal/config"
)

// Server exposes health, readiness, status and metrics endpoints.
type Server struct {
	srv *http.Server
}

// Options wires the server to the running poller.
type Options struct {
	MetricsHandler http.Handler
	// Ready reports whether the poller is connected and cycling.
	Ready func() bool
	// Status returns a JSON-serialisable view of poll statistics.
	Status func() any
}

// New creates the gin engine and HTTP server.
func New(cfg config.MetricsConfig, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if opts.Ready == nil || opts.Ready() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if opts.Status != nil {
		r.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, opts.Status())
		})
	}

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	if opts.MetricsHandler != nil {
		r.GET(path, gin.WrapH(opts.MetricsHandler))
	}

	return &Server{srv: &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
