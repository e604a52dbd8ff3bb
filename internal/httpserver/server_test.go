// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/rainbow/internal/config"
	"github.com/Thermoquad/rainbow/internal/metrics"
)

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestEndpoints(t *testing.T) {
	reg := metrics.NewRegistry()
	srv := New(config.MetricsConfig{Addr: ":0", Path: "/metrics"}, Options{
		MetricsHandler: metrics.Handler(reg),
		Ready:          func() bool { return true },
		Status:         func() any { return map[string]int{"cycles": 3} },
	})

	assert.Equal(t, http.StatusOK, get(srv, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(srv, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(srv, "/metrics").Code)

	rr := get(srv, "/status")
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 3, body["cycles"])
}

func TestReadyzNotReady(t *testing.T) {
	srv := New(config.MetricsConfig{Addr: ":0"}, Options{Ready: func() bool { return false }})

	assert.Equal(t, http.StatusServiceUnavailable, get(srv, "/readyz").Code)
	assert.Equal(t, http.StatusNotFound, get(srv, "/status").Code)
	assert.Equal(t, http.StatusNotFound, get(srv, "/metrics").Code)
}
