// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides the byte streams a poller talks over: a TCP
// socket to a serial gateway, a local serial port, or a WebSocket bridge.
package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/Thermoquad/rainbow/internal/config"
)

// Connection is a bidirectional byte stream to the device bus.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// ErrConnectionClosed is returned when reading from a connection the peer
// or the host has closed.
var ErrConnectionClosed = fmt.Errorf("connection closed")

// Open dials the transport selected by cfg. password is only used for
// WebSocket basic auth. The returned description is for display.
func Open(ctx context.Context, cfg config.TransportConfig, password string) (Connection, string, error) {
	switch cfg.Kind {
	case config.TransportTCP:
		conn, err := DialTCP(ctx, cfg.Address, cfg.DialTimeout)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("TCP: %s", cfg.Address), nil

	case config.TransportSerial:
		conn, err := OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud), nil

	case config.TransportWebSocket:
		conn, err := DialWebSocket(ctx, cfg.WebSocket.URL, cfg.WebSocket.Username, password, cfg.WebSocket.Insecure, cfg.DialTimeout)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", cfg.WebSocket.URL), nil
	}

	return nil, "", errors.Errorf("unknown transport kind %q", cfg.Kind)
}
