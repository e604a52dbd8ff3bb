// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

// TCPConnection wraps a TCP socket to a serial-to-Ethernet gateway.
type TCPConnection struct {
	conn net.Conn
}

// DialTCP connects to address (host:port). A zero timeout waits as long as
// ctx allows.
func DialTCP(ctx context.Context, address string, timeout time.Duration) (*TCPConnection, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", address)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// requests are tiny and latency matters more than batching
		_ = tc.SetNoDelay(true)
	}
	return &TCPConnection{conn: conn}, nil
}

func (t *TCPConnection) Read(p []byte) (int, error) {
	n, err := t.conn.Read(p)
	if err != nil && errors.Is(err, net.ErrClosed) {
		return n, ErrConnectionClosed
	}
	return n, err
}

func (t *TCPConnection) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *TCPConnection) Close() error {
	return t.conn.Close()
}

// RemoteAddr returns the gateway address.
func (t *TCPConnection) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
