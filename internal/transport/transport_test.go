// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/rainbow/internal/config"
)

func echoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				_, _ = io.Copy(c, c)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestDialTCP_Echo(t *testing.T) {
	addr := echoServer(t)

	conn, err := DialTCP(context.Background(), addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	frame := []byte("@0013FF0060000044*\r\n")
	n, err := conn.Write(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), n)

	got := make([]byte, len(frame))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestDialTCP_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = DialTCP(context.Background(), addr, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestTCPConnection_ReadAfterClose(t *testing.T) {
	conn, err := DialTCP(context.Background(), echoServer(t), time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, err = conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestOpen_TCP(t *testing.T) {
	addr := echoServer(t)

	conn, info, err := Open(context.Background(), config.TransportConfig{
		Kind:        config.TransportTCP,
		Address:     addr,
		DialTimeout: time.Second,
	}, "")
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "TCP: "+addr, info)
}

func TestOpen_UnknownKind(t *testing.T) {
	_, _, err := Open(context.Background(), config.TransportConfig{Kind: "udp"}, "")
	assert.Error(t, err)
}

func TestOpenSerial_MissingPort(t *testing.T) {
	_, err := OpenSerial("/dev/does-not-exist-rainbow", 9600)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/does-not-exist-rainbow")
}

func TestSerialMode(t *testing.T) {
	mode := SerialMode(19200)
	assert.Equal(t, 19200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
}

var upgrader = websocket.Upgrader{}

func wsEchoServer(t *testing.T, wantAuth string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantAuth != "" && r.Header.Get("Authorization") != wantAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			// answer with a text frame split in two messages
			half := len(data) / 2
			_ = c.WriteMessage(websocket.TextMessage, data[:half])
			_ = c.WriteMessage(mt, data[half:])
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialWebSocket_Echo(t *testing.T) {
	url := wsEchoServer(t, "")

	conn, err := DialWebSocket(context.Background(), url, "", "", false, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	frame := []byte("@0013FF0060000044*\r\n")
	n, err := conn.Write(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), n)

	got := make([]byte, len(frame))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestDialWebSocket_BasicAuth(t *testing.T) {
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	url := wsEchoServer(t, auth)

	conn, err := DialWebSocket(context.Background(), url, "admin", "secret", false, time.Second)
	require.NoError(t, err)
	conn.Close()

	_, err = DialWebSocket(context.Background(), url, "admin", "wrong", false, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestDialWebSocket_BadScheme(t *testing.T) {
	_, err := DialWebSocket(context.Background(), "http://localhost/ws", "", "", false, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}

func TestWebSocketConnection_ReadAfterServerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
	}))
	defer srv.Close()

	conn, err := DialWebSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), "", "", false, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrConnectionClosed)

	_, err = conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}
