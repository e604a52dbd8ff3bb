// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/rainbow/internal/config"
	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

type trimCall struct {
	key         string
	start, stop int64
}

type fakeClient struct {
	publishErr error
	pushErr    error

	published map[string][][]byte
	pushed    map[string][][]byte
	trims     []trimCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		published: make(map[string][][]byte),
		pushed:    make(map[string][][]byte),
	}
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.publishErr != nil {
		cmd.SetErr(f.publishErr)
		return cmd
	}
	f.published[channel] = append(f.published[channel], message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func (f *fakeClient) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.pushErr != nil {
		cmd.SetErr(f.pushErr)
		return cmd
	}
	for _, v := range values {
		f.pushed[key] = append(f.pushed[key], v.([]byte))
	}
	cmd.SetVal(int64(len(f.pushed[key])))
	return cmd
}

func (f *fakeClient) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	f.trims = append(f.trims, trimCall{key, start, stop})
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func redisConfig() config.RedisConfig {
	return config.RedisConfig{
		Enable:       true,
		Addr:         "localhost:6379",
		Channel:      "rainbow:data",
		HistoryLen:   50,
		WriteTimeout: time.Second,
	}
}

var entry = rainbow.CommandEntry{
	Name:     "inverter-1",
	Device:   0x001,
	Command:  0x006,
	Metadata: map[string]any{"site": "roof"},
}

func TestNewRecord(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	rec := NewRecord(0x3FF, entry, []byte("AB"), ts)

	assert.Equal(t, "inverter-1", rec.Name)
	assert.Equal(t, "3FF", rec.Station)
	assert.Equal(t, "001", rec.Device)
	assert.Equal(t, "006", rec.Command)
	assert.Equal(t, "AB", rec.Payload)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
	assert.Equal(t, "roof", rec.Metadata["site"])
}

func TestHistoryKey(t *testing.T) {
	assert.Equal(t, "rainbow:001:006:history", HistoryKey(entry))
	assert.Equal(t, "rainbow:ABC:FFF:history", HistoryKey(rainbow.CommandEntry{Device: 0xABC, Command: 0xFFF}))
}

func TestOnData_PublishesAndKeepsHistory(t *testing.T) {
	client := newFakeClient()
	p := NewPublisher(client, redisConfig(), 0x3FF, nil)

	p.OnData(entry, []byte("ABCD"), time.Now())

	require.Len(t, client.published["rainbow:data"], 1)
	var rec Record
	require.NoError(t, json.Unmarshal(client.published["rainbow:data"][0], &rec))
	assert.Equal(t, "ABCD", rec.Payload)
	assert.Equal(t, "001", rec.Device)

	key := HistoryKey(entry)
	require.Len(t, client.pushed[key], 1)
	assert.Equal(t, []trimCall{{key, 0, 49}}, client.trims)

	assert.Equal(t, uint64(1), p.Published())
	assert.Equal(t, uint64(0), p.Failed())
}

func TestOnData_NoHistory(t *testing.T) {
	client := newFakeClient()
	cfg := redisConfig()
	cfg.HistoryLen = 0
	p := NewPublisher(client, cfg, 0x3FF, nil)

	p.OnData(entry, []byte("AB"), time.Now())

	assert.Len(t, client.published["rainbow:data"], 1)
	assert.Empty(t, client.pushed)
	assert.Empty(t, client.trims)
}

func TestOnData_PublishFailureIsCounted(t *testing.T) {
	client := newFakeClient()
	client.publishErr = errors.New("connection refused")
	p := NewPublisher(client, redisConfig(), 0x3FF, nil)

	assert.NotPanics(t, func() { p.OnData(entry, []byte("AB"), time.Now()) })
	assert.Equal(t, uint64(0), p.Published())
	assert.Equal(t, uint64(1), p.Failed())
	assert.Empty(t, client.pushed)
}

func TestPublish_HistoryFailureIsNotFatal(t *testing.T) {
	client := newFakeClient()
	client.pushErr = errors.New("WRONGTYPE")
	p := NewPublisher(client, redisConfig(), 0x3FF, nil)

	err := p.Publish(context.Background(), NewRecord(0x3FF, entry, []byte("AB"), time.Now()))
	require.NoError(t, err)
	assert.Len(t, client.published["rainbow:data"], 1)
	assert.Empty(t, client.trims)
}

func TestDial_Unreachable(t *testing.T) {
	cfg := redisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := Dial(context.Background(), cfg)
	assert.Error(t, err)
}
