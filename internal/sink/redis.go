// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink forwards dispatched payloads to Redis: each record is
// published on a channel and kept in a bounded per-entry history list.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Thermoquad/rainbow/internal/config"
	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

// Client is the subset of the go-redis client the sink uses.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// Record is the JSON document published for each payload.
type Record struct {
	Name      string         `json:"name"`
	Station   string         `json:"station"`
	Device    string         `json:"device"`
	Command   string         `json:"command"`
	Payload   string         `json:"payload"`
	Timestamp time.Time      `json:"ts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewRecord builds the record for one delivery.
func NewRecord(station uint16, entry rainbow.CommandEntry, payload []byte, ts time.Time) Record {
	return Record{
		Name:      entry.Label(),
		Station:   fmt.Sprintf("%03X", station),
		Device:    fmt.Sprintf("%03X", entry.Device),
		Command:   fmt.Sprintf("%03X", entry.Command),
		Payload:   string(payload),
		Timestamp: ts.UTC(),
		Metadata:  entry.Metadata,
	}
}

// Publisher is a rainbow.Listener that forwards payloads to Redis.
// Failures are logged and counted; they never stop the poll.
type Publisher struct {
	client     Client
	channel    string
	historyLen int64
	station    uint16
	timeout    time.Duration
	logger     *zap.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

var _ rainbow.Listener = (*Publisher)(nil)

// NewPublisher wraps an existing client.
func NewPublisher(client Client, cfg config.RedisConfig, station uint16, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Publisher{
		client:     client,
		channel:    cfg.Channel,
		historyLen: cfg.HistoryLen,
		station:    station,
		timeout:    timeout,
		logger:     logger,
	}
}

// Dial connects to Redis and checks the connection with PING.
func Dial(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "redis ping %s", cfg.Addr)
	}
	return rdb, nil
}

// HistoryKey is the list holding recent records for an entry.
func HistoryKey(entry rainbow.CommandEntry) string {
	return historyKey(fmt.Sprintf("%03X", entry.Device), fmt.Sprintf("%03X", entry.Command))
}

func historyKey(device, command string) string {
	return "rainbow:" + device + ":" + command + ":history"
}

// OnData implements rainbow.Listener.
func (p *Publisher) OnData(entry rainbow.CommandEntry, payload []byte, ts time.Time) {
	if err := p.Publish(context.Background(), NewRecord(p.station, entry, payload, ts)); err != nil {
		p.failed.Add(1)
		p.logger.Warn("redis publish failed", zap.String("entry", entry.Label()), zap.Error(err))
		return
	}
	p.published.Add(1)
}

// Publish sends rec to the channel and appends it to the entry history.
func (p *Publisher) Publish(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", p.channel)
	}

	if p.historyLen > 0 {
		key := historyKey(rec.Device, rec.Command)
		if err := p.client.LPush(ctx, key, data).Err(); err != nil {
			p.logger.Warn("redis history push failed", zap.String("key", key), zap.Error(err))
			return nil
		}
		if err := p.client.LTrim(ctx, key, 0, p.historyLen-1).Err(); err != nil {
			p.logger.Warn("redis history trim failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// Published returns the number of records sent.
func (p *Publisher) Published() uint64 { return p.published.Load() }

// Failed returns the number of records that could not be sent.
func (p *Publisher) Failed() uint64 { return p.failed.Load() }
