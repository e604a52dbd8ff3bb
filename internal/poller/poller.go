// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package poller drives rainbow sessions over a live byte stream. One
// goroutine reads the stream and splits it into frames; the cycle loop
// writes requests, waits for frames and feeds them to the session.
package poller

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithListener adds a data listener.
func WithListener(l rainbow.Listener) Option {
	return func(p *Poller) { p.listeners = append(p.listeners, l) }
}

// WithObserver adds a traffic observer.
func WithObserver(o Observer) Option {
	return func(p *Poller) { p.observers = append(p.observers, o) }
}

// WithStatistics records traffic into stats.
func WithStatistics(stats *rainbow.Statistics) Option {
	return func(p *Poller) { p.stats = stats }
}

// Poller polls one station's table over one connection. It does not
// reconnect: a transport error ends Run.
type Poller struct {
	cfg   Config
	table *rainbow.Table
	conn  io.ReadWriter

	logger    *zap.Logger
	listeners []rainbow.Listener
	observers []Observer
	stats     *rainbow.Statistics
	limiter   *rate.Limiter

	readOnce sync.Once
	frames   chan []byte
	readErr  chan error
	quit     chan struct{}
	stopOnce sync.Once
}

// New creates a poller with immutable config. The poll table is built and
// validated here.
func New(cfg Config, conn io.ReadWriter, opts ...Option) (*Poller, error) {
	if conn == nil {
		return nil, errors.New("poller: connection required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.ResponseTimeout <= 0 {
		return nil, errors.New("poller: response timeout must be > 0")
	}
	if cfg.RequestGap < 0 {
		return nil, errors.New("poller: request gap must not be negative")
	}

	table, err := rainbow.BuildTable(cfg.Entries, cfg.Station)
	if err != nil {
		return nil, errors.Wrap(err, "poller")
	}

	p := &Poller{
		cfg:     cfg,
		table:   table,
		conn:    conn,
		logger:  zap.NewNop(),
		stats:   rainbow.NewStatistics(),
		limiter: rate.NewLimiter(rate.Inf, 1),
		frames:  make(chan []byte, 16),
		readErr: make(chan error, 1),
		quit:    make(chan struct{}),
	}
	if cfg.RequestGap > 0 {
		p.limiter = rate.NewLimiter(rate.Every(cfg.RequestGap), 1)
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, key := range table.Duplicates() {
		p.logger.Warn("duplicate poll entry, later entry receives its responses",
			zap.String("key", key.String()))
	}
	return p, nil
}

// Table returns the poll table.
func (p *Poller) Table() *rainbow.Table { return p.table }

// Statistics returns the traffic counters.
func (p *Poller) Statistics() *rainbow.Statistics { return p.stats }

// Stop ends the reader goroutine's delivery of frames. It does not close
// the connection; the owner does that.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
}

func (p *Poller) startReader() {
	p.readOnce.Do(func() { go p.readLoop() })
}

func (p *Poller) readLoop() {
	splitter := rainbow.NewSplitter(rainbow.MaxFrameLen)
	buf := make([]byte, 256)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			for _, frame := range splitter.Feed(buf[:n]) {
				select {
				case p.frames <- frame:
				case <-p.quit:
					return
				}
			}
		}
		if err != nil {
			select {
			case p.readErr <- err:
			default:
			}
			return
		}
	}
}

// drain discards frames left over from a previous cycle so a late
// response is not credited to the new one.
func (p *Poller) drain() {
	for {
		select {
		case raw := <-p.frames:
			p.logger.Debug("discarding late frame", zap.String("frame", rainbow.Sanitize(raw)))
		default:
			return
		}
	}
}

// RunCycle polls every entry once. A stalled cycle is reported in the
// result, not as an error; errors are reserved for the transport and ctx.
func (p *Poller) RunCycle(ctx context.Context) (CycleResult, error) {
	p.startReader()
	p.drain()

	listener := rainbow.MultiListener(append([]rainbow.Listener{p.debugListener()}, p.listeners...)...)
	session := rainbow.NewSessionFromTable(p.table, listener, p.cfg.StrictOrder)
	res := CycleResult{
		ID:      uuid.NewString(),
		Started: time.Now(),
	}
	log := p.logger.With(zap.String("cycle", res.ID))

	if session.State() == rainbow.StateIdle {
		res.Completed = true
		p.finish(log, &res)
		return res, nil
	}

	for {
		frame, _ := session.NextOutbound()
		entry, _ := session.Current()

		if err := p.limiter.Wait(ctx); err != nil {
			return res, err
		}
		n, err := p.conn.Write(frame)
		session.ConfirmSent(n)
		if err != nil {
			return res, errors.Wrapf(err, "write request for %s", entry.Label())
		}
		if session.State() != rainbow.StateResponsePending {
			return res, errors.Errorf("short write for %s: %d of %d bytes", entry.Label(), n, len(frame))
		}

		res.Requests++
		p.stats.RecordRequest()
		for _, o := range p.observers {
			o.OnRequest(res.ID, entry, frame)
		}
		log.Debug("request sent",
			zap.String("entry", entry.Label()),
			zap.String("frame", rainbow.Sanitize(frame)))

		sig, err := p.awaitResponse(ctx, log, session, &res)
		if err != nil {
			return res, err
		}
		switch sig {
		case rainbow.SignalStop:
			res.Completed = true
			p.finish(log, &res)
			return res, nil
		case rainbow.SignalIdle:
			// response timeout
			res.StalledIndex = session.Index()
			res.StalledEntry = entry
			p.finish(log, &res)
			return res, nil
		}
	}
}

// awaitResponse feeds frames to the session until it asks for the next
// write, stops, or the response timeout expires (reported as SignalIdle).
func (p *Poller) awaitResponse(ctx context.Context, log *zap.Logger, session *rainbow.Session, res *CycleResult) (rainbow.Signal, error) {
	timer := time.NewTimer(p.cfg.ResponseTimeout)
	defer timer.Stop()

	for {
		var raw []byte
		select {
		case <-ctx.Done():
			return rainbow.SignalIdle, ctx.Err()

		case err := <-p.readErr:
			// keep the error visible to later cycles
			p.readErr <- err
			// frames queued before the read failed are still answers
			select {
			case raw = <-p.frames:
			default:
				if errors.Is(err, io.EOF) {
					return rainbow.SignalIdle, errors.Wrap(err, "connection closed by peer")
				}
				return rainbow.SignalIdle, errors.Wrap(err, "read response")
			}

		case <-timer.C:
			entry, _ := session.Current()
			log.Warn("response timeout",
				zap.String("entry", entry.Label()),
				zap.Duration("timeout", p.cfg.ResponseTimeout))
			return rainbow.SignalIdle, nil

		case raw = <-p.frames:
		}

		sig, err := session.HandleResponse(raw, time.Now())
		p.stats.RecordResponse(err)
		for _, o := range p.observers {
			o.OnFrame(res.ID, raw, err)
		}
		if err != nil {
			res.Errors++
			log.Warn("response rejected",
				zap.String("kind", rainbow.ErrorKind(err)),
				zap.Error(err),
				zap.String("frame", rainbow.Sanitize(raw)))
			continue
		}
		res.Responses++
		if sig == rainbow.SignalStop || sig == rainbow.SignalWantWrite {
			return sig, nil
		}
	}
}

func (p *Poller) finish(log *zap.Logger, res *CycleResult) {
	res.Duration = time.Since(res.Started)
	p.stats.RecordCycle(res.Completed)
	for _, o := range p.observers {
		o.OnCycle(*res)
	}

	fields := []zap.Field{
		zap.String("result", res.Outcome()),
		zap.Int("requests", res.Requests),
		zap.Int("responses", res.Responses),
		zap.Int("errors", res.Errors),
		zap.Duration("duration", res.Duration),
	}
	if !res.Completed && res.Requests > 0 {
		fields = append(fields, zap.String("stalled", res.StalledEntry.Label()))
	}
	log.Info("poll cycle finished", fields...)
}

func (p *Poller) debugListener() rainbow.Listener {
	return rainbow.ListenerFunc(func(entry rainbow.CommandEntry, payload []byte, ts time.Time) {
		p.logger.Debug("data",
			zap.String("entry", entry.Label()),
			zap.String("payload", string(payload)),
			zap.Time("ts", ts))
	})
}

// Run polls until ctx is cancelled or the connection fails. The first
// cycle starts immediately and later ones on each interval tick; a cycle
// that overruns the interval delays the next rather than overlapping it.
func (p *Poller) Run(ctx context.Context) error {
	defer p.Stop()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
