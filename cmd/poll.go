// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/rainbow/internal/config"
	"github.com/Thermoquad/rainbow/internal/httpserver"
	"github.com/Thermoquad/rainbow/internal/metrics"
	"github.com/Thermoquad/rainbow/internal/poller"
	"github.com/Thermoquad/rainbow/internal/sink"
	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

var (
	pollOnce      bool
	showRequests  bool
	pollStatsSecs int
)

// errCycleStalled makes `poll --once` exit non-zero without extra output.
var errCycleStalled = fmt.Errorf("poll cycle did not complete")

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll every configured device and print its data",
	Long: `Continuously poll the configured table, one request at a time.

Each validated response is printed with its entry name and payload. Rejected
frames are printed with the reason (checksum mismatch, wrong station, unknown
device, ...) and never advance the cycle. When a device does not answer
within the response timeout the cycle ends as stalled and the next cycle
starts again from the first entry.

With --once a single cycle is run; the exit status is 1 if it stalled.

When enabled in the configuration, Prometheus metrics and health endpoints
are served over HTTP and every payload is published to Redis.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().BoolVar(&pollOnce, "once", false, "Run a single poll cycle and exit")
	pollCmd.Flags().BoolVar(&showRequests, "show-requests", false, "Print every request frame")
	pollCmd.Flags().IntVar(&pollStatsSecs, "stats-interval", 0, "Print statistics every N seconds (0 disables)")
}

// printObserver prints traffic in the raw log format.
type printObserver struct {
	w            io.Writer
	showRequests bool
}

func (o *printObserver) OnRequest(_ string, entry rainbow.CommandEntry, frame []byte) {
	if o.showRequests {
		fmt.Fprint(o.w, rainbow.FormatRequest(entry, frame, time.Now()))
	}
}

func (o *printObserver) OnFrame(_ string, raw []byte, err error) {
	if err != nil {
		fmt.Fprint(o.w, rainbow.FormatError(raw, err, time.Now()))
	}
}

func (o *printObserver) OnCycle(res poller.CycleResult) {
	if !res.Completed && res.Requests > 0 {
		fmt.Fprintf(o.w, "[%s] STALL %s: no response within timeout\n",
			time.Now().Format("15:04:05.000"), res.StalledEntry.Label())
	}
}

// pollerConfig maps the file configuration onto the poller's.
func pollerConfig(cfg *config.Config) poller.Config {
	return poller.Config{
		Station:         cfg.StationAddress(),
		Entries:         cfg.Entries(),
		Interval:        cfg.PollInterval(),
		ResponseTimeout: cfg.ResponseTimeout,
		RequestGap:      cfg.RequestGap,
		StrictOrder:     cfg.StrictOrder,
	}
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rainbow - Poll\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Station: %03X, %d entries, every %s\n", cfg.StationAddress(), len(cfg.Commands), cfg.PollInterval())
	if !pollOnce {
		fmt.Fprintf(out, "Press Ctrl+C to exit\n")
	}
	fmt.Fprintln(out)

	stats := rainbow.NewStatistics()
	opts := []poller.Option{
		poller.WithLogger(logger),
		poller.WithStatistics(stats),
		poller.WithListener(rainbow.PrintListener(out)),
		poller.WithObserver(&printObserver{w: out, showRequests: showRequests}),
	}

	var cycling atomic.Bool
	opts = append(opts, poller.WithObserver(readyObserver{&cycling}))

	if cfg.Metrics.Enable {
		reg := metrics.NewRegistry()
		pm := metrics.NewPollMetrics(reg)
		pm.Entries.Set(float64(len(cfg.Commands)))
		opts = append(opts, poller.WithObserver(pm), poller.WithListener(pm))

		srv := httpserver.New(cfg.Metrics, httpserver.Options{
			MetricsHandler: metrics.Handler(reg),
			Ready:          cycling.Load,
			Status:         func() any { return stats.Snapshot() },
		})
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
	}

	if cfg.Redis.Enable {
		rdb, err := sink.Dial(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, poller.WithListener(sink.NewPublisher(rdb, cfg.Redis, cfg.StationAddress(), logger)))
		logger.Info("publishing to redis", zap.String("addr", cfg.Redis.Addr), zap.String("channel", cfg.Redis.Channel))
	}

	p, err := poller.New(pollerConfig(cfg), conn, opts...)
	if err != nil {
		return err
	}
	defer p.Stop()

	if pollOnce {
		res, err := p.RunCycle(ctx)
		if err != nil {
			return err
		}
		if !res.Completed {
			return errCycleStalled
		}
		return nil
	}

	if pollStatsSecs > 0 {
		go printStatistics(ctx, out, stats, time.Duration(pollStatsSecs)*time.Second)
	}

	err = p.Run(ctx)
	fmt.Fprintln(out)
	fmt.Fprint(out, stats.String())
	return err
}

// readyObserver flags readiness once a cycle has completed.
type readyObserver struct{ ready *atomic.Bool }

func (readyObserver) OnRequest(string, rainbow.CommandEntry, []byte) {}
func (readyObserver) OnFrame(string, []byte, error)                  {}
func (o readyObserver) OnCycle(res poller.CycleResult) {
	o.ready.Store(res.Completed)
}

func printStatistics(ctx context.Context, w io.Writer, stats *rainbow.Statistics, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintln(w)
			fmt.Fprint(w, stats.String())
			fmt.Fprintln(w)
		}
	}
}
