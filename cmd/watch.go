// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rainbow/internal/logging"
	"github.com/Thermoquad/rainbow/internal/poller"
	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll devices in a terminal UI",
	Long: `Poll the configured table and show it live in a terminal UI.

Every entry is listed with its latest payload, how long ago it arrived, and
how many responses and stalls it has seen. Rejected frames and stalled cycles
are shown in the event log along with running statistics.

Log output is suppressed on the terminal while the UI runs; configure
logging.file.filename to keep it.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// teaSink forwards poll traffic to the TUI program.
type teaSink struct {
	p *tea.Program
}

func (t teaSink) OnRequest(string, rainbow.CommandEntry, []byte) {}

func (t teaSink) OnFrame(_ string, raw []byte, err error) {
	if err != nil {
		t.p.Send(frameErrorMsg{raw: append([]byte(nil), raw...), err: err, ts: time.Now()})
	}
}

func (t teaSink) OnCycle(res poller.CycleResult) {
	t.p.Send(cycleMsg{result: res})
}

func (t teaSink) OnData(entry rainbow.CommandEntry, payload []byte, ts time.Time) {
	t.p.Send(dataMsg{entry: entry, payload: append([]byte(nil), payload...), ts: ts})
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewWithWriter(cfg.Logging, io.Discard)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	conn, connInfo, err := OpenConnection(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	stats := rainbow.NewStatistics()
	pc := pollerConfig(cfg)
	pt, err := rainbow.BuildTable(pc.Entries, pc.Station)
	if err != nil {
		return err
	}

	prog := tea.NewProgram(newWatchModel(connInfo, pt, pc.Interval, stats))
	sink := teaSink{p: prog}

	p, err := poller.New(pc, conn,
		poller.WithLogger(logger),
		poller.WithStatistics(stats),
		poller.WithListener(sink),
		poller.WithObserver(sink),
	)
	if err != nil {
		return err
	}

	go func() {
		err := p.Run(ctx)
		prog.Send(pollDoneMsg{err: err})
	}()

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
