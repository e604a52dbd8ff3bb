// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package poller

import (
	"time"

	"github.com/Thermoquad/rainbow/pkg/rainbow"
)

// Config is the runtime config the poller needs.
type Config struct {
	Station  uint16
	Entries  []rainbow.CommandEntry
	Interval time.Duration

	// ResponseTimeout bounds the wait for each response. When it expires
	// the cycle ends as stalled; nothing is resent.
	ResponseTimeout time.Duration

	// RequestGap is the minimum spacing between request writes. Zero
	// means no pacing.
	RequestGap time.Duration

	StrictOrder bool
}

// CycleResult summarises one pass over the poll table.
type CycleResult struct {
	ID       string
	Started  time.Time
	Duration time.Duration

	// Completed is true when every entry was answered and the session
	// wrapped back to the first entry.
	Completed bool

	Requests  int
	Responses int
	Errors    int

	// StalledEntry is the entry that never got a valid response when
	// Completed is false.
	StalledIndex int
	StalledEntry rainbow.CommandEntry
}

// Outcome is "complete" or "stalled", for logs and metric labels.
func (r CycleResult) Outcome() string {
	if r.Completed {
		return "complete"
	}
	return "stalled"
}

// Observer sees poll traffic as it happens. Calls are made from the
// goroutine running the cycle and must not block.
type Observer interface {
	OnRequest(cycleID string, entry rainbow.CommandEntry, frame []byte)
	OnFrame(cycleID string, raw []byte, err error)
	OnCycle(result CycleResult)
}
