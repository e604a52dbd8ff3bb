// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Counters is a point-in-time copy of the statistics.
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Totals
	RequestsSent    uint64
	FramesReceived  uint64
	ValidResponses  uint64
	FrameErrors     uint64
	DispatchErrors  uint64
	CyclesCompleted uint64
	CyclesStalled   uint64
	ErrorsByKind    map[string]uint64

	// Rates (calculated)
	ResponseRate float64 // responses/sec
	ErrorRate    float64 // errors/sec
}

// Statistics tracks poll traffic and error rates. Safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{Counters: Counters{
		StartTime:      now,
		LastUpdateTime: now,
		ErrorsByKind:   make(map[string]uint64),
	}}
}

// RecordRequest counts a request written to the transport.
func (s *Statistics) RecordRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RequestsSent++
	s.LastUpdateTime = time.Now()
}

// RecordResponse counts one inbound frame and the result of handling it.
func (s *Statistics) RecordResponse(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FramesReceived++
	s.LastUpdateTime = time.Now()
	if err == nil {
		s.ValidResponses++
		return
	}

	s.ErrorsByKind[ErrorKind(err)]++
	if IsFrameError(err) {
		s.FrameErrors++
	} else {
		s.DispatchErrors++
	}
}

// RecordCycle counts a finished cycle.
func (s *Statistics) RecordCycle(completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if completed {
		s.CyclesCompleted++
	} else {
		s.CyclesStalled++
	}
	s.LastUpdateTime = time.Now()
}

// Snapshot returns a copy of the current counters with rates calculated.
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	kinds := make(map[string]uint64, len(s.ErrorsByKind))
	for k, v := range s.ErrorsByKind {
		kinds[k] = v
	}
	return Counters{
		StartTime:       s.StartTime,
		LastUpdateTime:  s.LastUpdateTime,
		RequestsSent:    s.RequestsSent,
		FramesReceived:  s.FramesReceived,
		ValidResponses:  s.ValidResponses,
		FrameErrors:     s.FrameErrors,
		DispatchErrors:  s.DispatchErrors,
		CyclesCompleted: s.CyclesCompleted,
		CyclesStalled:   s.CyclesStalled,
		ErrorsByKind:    kinds,
		ResponseRate:    s.ResponseRate,
		ErrorRate:       s.ErrorRate,
	}
}

// CalculateRates calculates response and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ResponseRate = float64(s.ValidResponses) / elapsed
		s.ErrorRate = float64(s.FrameErrors+s.DispatchErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var validPercent, errorPercent float64
	if snap.FramesReceived > 0 {
		validPercent = float64(snap.ValidResponses) * 100.0 / float64(snap.FramesReceived)
		errorPercent = float64(snap.FrameErrors+snap.DispatchErrors) * 100.0 / float64(snap.FramesReceived)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Requests Sent:   %8d\n", snap.RequestsSent)
	result += fmt.Sprintf("Frames Received: %8d\n", snap.FramesReceived)
	result += fmt.Sprintf("Valid Responses: %8d (%.1f%%)\n", snap.ValidResponses, validPercent)

	if snap.FrameErrors+snap.DispatchErrors > 0 {
		result += fmt.Sprintf("Errors:          %8d (%.1f%%)\n", snap.FrameErrors+snap.DispatchErrors, errorPercent)
		kinds := make([]string, 0, len(snap.ErrorsByKind))
		for k := range snap.ErrorsByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			result += fmt.Sprintf("  %-22s %5d\n", k+":", snap.ErrorsByKind[k])
		}
	}

	result += fmt.Sprintf("Cycles Complete: %8d\n", snap.CyclesCompleted)
	if snap.CyclesStalled > 0 {
		result += fmt.Sprintf("Cycles Stalled:  %8d\n", snap.CyclesStalled)
	}
	result += fmt.Sprintf("Response Rate:   %8.1f resp/sec\n", snap.ResponseRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.RequestsSent = 0
	s.FramesReceived = 0
	s.ValidResponses = 0
	s.FrameErrors = 0
	s.DispatchErrors = 0
	s.CyclesCompleted = 0
	s.CyclesStalled = 0
	s.ErrorsByKind = make(map[string]uint64)
	s.ResponseRate = 0
	s.ErrorRate = 0
}
