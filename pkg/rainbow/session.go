// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import (
	"fmt"
	"time"
)

// State is the position of a Session in its poll cycle.
type State int

const (
	StateIdle State = iota
	StateSendPending
	StateResponsePending
	StateCycleDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSendPending:
		return "SEND_PENDING"
	case StateResponsePending:
		return "RESPONSE_PENDING"
	case StateCycleDone:
		return "CYCLE_DONE"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Signal tells the host what the session wants next.
type Signal int

const (
	// SignalIdle: nothing to send, keep waiting for input.
	SignalIdle Signal = iota
	// SignalWantWrite: a request is ready in NextOutbound.
	SignalWantWrite
	// SignalStop: the cycle is complete; the host should end it.
	SignalStop
)

func (s Signal) String() string {
	switch s {
	case SignalIdle:
		return "IDLE"
	case SignalWantWrite:
		return "WANT_WRITE"
	case SignalStop:
		return "STOP"
	default:
		return fmt.Sprintf("SIGNAL(%d)", int(s))
	}
}

// SessionOptions configures a Session.
type SessionOptions struct {
	Station  uint16
	Entries  []CommandEntry
	Listener Listener

	// StrictOrder rejects a valid response whose key differs from the
	// outstanding entry with ErrUnexpectedResponse instead of attributing
	// it through the registry.
	StrictOrder bool
}

// Session walks the poll table once: send a request, wait for the matching
// response, dispatch it, advance. It does no I/O. A session is not safe for
// concurrent use; the host drives it from a single goroutine.
type Session struct {
	table    *Table
	listener Listener
	strict   bool

	state State
	index int
}

// NewSession builds the poll table and returns a session positioned at the
// first entry. An empty table yields a session that stays Idle.
func NewSession(opts SessionOptions) (*Session, error) {
	table, err := BuildTable(opts.Entries, opts.Station)
	if err != nil {
		return nil, err
	}
	return NewSessionFromTable(table, opts.Listener, opts.StrictOrder), nil
}

// NewSessionFromTable starts a session over a table that was already built.
// Tables are immutable so one may back any number of sessions.
func NewSessionFromTable(table *Table, listener Listener, strict bool) *Session {
	s := &Session{
		table:    table,
		listener: listener,
		strict:   strict,
		state:    StateIdle,
	}
	if table.Len() > 0 {
		s.state = StateSendPending
	}
	return s
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Index returns the position of the entry being polled.
func (s *Session) Index() int { return s.index }

// Len returns the number of entries in the poll table.
func (s *Session) Len() int { return s.table.Len() }

// Station returns the station address requests are sent from.
func (s *Session) Station() uint16 { return s.table.Station() }

// Table returns the poll table backing the session.
func (s *Session) Table() *Table { return s.table }

// Done reports whether the cycle has completed.
func (s *Session) Done() bool { return s.state == StateCycleDone }

// Current returns the entry being polled, if any.
func (s *Session) Current() (CommandEntry, bool) {
	if s.state == StateIdle || s.state == StateCycleDone {
		return CommandEntry{}, false
	}
	return s.table.Entry(s.index), true
}

// NextOutbound returns the request for the current entry. It is also
// returned while the response is pending so the host may resend it.
func (s *Session) NextOutbound() ([]byte, bool) {
	switch s.state {
	case StateSendPending, StateResponsePending:
		return s.table.Request(s.index), true
	}
	return nil, false
}

// ConfirmSent records that the host wrote n bytes of the current request.
// Only a complete write moves the session on to wait for the response; a
// zero or short write leaves it wanting to send.
func (s *Session) ConfirmSent(n int) {
	if s.state != StateSendPending {
		return
	}
	if n == len(s.table.Request(s.index)) {
		s.state = StateResponsePending
	}
}

// HandleResponse validates one inbound frame received at ts. On success the
// payload is dispatched, the index advances and the session either asks for
// the next write or, after wrapping, signals stop. On any error the state
// and index are left untouched and nothing is dispatched.
func (s *Session) HandleResponse(raw []byte, ts time.Time) (Signal, error) {
	switch s.state {
	case StateIdle:
		return SignalIdle, ErrSessionIdle
	case StateCycleDone:
		return SignalStop, ErrCycleDone
	case StateSendPending:
		return SignalWantWrite, ErrNoRequestOutstanding
	}

	resp, err := DecodeResponse(raw, s.table.Station(), s.table.Registry())
	if err != nil {
		return SignalIdle, err
	}

	if s.strict {
		want := s.table.Entry(s.index).Key()
		if resp.Key() != want {
			return SignalIdle, fmt.Errorf("%w: got %s, waiting on %s", ErrUnexpectedResponse, resp.Key(), want)
		}
	}

	if err := s.dispatch(resp, ts); err != nil {
		return SignalIdle, err
	}

	s.index = (s.index + 1) % s.table.Len()
	if s.index == 0 {
		s.state = StateCycleDone
		return SignalStop, nil
	}
	s.state = StateSendPending
	return SignalWantWrite, nil
}

func (s *Session) dispatch(resp *Response, ts time.Time) (err error) {
	if s.listener == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrDispatchFailed, resp.Entry.Label(), r)
		}
	}()
	s.listener.OnData(resp.Entry, resp.Payload, ts)
	return nil
}
