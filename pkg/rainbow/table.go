// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import "fmt"

// CommandEntry is one row of the poll table: a device address, the command
// to send it, and whatever the host wants handed back with its data.
type CommandEntry struct {
	Name     string
	Device   uint16
	Command  uint16
	Metadata map[string]any
}

// Key returns the response key a reply to this entry will carry.
func (e CommandEntry) Key() ResponseKey {
	return ResponseKey{Device: e.Device, Command: e.Command}
}

// Label returns the entry name, or a name derived from its key.
func (e CommandEntry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Key().String()
}

// ResponseKey identifies a response by the (SRC, CMD) fields it carries.
type ResponseKey struct {
	Device  uint16
	Command uint16
}

func (k ResponseKey) String() string {
	return fmt.Sprintf("%03X/%03X", k.Device, k.Command)
}

// Registry maps response keys to the entry that requested them.
type Registry map[ResponseKey]CommandEntry

// Lookup returns the entry registered under key.
func (r Registry) Lookup(key ResponseKey) (CommandEntry, bool) {
	e, ok := r[key]
	return e, ok
}

// Table holds the encoded requests for one poll table, in order, plus the
// registry used to attribute responses.
type Table struct {
	station    uint16
	entries    []CommandEntry
	requests   [][]byte
	registry   Registry
	duplicates []ResponseKey
}

// BuildTable validates entries against the 12 bit address space and
// precomputes one request per entry. When two entries share a key the
// later one owns it in the registry; both are still polled.
func BuildTable(entries []CommandEntry, station uint16) (*Table, error) {
	if station > MaxAddress {
		return nil, fmt.Errorf("%w: station 0x%X", ErrAddressRange, station)
	}

	t := &Table{
		station:  station,
		entries:  make([]CommandEntry, 0, len(entries)),
		requests: make([][]byte, 0, len(entries)),
		registry: make(Registry, len(entries)),
	}

	for i, e := range entries {
		if e.Device > MaxAddress {
			return nil, fmt.Errorf("%w: entry %d device 0x%X", ErrAddressRange, i, e.Device)
		}
		if e.Command > MaxAddress {
			return nil, fmt.Errorf("%w: entry %d command 0x%X", ErrAddressRange, i, e.Command)
		}

		if _, dup := t.registry[e.Key()]; dup {
			t.duplicates = append(t.duplicates, e.Key())
		}
		t.entries = append(t.entries, e)
		t.requests = append(t.requests, EncodeRequest(e.Device, station, e.Command))
		t.registry[e.Key()] = e
	}

	return t, nil
}

// Station returns the station address the requests were built for.
func (t *Table) Station() uint16 { return t.station }

// Len returns the number of poll entries.
func (t *Table) Len() int { return len(t.entries) }

// Entry returns entry i.
func (t *Table) Entry(i int) CommandEntry { return t.entries[i] }

// Entries returns a copy of the poll entries in order.
func (t *Table) Entries() []CommandEntry {
	out := make([]CommandEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Request returns the encoded request for entry i.
func (t *Table) Request(i int) []byte { return t.requests[i] }

// Registry returns the response registry.
func (t *Table) Registry() Registry { return t.registry }

// Duplicates lists keys that appeared more than once, in the order the
// repeats were seen.
func (t *Table) Duplicates() []ResponseKey { return t.duplicates }
