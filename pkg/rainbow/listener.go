// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import (
	"fmt"
	"io"
	"time"
)

// Listener receives the payload of every validated response. The entry is
// the one found in the registry for the response key, which is not
// necessarily the entry whose request is outstanding.
type Listener interface {
	OnData(entry CommandEntry, payload []byte, ts time.Time)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(entry CommandEntry, payload []byte, ts time.Time)

// OnData calls f.
func (f ListenerFunc) OnData(entry CommandEntry, payload []byte, ts time.Time) {
	f(entry, payload, ts)
}

type multiListener []Listener

func (m multiListener) OnData(entry CommandEntry, payload []byte, ts time.Time) {
	for _, l := range m {
		l.OnData(entry, payload, ts)
	}
}

// MultiListener fans each delivery out to every non-nil listener in order.
func MultiListener(listeners ...Listener) Listener {
	out := make(multiListener, 0, len(listeners))
	for _, l := range listeners {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// PrintListener writes one line per delivery to w.
func PrintListener(w io.Writer) Listener {
	return ListenerFunc(func(entry CommandEntry, payload []byte, ts time.Time) {
		fmt.Fprintf(w, "[%s] %s dev=%03X cmd=%03X data=%s\n",
			ts.Format("15:04:05.000"), entry.Label(), entry.Device, entry.Command, payload)
	})
}
