// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import (
	"fmt"
	"strings"
	"time"
)

// Sanitize renders raw frame bytes printable, escaping CR, LF and any other
// control or non-ASCII byte.
func Sanitize(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw) + 8)
	for _, c := range raw {
		switch {
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\n':
			b.WriteString(`\n`)
		case c < 0x20 || c > 0x7E:
			fmt.Fprintf(&b, `\x%02X`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// FormatRequest formats an outbound request for display.
func FormatRequest(entry CommandEntry, frame []byte, ts time.Time) string {
	return fmt.Sprintf("[%s] TX %s dev=%03X cmd=%03X %s\n",
		ts.Format("15:04:05.000"), entry.Label(), entry.Device, entry.Command, Sanitize(frame))
}

// FormatResponse formats a validated response for display.
func FormatResponse(r *Response, ts time.Time) string {
	return fmt.Sprintf("[%s] RX %s src=%03X dst=%03X cmd=%03X size=%d data=%s\n",
		ts.Format("15:04:05.000"), r.Entry.Label(), r.Source, r.Destination, r.Command, r.Size, r.Payload)
}

// FormatError formats a rejected frame and the reason it was rejected.
func FormatError(raw []byte, err error, ts time.Time) string {
	return fmt.Sprintf("[%s] ERR %s: %v\n  frame: %s\n",
		ts.Format("15:04:05.000"), ErrorKind(err), err, Sanitize(raw))
}
