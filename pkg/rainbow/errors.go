// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import "errors"

// Frame validation errors, returned wrapped with detail.
var (
	ErrTruncatedFrame    = errors.New("truncated frame")
	ErrMalformedStart    = errors.New("malformed start byte")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrMalformedField    = errors.New("malformed hex field")
	ErrAddressMismatch   = errors.New("address mismatch")
	ErrLengthMismatch    = errors.New("payload length mismatch")
	ErrUnknownCommandKey = errors.New("unknown command key")
)

// Session errors
var (
	ErrUnexpectedResponse   = errors.New("response does not match outstanding request")
	ErrDispatchFailed       = errors.New("data listener failed")
	ErrNoRequestOutstanding = errors.New("no request outstanding")
	ErrSessionIdle          = errors.New("session has no entries")
	ErrCycleDone            = errors.New("poll cycle already complete")
	ErrAddressRange         = errors.New("address out of 12-bit range")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrTruncatedFrame, "truncated_frame"},
	{ErrMalformedStart, "malformed_start"},
	{ErrChecksumMismatch, "checksum_mismatch"},
	{ErrMalformedField, "malformed_field"},
	{ErrAddressMismatch, "address_mismatch"},
	{ErrLengthMismatch, "length_mismatch"},
	{ErrUnknownCommandKey, "unknown_command_key"},
	{ErrUnexpectedResponse, "unexpected_response"},
	{ErrDispatchFailed, "dispatch_failed"},
	{ErrNoRequestOutstanding, "no_request_outstanding"},
	{ErrSessionIdle, "session_idle"},
	{ErrCycleDone, "cycle_done"},
	{ErrAddressRange, "address_range"},
}

// ErrorKind maps err to a short stable label suitable for logs and metric
// labels. Unrecognised errors are "other"; nil is "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "other"
}

// IsFrameError reports whether err came from validating a response frame.
func IsFrameError(err error) bool {
	switch ErrorKind(err) {
	case "truncated_frame", "malformed_start", "checksum_mismatch", "malformed_field",
		"address_mismatch", "length_mismatch", "unknown_command_key":
		return true
	}
	return false
}
