// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import (
	"fmt"
	"strconv"
)

// Response is a validated response frame.
type Response struct {
	Destination uint16
	Source      uint16
	Command     uint16
	Size        int
	Payload     []byte
	Entry       CommandEntry
}

// Key returns the response key carried by the frame.
func (r *Response) Key() ResponseKey {
	return ResponseKey{Device: r.Source, Command: r.Command}
}

// DecodeResponse validates raw as a response addressed to station and
// attributes it through reg. Checks run in a fixed order and the first
// failure is returned:
//
//	length, start byte, checksum, address, payload length, registry
//
// The two trailing terminator bytes are never inspected.
func DecodeResponse(raw []byte, station uint16, reg Registry) (*Response, error) {
	n := len(raw)
	if n < MinResponseLen {
		return nil, fmt.Errorf("%w: %d bytes (min %d)", ErrTruncatedFrame, n, MinResponseLen)
	}

	if raw[0] != StartByte {
		return nil, fmt.Errorf("%w: got 0x%02X", ErrMalformedStart, raw[0])
	}

	crcEnd := n - TrailerLen
	bodyEnd := crcEnd - ChecksumDigits
	calculated := Checksum(raw[:bodyEnd])
	received := string(raw[bodyEnd:crcEnd])
	if calculated != received {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrChecksumMismatch, calculated, received)
	}

	dest, err := parseHex(raw, offsetDest, AddressDigits, "destination")
	if err != nil {
		return nil, err
	}
	src, err := parseHex(raw, offsetSource, AddressDigits, "source")
	if err != nil {
		return nil, err
	}
	cmd, err := parseHex(raw, offsetCommand, CommandDigits, "command")
	if err != nil {
		return nil, err
	}

	if uint16(dest) != station {
		return nil, fmt.Errorf("%w: frame for 0x%03X, station is 0x%03X", ErrAddressMismatch, dest, station)
	}

	size, err := parseHex(raw, offsetSize, SizeDigits, "size")
	if err != nil {
		return nil, err
	}
	// offsetPayload may exceed bodyEnd on a 19 byte frame
	var payload []byte
	if bodyEnd > offsetPayload {
		payload = raw[offsetPayload:bodyEnd]
	}
	if len(payload) != int(size)*2 {
		return nil, fmt.Errorf("%w: size field %d wants %d characters, got %d",
			ErrLengthMismatch, size, size*2, len(payload))
	}

	key := ResponseKey{Device: uint16(src), Command: uint16(cmd)}
	entry, ok := reg.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommandKey, key)
	}

	return &Response{
		Destination: uint16(dest),
		Source:      uint16(src),
		Command:     uint16(cmd),
		Size:        int(size),
		Payload:     append([]byte(nil), payload...),
		Entry:       entry,
	}, nil
}

func parseHex(raw []byte, offset, width int, field string) (uint64, error) {
	s := string(raw[offset : offset+width])
	v, err := strconv.ParseUint(s, 16, width*4)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedField, field, s)
	}
	return v, nil
}
