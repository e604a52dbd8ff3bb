// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import "fmt"

// EncodeRequest builds the 20 byte poll request asking device dest to run
// command cmd on behalf of station. Every argument is masked to 12 bits.
func EncodeRequest(dest, station, cmd uint16) []byte {
	header := fmt.Sprintf("%c%03X%03X%03X%s",
		StartByte, dest&MaxAddress, station&MaxAddress, cmd&MaxAddress, requestPad)

	frame := make([]byte, 0, RequestLen)
	frame = append(frame, header...)
	frame = append(frame, Checksum([]byte(header))...)
	frame = append(frame, requestTrailer...)
	return frame
}

// EncodeResponse builds a response frame as a device would send it. The
// payload is copied verbatim and must already be an even-length ASCII hex
// string; the size field is len(payload)/2. Used by simulators and tests.
func EncodeResponse(dest, src, cmd uint16, payload []byte) ([]byte, error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("payload length %d is not even", len(payload))
	}
	size := len(payload) / 2
	if size > 0xFF {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", size, 0xFF)
	}

	frame := make([]byte, 0, offsetPayload+len(payload)+ChecksumDigits+TrailerLen)
	frame = append(frame, fmt.Sprintf("%c%03X%03X%03X000%02X",
		StartByte, dest&MaxAddress, src&MaxAddress, cmd&MaxAddress, size)...)
	frame = append(frame, payload...)
	frame = append(frame, Checksum(frame)...)
	frame = append(frame, TrailerByte, '\n')
	return frame, nil
}
