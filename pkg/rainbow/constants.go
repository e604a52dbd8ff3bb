// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

// Framing bytes
const (
	StartByte   = '@'
	TrailerByte = '*'
)

// Field widths, in ASCII characters
const (
	AddressDigits  = 3
	CommandDigits  = 3
	ChecksumDigits = 2
	SizeDigits     = 2
	TrailerLen     = 2
)

// Request frames are always the same length:
// '@' DEST(3) STATION(3) CMD(3) "00000" CRC(2) "*\r\n"
const (
	RequestHeaderLen = 15
	RequestLen       = 20
	requestPad       = "00000"
	requestTrailer   = "*\r\n"
)

// Response frame offsets
const (
	offsetDest     = 1
	offsetSource   = 4
	offsetCommand  = 7
	offsetReserved = 10
	offsetSize     = 13
	offsetPayload  = 15

	// MinResponseLen is the shortest buffer the decoder will inspect.
	MinResponseLen = 19
)

// Address limits
const (
	MaxAddress     = 0xFFF
	DefaultStation = 0x3FF
)

// Host defaults carried over from the deployed poller
const (
	DefaultPort                = 5843
	DefaultPollIntervalSeconds = 3.0
	MaxFrameLen                = 1024
)
