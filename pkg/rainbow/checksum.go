// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import "fmt"

// ChecksumByte XORs every byte of data together.
func ChecksumByte(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// Checksum returns the XOR checksum of data as two uppercase hex digits.
func Checksum(data []byte) string {
	return fmt.Sprintf("%02X", ChecksumByte(data))
}
