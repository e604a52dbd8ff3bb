// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import "bytes"

// Splitter reassembles response frames from a byte stream. Reads from a
// socket may carry part of a frame or several frames; Feed returns every
// frame completed by the new bytes. A frame runs from '@' to the next
// '\n' inclusive. Bytes before a start byte are dropped and counted.
type Splitter struct {
	buf       []byte
	maxLen    int
	discarded int
}

// NewSplitter returns a splitter that drops any pending frame growing past
// maxLen bytes. A non-positive maxLen uses MaxFrameLen.
func NewSplitter(maxLen int) *Splitter {
	if maxLen <= 0 {
		maxLen = MaxFrameLen
	}
	return &Splitter{maxLen: maxLen}
}

// Feed appends data and returns the frames it completed.
func (s *Splitter) Feed(data []byte) [][]byte {
	s.buf = append(s.buf, data...)

	var frames [][]byte
	for {
		start := bytes.IndexByte(s.buf, StartByte)
		if start < 0 {
			s.discarded += len(s.buf)
			s.buf = s.buf[:0]
			break
		}
		if start > 0 {
			s.discarded += start
			s.buf = s.buf[start:]
		}

		end := bytes.IndexByte(s.buf, '\n')
		if end < 0 {
			if len(s.buf) > s.maxLen {
				s.discarded += len(s.buf)
				s.buf = s.buf[:0]
			}
			break
		}
		// '@' never appears inside a frame, so a later one restarts it
		if last := bytes.LastIndexByte(s.buf[:end], StartByte); last > 0 {
			s.discarded += last
			s.buf = s.buf[last:]
			end -= last
		}

		frame := make([]byte, end+1)
		copy(frame, s.buf[:end+1])
		frames = append(frames, frame)
		s.buf = s.buf[end+1:]
	}

	// keep the backing array from growing without bound
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return frames
}

// Pending returns the number of buffered bytes not yet part of a frame.
func (s *Splitter) Pending() int { return len(s.buf) }

// Discarded returns the number of bytes dropped while resynchronising.
func (s *Splitter) Discarded() int { return s.discarded }

// Reset drops any partial frame.
func (s *Splitter) Reset() {
	s.buf = nil
}
