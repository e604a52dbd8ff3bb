// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rainbow

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

const hexDigits = "0123456789ABCDEF"

// randomPayload returns an even-length run of hex characters.
func randomPayload(rng *rand.Rand) []byte {
	p := make([]byte, rng.Intn(33)*2)
	for i := range p {
		p[i] = hexDigits[rng.Intn(len(hexDigits))]
	}
	return p
}

// TestFuzzDecode_RandomBytes feeds random bytes through the splitter and
// decoder and verifies nothing panics.
func TestFuzzDecode_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	reg := Registry{{Device: 0x001, Command: 0x006}: {Device: 0x001, Command: 0x006}}
	for i := 0; i < rounds; i++ {
		s := NewSplitter(64)

		length := rng.Intn(512) + 1
		data := make([]byte, length)
		rng.Read(data)
		// sprinkle framing bytes so frames actually form
		for j := 0; j < length/16; j++ {
			data[rng.Intn(length)] = "@\n"[rng.Intn(2)]
		}

		for _, frame := range s.Feed(data) {
			_, _ = DecodeResponse(frame, DefaultStation, reg)
		}
		_, _ = DecodeResponse(data, DefaultStation, reg)
	}
}

// TestFuzzDecode_RandomResponses encodes random valid responses and
// verifies every one decodes to the same fields.
func TestFuzzDecode_RandomResponses(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		src := uint16(rng.Intn(MaxAddress + 1))
		cmd := uint16(rng.Intn(MaxAddress + 1))
		station := uint16(rng.Intn(MaxAddress + 1))
		payload := randomPayload(rng)

		frame, err := EncodeResponse(station, src, cmd, payload)
		if err != nil {
			t.Fatalf("Round %d: EncodeResponse() error = %v", i, err)
		}

		entry := CommandEntry{Name: "fuzz", Device: src, Command: cmd}
		resp, err := DecodeResponse(frame, station, Registry{entry.Key(): entry})
		if err != nil {
			t.Errorf("Round %d: DecodeResponse(%q) error = %v", i, frame, err)
			continue
		}
		if resp.Source != src || resp.Command != cmd || resp.Destination != station {
			t.Errorf("Round %d: fields = %03X/%03X/%03X, want %03X/%03X/%03X",
				i, resp.Source, resp.Command, resp.Destination, src, cmd, station)
		}
		if string(resp.Payload) != string(payload) {
			t.Errorf("Round %d: payload = %q, want %q", i, resp.Payload, payload)
		}
	}
}

// TestFuzzDecode_CorruptedResponses flips one byte ahead of the terminator
// and verifies the frame is always rejected.
func TestFuzzDecode_CorruptedResponses(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	entry := CommandEntry{Device: 0x001, Command: 0x006}
	reg := Registry{entry.Key(): entry}

	for i := 0; i < rounds; i++ {
		frame, err := EncodeResponse(DefaultStation, entry.Device, entry.Command, randomPayload(rng))
		if err != nil {
			t.Fatalf("Round %d: EncodeResponse() error = %v", i, err)
		}

		idx := rng.Intn(len(frame) - TrailerLen)
		frame[idx] ^= byte(rng.Intn(255) + 1)

		if _, err := DecodeResponse(frame, DefaultStation, reg); err == nil {
			t.Errorf("Round %d: corrupted byte %d accepted: %q", i, idx, frame)
		}
	}
}

func FuzzDecodeResponse(f *testing.F) {
	f.Add([]byte("@3FF00100600001AB46*\n"))
	f.Add([]byte("@3FF00100600000" + "44*\n"))
	f.Add([]byte("@3FF00100600002AB45*\n"))
	f.Add([]byte("@@@\n"))

	entry := CommandEntry{Device: 0x001, Command: 0x006}
	reg := Registry{entry.Key(): entry}

	f.Fuzz(func(t *testing.T, raw []byte) {
		resp, err := DecodeResponse(raw, DefaultStation, reg)
		if err != nil {
			if ErrorKind(err) == "other" {
				t.Errorf("unclassified error %v", err)
			}
			return
		}
		if resp.Destination != DefaultStation {
			t.Errorf("accepted frame for %03X", resp.Destination)
		}
		if len(resp.Payload) != resp.Size*2 {
			t.Errorf("payload %d chars, size %d", len(resp.Payload), resp.Size)
		}
	})
}
