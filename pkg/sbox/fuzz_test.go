// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

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

// newFuzzRng creates a random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomMask returns a non-zero contiguous bit mask
func randomMask(rng *rand.Rand) (mask uint8, width int) {
	width = 1 + rng.Intn(8)
	shift := rng.Intn(9 - width)
	return uint8((1<<width - 1) << shift), width
}

func TestFuzz_Int24RoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		v := int32(rng.Intn(MaxInt24-MinInt24+1) + MinInt24)
		b := []byte{0, 0, 0, 0x5A}
		PutInt24(b, v)
		if got := Int24(b); got != v {
			t.Fatalf("round %d: Int24(PutInt24(%d)) = %d", i, v, got)
		}
		if b[3] != 0x5A {
			t.Fatalf("round %d: PutInt24(%d) wrote past 3 bytes", i, v)
		}
	}
}

func TestFuzz_CounterInvariants(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		mask, width := randomMask(rng)
		modulus := 1 << width
		delta := 1 + rng.Intn(modulus-1)
		skip := NoSkip
		if rng.Intn(2) == 0 {
			skip = rng.Intn(modulus)
		}
		initial := uint8(rng.Intn(256))
		payload := []byte{initial}
		c := NewCounterField(payload, 0, mask, delta, skip)

		for step := 0; step < 2*modulus; step++ {
			before := c.Value()
			c.Update()
			after := c.Value()

			if payload[0]&^mask != initial&^mask {
				t.Fatalf("round %d: mask 0x%02X changed bits outside the mask: 0x%02X -> 0x%02X",
					i, mask, initial, payload[0])
			}
			if after == skip {
				t.Fatalf("round %d: mask 0x%02X delta %d landed on skip %d", i, mask, delta, skip)
			}
			if after >= modulus {
				t.Fatalf("round %d: value %d exceeds mask width %d", i, after, width)
			}
			want := (before + delta) % modulus
			if want == skip {
				want = (want + delta) % modulus
			}
			if after != want {
				t.Fatalf("round %d: mask 0x%02X delta %d skip %d: %d -> %d, want %d",
					i, mask, delta, skip, before, after, want)
			}
		}
	}
}
