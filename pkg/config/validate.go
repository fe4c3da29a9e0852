// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
)

// Validate checks configuration correctness without mutating it.
// Duplicate frame identifiers are left to frame registration, which reports
// them against the built-in telemetry frames as well.
func Validate(cfg *Config) error {
	if cfg.Precharge.ResistanceOhms < 0 {
		return fmt.Errorf("precharge.resistance_ohms must not be negative")
	}
	if cfg.Precharge.CapacitanceUF < 0 {
		return fmt.Errorf("precharge.capacitance_uf must not be negative")
	}

	for i, f := range cfg.Frames {
		where := fmt.Sprintf("frames[%d] (id 0x%03X)", i, f.ID)

		if f.ID > canbus.MaxExtendedID {
			return fmt.Errorf("%s: identifier out of range", where)
		}
		if f.RateHz <= 0 {
			return fmt.Errorf("%s: rate_hz must be positive", where)
		}

		data, err := DecodeHex(f.Data)
		if err != nil {
			return fmt.Errorf("%s: %v", where, err)
		}
		if len(data) > canbus.MaxDataLen {
			return fmt.Errorf("%s: data is %d bytes, at most %d allowed", where, len(data), canbus.MaxDataLen)
		}

		inPayload := func(b int) bool { return b >= 0 && b < len(data) }

		for j, c := range f.Counters {
			if !inPayload(c.Byte) {
				return fmt.Errorf("%s: counters[%d].byte %d outside payload", where, j, c.Byte)
			}
			if c.Mask == 0 {
				return fmt.Errorf("%s: counters[%d].mask must not be zero", where, j)
			}
			if !contiguous(c.Mask) {
				return fmt.Errorf("%s: counters[%d].mask 0x%02X is not a contiguous bit run", where, j, c.Mask)
			}
		}
		for j, t := range f.Toggles {
			if !inPayload(t.Byte) {
				return fmt.Errorf("%s: toggles[%d].byte %d outside payload", where, j, t.Byte)
			}
		}
		if f.Checksum != nil && !inPayload(f.Checksum.Byte) {
			return fmt.Errorf("%s: checksum.byte %d outside payload", where, f.Checksum.Byte)
		}
	}

	return nil
}

// DecodeHex parses payload hex, ignoring comma and whitespace separators
func DecodeHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(",", "", " ", "", "\t", "").Replace(s)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid data %q: %v", s, err)
	}
	return data, nil
}

// contiguous reports whether the set bits of m form a single run
func contiguous(m uint8) bool {
	low := m & -m
	return (m+low)&m == 0
}
