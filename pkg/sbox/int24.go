// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import (
	"encoding/binary"
	"math"
)

// Signed 24-bit range of the telemetry value fields
const (
	MaxInt24 = 1<<23 - 1
	MinInt24 = -1 << 23
)

// PutInt24 writes the low 3 bytes of v's little-endian two's complement
// representation into b[0:3]. Bytes from b[3] on are left untouched.
func PutInt24(b []byte, v int32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	copy(b[:3], tmp[:3])
}

// Int24 reads a sign-extended 24-bit little-endian value from b[0:3]
func Int24(b []byte) int32 {
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	return v << 8 >> 8
}

// Milli converts a value in base units (V, A) to rounded milli-units
func Milli(v float64) int32 {
	m := math.Round(v * 1000)
	switch {
	case m > math.MaxInt32:
		return math.MaxInt32
	case m < math.MinInt32:
		return math.MinInt32
	}
	return int32(m)
}
