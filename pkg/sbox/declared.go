// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import "fmt"

// FrameDecl declares an ad-hoc periodic frame: a static payload sent at a
// fixed rate, optionally with generated content
type FrameDecl struct {
	ID       uint32
	Name     string
	Data     []byte
	RateHz   float64
	Disabled bool

	Counters []CounterDecl
	Toggles  []ToggleDecl
	Checksum *ChecksumDecl
}

// CounterDecl places a CounterField in the payload
type CounterDecl struct {
	Byte  int
	Mask  uint8
	Delta int
	Skip  int // NoSkip for none
}

// ToggleDecl flips the masked bits of a byte on every transmission
type ToggleDecl struct {
	Byte int
	Mask uint8
}

// ChecksumDecl stores the sum of all other payload bytes, modulo 256, in Byte.
// It is computed after counters and toggles.
type ChecksumDecl struct {
	Byte int
}

// Definition turns the declaration into a FrameDefinition. Declared frames
// do not read telemetry.
func (d FrameDecl) Definition() FrameDefinition {
	name := d.Name
	if name == "" {
		name = fmt.Sprintf("Frame_%03X", d.ID)
	}
	return FrameDefinition{
		Name: name,
		Build: func(Telemetry) *PeriodicFrame {
			f := NewPeriodicFrame(d.ID, name, d.Data, d.RateHz)
			for _, c := range d.Counters {
				f.AddCounter(c.Byte, c.Mask, c.Delta, c.Skip)
			}
			for _, t := range d.Toggles {
				t := t
				f.OnUpdate(func(p []byte) { p[t.Byte] ^= t.Mask })
			}
			if d.Checksum != nil {
				idx := d.Checksum.Byte
				f.OnUpdate(func(p []byte) { p[idx] = Checksum(p, idx) })
			}
			f.SetEnabled(!d.Disabled)
			return f
		},
	}
}

// Checksum sums every byte of p except p[skip], modulo 256
func Checksum(p []byte, skip int) byte {
	var sum byte
	for i, b := range p {
		if i != skip {
			sum += b
		}
	}
	return sum
}
