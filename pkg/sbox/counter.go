// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import "math/bits"

// NoSkip disables the reserved counter value
const NoSkip = -1

// CounterField is a rolling liveness counter stored in the masked bits of one
// payload byte. It keeps no value of its own: every update starts from
// whatever the payload currently holds.
type CounterField struct {
	payload []byte
	index   int
	mask    uint8
	shift   int
	delta   int
	skip    int
}

// NewCounterField binds a counter to payload[index] under mask. Each update
// adds delta modulo the mask width and never lands on skip (use NoSkip for
// none). The mask must be a contiguous, non-zero run of bits.
func NewCounterField(payload []byte, index int, mask uint8, delta int, skip int) *CounterField {
	return &CounterField{
		payload: payload,
		index:   index,
		mask:    mask,
		shift:   bits.TrailingZeros8(mask),
		delta:   delta,
		skip:    skip,
	}
}

// Value returns the counter as stored in the payload
func (c *CounterField) Value() int {
	return int(c.payload[c.index]&c.mask) >> c.shift
}

// Update advances the counter by one step, repeating the step if it would
// produce the skip value. Bits outside the mask are preserved.
func (c *CounterField) Update() {
	v := c.step(c.Value())
	if v == c.skip {
		v = c.step(v)
	}
	c.set(v)
}

func (c *CounterField) step(v int) int {
	return (v + c.delta) & int(c.mask>>c.shift)
}

func (c *CounterField) set(v int) {
	kept := c.payload[c.index] &^ c.mask
	c.payload[c.index] = kept | (uint8(v<<c.shift) & c.mask)
}
