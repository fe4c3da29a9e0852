// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import (
	"sync"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
)

// UpdateFunc regenerates part of a frame payload before it is transmitted.
// The slice is the frame's own buffer; it must not be retained or resized.
type UpdateFunc func(payload []byte)

// PeriodicFrame is one outbound frame: a fixed-length payload sent at a fixed
// rate while enabled, with update hooks run immediately before each send.
type PeriodicFrame struct {
	id     uint32
	name   string
	rateHz float64
	period time.Duration

	mu      sync.Mutex
	payload []byte
	enabled bool
	hooks   []UpdateFunc
}

// NewPeriodicFrame creates an enabled frame. The payload is copied.
func NewPeriodicFrame(id uint32, name string, payload []byte, rateHz float64) *PeriodicFrame {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return &PeriodicFrame{
		id:      id,
		name:    name,
		rateHz:  rateHz,
		period:  time.Duration(float64(time.Second) / rateHz),
		payload: buf,
		enabled: true,
	}
}

// ID returns the arbitration identifier
func (f *PeriodicFrame) ID() uint32 {
	return f.id
}

// Name returns the short display name
func (f *PeriodicFrame) Name() string {
	return f.name
}

// RateHz returns the transmit rate
func (f *PeriodicFrame) RateHz() float64 {
	return f.rateHz
}

// Period returns the interval between transmissions
func (f *PeriodicFrame) Period() time.Duration {
	return f.period
}

// Enabled reports whether the frame is being transmitted
func (f *PeriodicFrame) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// SetEnabled starts or suppresses transmission from the next tick on.
// Counters keep their state while disabled.
func (f *PeriodicFrame) SetEnabled(enabled bool) {
	f.mu.Lock()
	f.enabled = enabled
	f.mu.Unlock()
}

// Payload returns a copy of the current payload
func (f *PeriodicFrame) Payload() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.payload))
	copy(out, f.payload)
	return out
}

// OnUpdate appends a hook. Hooks run in registration order.
func (f *PeriodicFrame) OnUpdate(fn UpdateFunc) {
	f.mu.Lock()
	f.hooks = append(f.hooks, fn)
	f.mu.Unlock()
}

// AddCounter binds a CounterField to this frame's payload and advances it on
// every transmission
func (f *PeriodicFrame) AddCounter(index int, mask uint8, delta int, skip int) *CounterField {
	c := NewCounterField(f.payload, index, mask, delta, skip)
	f.OnUpdate(func([]byte) { c.Update() })
	return c
}

// Tick prepares the next transmission. A disabled frame reports false and
// its hooks are not run. Otherwise every hook runs exactly once and the
// resulting payload is returned as a bus frame.
func (f *PeriodicFrame) Tick() (canbus.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enabled {
		return canbus.Frame{}, false
	}
	for _, hook := range f.hooks {
		hook(f.payload)
	}
	frame, err := canbus.NewFrame(f.id, f.payload)
	if err != nil {
		return canbus.Frame{}, false
	}
	return frame, true
}
