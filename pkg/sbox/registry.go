// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateIdentifier is returned when two frames share an arbitration
// identifier. It is a configuration error.
var ErrDuplicateIdentifier = errors.New("duplicate arbitration identifier")

// FrameRegistry holds the periodic frames keyed by arbitration identifier.
// Registration happens at startup; afterwards the registry is read-only and
// safe for concurrent readers.
type FrameRegistry struct {
	frames []*PeriodicFrame
	byID   map[uint32]*PeriodicFrame
}

// NewFrameRegistry creates an empty registry
func NewFrameRegistry() *FrameRegistry {
	return &FrameRegistry{byID: make(map[uint32]*PeriodicFrame)}
}

// Register adds a frame, failing if its identifier is already taken
func (r *FrameRegistry) Register(f *PeriodicFrame) error {
	if prev, exists := r.byID[f.ID()]; exists {
		return fmt.Errorf("%w: 0x%03X used by %q and %q", ErrDuplicateIdentifier, f.ID(), prev.Name(), f.Name())
	}
	r.byID[f.ID()] = f
	r.frames = append(r.frames, f)
	return nil
}

// Get looks up a frame by identifier
func (r *FrameRegistry) Get(id uint32) (*PeriodicFrame, bool) {
	f, ok := r.byID[id]
	return f, ok
}

// Len returns the number of registered frames
func (r *FrameRegistry) Len() int {
	return len(r.frames)
}

// All returns the frames in registration order
func (r *FrameRegistry) All() []*PeriodicFrame {
	out := make([]*PeriodicFrame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Sorted returns the frames ordered by identifier, for display
func (r *FrameRegistry) Sorted() []*PeriodicFrame {
	out := r.All()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
