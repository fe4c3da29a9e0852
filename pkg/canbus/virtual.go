// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"sync"
)

// virtualQueueSize is the per-endpoint receive buffer
const virtualQueueSize = 256

// VirtualBus is an in-process CAN bus. Every endpoint opened on it receives
// the frames sent by all other endpoints, never its own.
type VirtualBus struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*virtualEndpoint]struct{}
}

// NewVirtualBus creates an empty virtual bus
func NewVirtualBus() *VirtualBus {
	return &VirtualBus{endpoints: make(map[*virtualEndpoint]struct{})}
}

// Open attaches a new endpoint to the bus
func (b *VirtualBus) Open() Bus {
	ep := &virtualEndpoint{
		bus:  b,
		ch:   make(chan Frame, virtualQueueSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ep.dead = true
		close(ep.done)
		return ep
	}
	b.endpoints[ep] = struct{}{}
	return ep
}

// Close detaches and closes every endpoint
func (b *VirtualBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ep := range b.endpoints {
		ep.shutdown()
	}
	b.endpoints = nil
	return nil
}

type virtualEndpoint struct {
	bus  *VirtualBus
	ch   chan Frame
	mu   sync.Mutex
	dead bool
	done chan struct{}
}

// Send delivers the frame to every other endpoint. A full receiver queue
// blocks the sender until space frees up or ctx is cancelled.
func (e *virtualEndpoint) Send(ctx context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	e.bus.mu.RLock()
	if e.bus.closed {
		e.bus.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*virtualEndpoint, 0, len(e.bus.endpoints))
	for ep := range e.bus.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	e.bus.mu.RUnlock()

	for _, t := range targets {
		select {
		case t.ch <- frame:
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Receive waits for the next frame from another endpoint
func (e *virtualEndpoint) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-e.ch:
		return f, nil
	case <-e.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Close detaches the endpoint from its bus
func (e *virtualEndpoint) Close() error {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	e.shutdown()
	if e.bus.endpoints != nil {
		delete(e.bus.endpoints, e)
	}
	return nil
}

func (e *virtualEndpoint) shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return
	}
	e.dead = true
	close(e.done)
}
