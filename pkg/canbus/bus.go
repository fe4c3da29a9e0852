// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"errors"
)

// Bus is a connection to a CAN bus. Implementations are safe for concurrent
// use: one goroutine may block in Receive while others Send.
type Bus interface {
	// Send transmits a frame. Cancelling ctx aborts a blocked send.
	Send(ctx context.Context, frame Frame) error

	// Receive blocks until a frame arrives or ctx is cancelled
	Receive(ctx context.Context) (Frame, error)

	// Close releases the bus. Blocked and later calls return ErrClosed.
	Close() error
}

// ErrClosed indicates the bus has been closed
var ErrClosed = errors.New("canbus: closed")
