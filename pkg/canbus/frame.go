// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package canbus provides the CAN frame type and the transport boundary used by
// the SBox simulator, together with concrete buses: an in-process virtual bus,
// Linux SocketCAN, SLCAN over a serial adapter and CAN-over-WebSocket.
package canbus

import (
	"errors"
	"fmt"
	"strings"
)

// Identifier and length limits for classical CAN
const (
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
	MaxDataLen    = 8
)

var (
	ErrInvalidID  = errors.New("canbus: invalid identifier")
	ErrInvalidLen = errors.New("canbus: invalid data length")
)

// Frame is a classical CAN data frame
type Frame struct {
	ID       uint32
	Extended bool
	Len      uint8
	Data     [MaxDataLen]byte
}

// NewFrame builds a frame from an identifier and payload. Identifiers above
// the 11-bit range are marked extended.
func NewFrame(id uint32, data []byte) (Frame, error) {
	var f Frame
	if len(data) > MaxDataLen {
		return f, fmt.Errorf("%w: %d bytes", ErrInvalidLen, len(data))
	}
	f.ID = id
	f.Extended = id > MaxStandardID
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	return f, f.Validate()
}

// MustFrame is NewFrame that panics on invalid input. Intended for tests and
// static tables.
func MustFrame(id uint32, data []byte) Frame {
	f, err := NewFrame(id, data)
	if err != nil {
		panic(err)
	}
	return f
}

// Validate returns an error if the frame cannot be put on the bus
func (f Frame) Validate() error {
	if f.Len > MaxDataLen {
		return ErrInvalidLen
	}
	limit := uint32(MaxStandardID)
	if f.Extended {
		limit = MaxExtendedID
	}
	if f.ID > limit {
		return fmt.Errorf("%w: 0x%X", ErrInvalidID, f.ID)
	}
	return nil
}

// Payload returns the used part of the data field
func (f Frame) Payload() []byte {
	return f.Data[:f.Len]
}

// String formats the frame as "0x200 [8] 02 00 00 80 22 01 D9 71"
func (f Frame) String() string {
	var s strings.Builder
	if f.Extended {
		fmt.Fprintf(&s, "0x%08X", f.ID)
	} else {
		fmt.Fprintf(&s, "0x%03X", f.ID)
	}
	fmt.Fprintf(&s, " [%d]", f.Len)
	for _, b := range f.Payload() {
		fmt.Fprintf(&s, " %02X", b)
	}
	return s.String()
}
