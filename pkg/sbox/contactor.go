// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import (
	"bytes"
	"errors"
	"time"
)

// Inbound command channels
const (
	ControlContactorsID = 0x100
	SetupContactorsID   = 0x300
	commandFrameLen     = 4
)

// Contactor control command codes (first byte of a 0x100 frame)
const (
	CmdAllOpen         = 0x00
	CmdPrecharge       = 0xA6
	CmdAllClosed       = 0xAA
	CmdPrechargeOnly   = 0x86
	CmdPositiveOnly    = 0x0A
	CmdNegativePchOnly = 0x62
)

// setupUnlock is the only 0x300 payload that enables contactor actuation
var setupUnlock = []byte{0xFF, 0xFE, 0xFF, 0xFF}

// ErrUnrecognizedCommand reports a control command code outside the known set
var ErrUnrecognizedCommand = errors.New("unrecognized contactor command")

// ContactorState is a consistent snapshot of the contactor relays
type ContactorState struct {
	PosClosed    bool
	NegClosed    bool
	PchClosed    bool
	SetupEnabled bool

	// PrechargeStart is zero unless a precharge is in progress
	PrechargeStart time.Time
}

// AllOpen reports whether no contactor is closed
func (s ContactorState) AllOpen() bool {
	return !s.PosClosed && !s.NegClosed && !s.PchClosed
}

// PrechargeActive reports whether the precharge timer is running
func (s ContactorState) PrechargeActive() bool {
	return !s.PrechargeStart.IsZero()
}

// contactorPositions is the pos/neg/pch triple each command selects
var contactorPositions = map[byte][3]bool{
	CmdAllOpen:         {false, false, false},
	CmdPrecharge:       {false, true, true},
	CmdAllClosed:       {true, true, true},
	CmdPrechargeOnly:   {false, false, true},
	CmdPositiveOnly:    {true, false, false},
	CmdNegativePchOnly: {false, true, true},
}

// ContactorStateMachine derives contactor state from inbound command frames.
// It is not safe for concurrent use; SBox serializes access.
type ContactorStateMachine struct {
	state ContactorState
}

// NewContactorStateMachine starts with every contactor open and setup locked
func NewContactorStateMachine() *ContactorStateMachine {
	return &ContactorStateMachine{}
}

// State returns the current state
func (m *ContactorStateMachine) State() ContactorState {
	return m.state
}

// HandleSetup processes a 0x300 frame payload. Only the unlock pattern
// enables setup; any other 4-byte payload disables it. Other lengths are
// ignored and report false.
func (m *ContactorStateMachine) HandleSetup(data []byte) bool {
	if len(data) != commandFrameLen {
		return false
	}
	m.state.SetupEnabled = bytes.Equal(data, setupUnlock)
	return true
}

// HandleControl processes a 0x100 frame payload received at now. Frames that
// are not 4 bytes long are ignored and report false. An unknown command code
// opens every contactor and returns ErrUnrecognizedCommand; the state change
// still applies.
func (m *ContactorStateMachine) HandleControl(data []byte, now time.Time) (bool, error) {
	if len(data) != commandFrameLen {
		return false, nil
	}

	cmd := data[0]
	pos, known := contactorPositions[cmd]

	switch {
	case cmd == CmdPrecharge:
		// Only the transition out of all-open starts the timer; repeats of
		// the same command keep the first start instant
		if m.state.AllOpen() {
			m.state.PrechargeStart = now
		}
	default:
		m.state.PrechargeStart = time.Time{}
	}

	m.state.PosClosed, m.state.NegClosed, m.state.PchClosed = pos[0], pos[1], pos[2]

	if !known {
		return true, ErrUnrecognizedCommand
	}
	return true, nil
}
