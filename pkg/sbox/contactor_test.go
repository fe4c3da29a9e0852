// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import (
	"errors"
	"testing"
	"time"
)

func TestContactorStateMachine_Commands(t *testing.T) {
	tests := []struct {
		name    string
		cmd     byte
		pos     bool
		neg     bool
		pch     bool
		wantErr error
	}{
		{name: "all open", cmd: CmdAllOpen},
		{name: "precharge", cmd: CmdPrecharge, neg: true, pch: true},
		{name: "all closed", cmd: CmdAllClosed, pos: true, neg: true, pch: true},
		{name: "precharge only", cmd: CmdPrechargeOnly, pch: true},
		{name: "positive only", cmd: CmdPositiveOnly, pos: true},
		{name: "negative and precharge", cmd: CmdNegativePchOnly, neg: true, pch: true},
		{name: "unrecognized", cmd: 0x55, wantErr: ErrUnrecognizedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewContactorStateMachine()
			// Start from all closed so every command has something to change
			m.HandleControl([]byte{CmdAllClosed, 0, 0, 0}, time.Unix(0, 0))

			applied, err := m.HandleControl([]byte{tt.cmd, 0x00, 0x00, 0x00}, time.Unix(1, 0))
			if !applied {
				t.Fatal("HandleControl() did not apply a 4 byte frame")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HandleControl() error = %v, want %v", err, tt.wantErr)
			}

			s := m.State()
			if s.PosClosed != tt.pos || s.NegClosed != tt.neg || s.PchClosed != tt.pch {
				t.Errorf("pos/neg/pch = %v/%v/%v, want %v/%v/%v",
					s.PosClosed, s.NegClosed, s.PchClosed, tt.pos, tt.neg, tt.pch)
			}
		})
	}
}

func TestContactorStateMachine_IgnoresWrongLength(t *testing.T) {
	for _, data := range [][]byte{nil, {CmdAllClosed}, {CmdAllClosed, 0, 0}, {CmdAllClosed, 0, 0, 0, 0}} {
		m := NewContactorStateMachine()
		applied, err := m.HandleControl(data, time.Now())
		if applied || err != nil {
			t.Errorf("HandleControl(% X) = %v, %v; want false, nil", data, applied, err)
		}
		if !m.State().AllOpen() {
			t.Errorf("HandleControl(% X) changed state", data)
		}

		if m.HandleSetup(append([]byte{}, data...)) {
			t.Errorf("HandleSetup(% X) applied a wrong length frame", data)
		}
	}
}

func TestContactorStateMachine_PrechargeTimer(t *testing.T) {
	t0 := time.Unix(1000, 0)
	m := NewContactorStateMachine()

	m.HandleControl([]byte{CmdPrecharge, 0, 0, 0}, t0)
	if got := m.State().PrechargeStart; !got.Equal(t0) {
		t.Fatalf("PrechargeStart = %v, want %v", got, t0)
	}

	// Repeating the command keeps the first start instant
	m.HandleControl([]byte{CmdPrecharge, 0, 0, 0}, t0.Add(500*time.Millisecond))
	if got := m.State().PrechargeStart; !got.Equal(t0) {
		t.Errorf("repeated 0xA6 moved PrechargeStart to %v", got)
	}

	// Any other command clears the timer
	m.HandleControl([]byte{CmdAllClosed, 0, 0, 0}, t0.Add(time.Second))
	if m.State().PrechargeActive() {
		t.Error("precharge still active after 0xAA")
	}

	// 0xA6 from a closed state does not start a new precharge
	m.HandleControl([]byte{CmdPrecharge, 0, 0, 0}, t0.Add(2*time.Second))
	if m.State().PrechargeActive() {
		t.Error("0xA6 started a precharge with contactors already closed")
	}

	m.HandleControl([]byte{CmdAllOpen, 0, 0, 0}, t0.Add(3*time.Second))
	m.HandleControl([]byte{CmdPrecharge, 0, 0, 0}, t0.Add(4*time.Second))
	if got := m.State().PrechargeStart; !got.Equal(t0.Add(4 * time.Second)) {
		t.Errorf("PrechargeStart after reopening = %v, want %v", got, t0.Add(4*time.Second))
	}

	// An unrecognized command clears it too
	m.HandleControl([]byte{0x55, 0, 0, 0}, t0.Add(5*time.Second))
	if m.State().PrechargeActive() {
		t.Error("precharge still active after unrecognized command")
	}
}

func TestContactorStateMachine_Setup(t *testing.T) {
	m := NewContactorStateMachine()
	if m.State().SetupEnabled {
		t.Fatal("setup enabled at power on")
	}

	if !m.HandleSetup([]byte{0xFF, 0xFE, 0xFF, 0xFF}) || !m.State().SetupEnabled {
		t.Fatal("unlock pattern did not enable setup")
	}

	tests := [][]byte{
		{0x00, 0x00, 0x00, 0x00},
		{0xFF, 0xFF, 0xFF, 0xFF},
		{0xFF, 0xFE, 0xFF, 0xFE},
	}
	for _, data := range tests {
		m.HandleSetup([]byte{0xFF, 0xFE, 0xFF, 0xFF})
		if !m.HandleSetup(data) {
			t.Errorf("HandleSetup(% X) not applied", data)
		}
		if m.State().SetupEnabled {
			t.Errorf("HandleSetup(% X) left setup enabled", data)
		}
	}

	// Wrong length leaves the setup flag alone
	m.HandleSetup([]byte{0xFF, 0xFE, 0xFF, 0xFF})
	m.HandleSetup([]byte{0x00, 0x00, 0x00})
	if !m.State().SetupEnabled {
		t.Error("3 byte setup frame disabled setup")
	}
}

func TestContactorStateMachine_SetupDoesNotTouchContactors(t *testing.T) {
	m := NewContactorStateMachine()
	m.HandleControl([]byte{CmdAllClosed, 0, 0, 0}, time.Now())
	m.HandleSetup([]byte{0, 0, 0, 0})

	s := m.State()
	if !s.PosClosed || !s.NegClosed || !s.PchClosed {
		t.Errorf("setup frame changed contactors: %+v", s)
	}
}
