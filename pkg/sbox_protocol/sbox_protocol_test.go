// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox_protocol

import (
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
)

func TestFormatFrame(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 34, 56, 789000000, time.Local)
	tests := []struct {
		name  string
		frame canbus.Frame
		want  []string
	}{
		{
			name:  "current",
			frame: canbus.MustFrame(0x200, []byte{0xC0, 0xF2, 0xFC, 0x80, 0x22, 0x51, 0xD9, 0x71}),
			want:  []string{"[12:34:56.789] CURRENT (0x200) len=8", "Current: -200.000 A", "Alive: 5"},
		},
		{
			name:  "pack voltage",
			frame: canbus.MustFrame(0x210, []byte{0x30, 0x57, 0x05, 0x80, 0x00, 0x04, 0xC8, 0xA7}),
			want:  []string{"PACK_VOLTAGE (0x210)", "Voltage: 350.000 V", "Alive: 0"},
		},
		{
			name:  "control",
			frame: canbus.MustFrame(0x100, []byte{0xAA, 0, 0, 0}),
			want:  []string{"CONTROL_CONTACTORS (0x100) len=4", "Command: ALL_CLOSED (0xAA)"},
		},
		{
			name:  "setup disable",
			frame: canbus.MustFrame(0x300, []byte{0, 0, 0, 0}),
			want:  []string{"Setup: DISABLE"},
		},
		{
			name:  "short control",
			frame: canbus.MustFrame(0x100, []byte{0xAA}),
			want:  []string{"Data: AA"},
		},
		{
			name:  "unknown",
			frame: canbus.MustFrame(0x7E0, []byte{0x01, 0x02}),
			want:  []string{"UNKNOWN (0x7E0) len=2", "Data: 01 02"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatFrame(tt.frame, at)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("FormatFrame() missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestValidator_AliveCounter(t *testing.T) {
	v := NewValidator()
	frame := func(alive byte) canbus.Frame {
		return canbus.MustFrame(0x220, []byte{0, 0, 0, 0x80, 0x01, alive<<4 | 0x1, 0xC6, 0xF0})
	}

	// A full cycle 0..E then back to 0 is clean
	for i := 0; i < 32; i++ {
		alive := byte(i % 15)
		if errs := v.ValidateFrame(frame(alive)); len(errs) != 0 {
			t.Fatalf("step %d (alive %d): unexpected errors %v", i, alive, errs)
		}
	}

	v = NewValidator()
	v.ValidateFrame(frame(3))
	errs := v.ValidateFrame(frame(5))
	if len(errs) != 1 || errs[0].Type != ANOMALY_ALIVE_GAP {
		t.Fatalf("gap: errors = %v", errs)
	}
	if errs[0].Details["expected"] != 4 {
		t.Errorf("expected detail = %v, want 4", errs[0].Details["expected"])
	}

	errs = v.ValidateFrame(frame(0xF))
	found := false
	for _, e := range errs {
		if e.Type == ANOMALY_ALIVE_RESERVED {
			found = true
		}
	}
	if !found {
		t.Errorf("reserved value not reported: %v", errs)
	}

	// Counters are tracked per identifier
	v = NewValidator()
	v.ValidateFrame(canbus.MustFrame(0x200, []byte{0, 0, 0, 0, 0, 0x71, 0, 0}))
	if errs := v.ValidateFrame(frame(0)); len(errs) != 0 {
		t.Errorf("first 0x220 frame compared against 0x200: %v", errs)
	}
}

func TestValidator_Commands(t *testing.T) {
	tests := []struct {
		name  string
		frame canbus.Frame
		want  []AnomalyType
	}{
		{"known command", canbus.MustFrame(0x100, []byte{0xA6, 0, 0, 0}), nil},
		{"unknown command", canbus.MustFrame(0x100, []byte{0x55, 0, 0, 0}), []AnomalyType{ANOMALY_UNKNOWN_COMMAND}},
		{"short command", canbus.MustFrame(0x100, []byte{0xA6}), []AnomalyType{ANOMALY_LENGTH_MISMATCH}},
		{"setup", canbus.MustFrame(0x300, []byte{0xFF, 0xFE, 0xFF, 0xFF}), nil},
		{"locked setup", canbus.MustFrame(0x300, []byte{0, 0, 0, 0}), []AnomalyType{ANOMALY_SETUP_LOCKED}},
		{"near miss setup", canbus.MustFrame(0x300, []byte{0xFF, 0xFF, 0xFF, 0xFF}), []AnomalyType{ANOMALY_SETUP_LOCKED}},
		{"long setup", canbus.MustFrame(0x300, []byte{0xFF, 0xFE, 0xFF, 0xFF, 0}), []AnomalyType{ANOMALY_LENGTH_MISMATCH}},
		{"short telemetry", canbus.MustFrame(0x210, []byte{0, 0, 0}), []AnomalyType{ANOMALY_LENGTH_MISMATCH}},
		{"other traffic", canbus.MustFrame(0x7E0, nil), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := NewValidator().ValidateFrame(tt.frame)
			if len(errs) != len(tt.want) {
				t.Fatalf("errors = %v, want types %v", errs, tt.want)
			}
			for i := range errs {
				if errs[i].Type != tt.want[i] {
					t.Errorf("error %d type = %d, want %d", i, errs[i].Type, tt.want[i])
				}
			}
		})
	}
}

func TestStatistics(t *testing.T) {
	s := NewStatistics()
	s.Update(canbus.MustFrame(0x200, make([]byte, 8)), nil)
	s.Update(canbus.MustFrame(0x100, []byte{0x55, 0, 0, 0}), []ValidationError{{Type: ANOMALY_UNKNOWN_COMMAND}})
	s.Update(canbus.MustFrame(0x7E0, nil), nil)
	s.Update(canbus.MustFrame(0x300, []byte{0, 0, 0, 0}), []ValidationError{{Type: ANOMALY_SETUP_LOCKED}})

	if s.TotalFrames != 4 || s.ValidFrames != 2 || s.TelemetryFrames != 1 || s.CommandFrames != 2 || s.OtherFrames != 1 {
		t.Errorf("counters = %+v", s)
	}
	if s.SetupLocked != 1 {
		t.Errorf("SetupLocked = %d, want 1", s.SetupLocked)
	}
	if s.TotalErrors() != 2 {
		t.Errorf("TotalErrors() = %d, want 2", s.TotalErrors())
	}
	for _, want := range []string{"Unknown commands: 1", "Locked setup frames: 1"} {
		if !strings.Contains(s.String(), want) {
			t.Errorf("String() missing %q:\n%s", want, s.String())
		}
	}
}
