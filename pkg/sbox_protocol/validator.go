// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox_protocol

import (
	"bytes"
	"fmt"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
	"github.com/Thermoquad/sboxsim/pkg/sbox"
)

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	ANOMALY_LENGTH_MISMATCH AnomalyType = iota
	ANOMALY_ALIVE_GAP
	ANOMALY_ALIVE_RESERVED
	ANOMALY_UNKNOWN_COMMAND
	ANOMALY_SETUP_LOCKED
)

// aliveReserved is the counter value telemetry frames never carry
const aliveReserved = 0xF

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Validator checks frames against the SBox protocol. It remembers the last
// alive counter per telemetry frame, so one Validator must see the frames
// in bus order.
type Validator struct {
	lastAlive map[uint32]int
}

// NewValidator creates a validator with no counter history
func NewValidator() *Validator {
	return &Validator{lastAlive: make(map[uint32]int)}
}

// ValidateFrame validates frame structure and detects anomalies
// Returns a slice of validation errors (empty if frame is valid)
func (v *Validator) ValidateFrame(f canbus.Frame) []ValidationError {
	switch f.ID {
	case sbox.CurrentID, sbox.PackVoltageID, sbox.PostContactorVoltageID:
		return v.validateTelemetry(f)
	case sbox.ControlContactorsID:
		return validateControl(f)
	case sbox.SetupContactorsID:
		return validateSetup(f)
	}
	return nil
}

// validateTelemetry checks length and alive counter progression
func (v *Validator) validateTelemetry(f canbus.Frame) []ValidationError {
	if f.Len != 8 {
		return []ValidationError{{
			Type:    ANOMALY_LENGTH_MISMATCH,
			Message: fmt.Sprintf("%s payload is %d bytes (expected 8)", FormatFrameName(f.ID), f.Len),
			Details: map[string]interface{}{"length": int(f.Len), "expected": 8},
		}}
	}

	errors := []ValidationError{}
	alive := aliveCounter(f.Payload())

	if alive == aliveReserved {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_ALIVE_RESERVED,
			Message: fmt.Sprintf("%s alive counter carries reserved value 0xF", FormatFrameName(f.ID)),
			Details: map[string]interface{}{"alive": alive},
		})
	}

	if last, seen := v.lastAlive[f.ID]; seen {
		expected := nextAlive(last)
		if alive != expected {
			errors = append(errors, ValidationError{
				Type:    ANOMALY_ALIVE_GAP,
				Message: fmt.Sprintf("%s alive counter jumped %d -> %d", FormatFrameName(f.ID), last, alive),
				Details: map[string]interface{}{"previous": last, "alive": alive, "expected": expected},
			})
		}
	}
	v.lastAlive[f.ID] = alive

	return errors
}

// nextAlive mirrors the transmitter's counter: +1 modulo 16, skipping 0xF
func nextAlive(v int) int {
	n := (v + 1) & 0xF
	if n == aliveReserved {
		n = (n + 1) & 0xF
	}
	return n
}

// validateControl checks a 0x100 contactor command
func validateControl(f canbus.Frame) []ValidationError {
	if f.Len != 4 {
		return []ValidationError{{
			Type:    ANOMALY_LENGTH_MISMATCH,
			Message: fmt.Sprintf("Contactor command is %d bytes (expected 4), ignored", f.Len),
			Details: map[string]interface{}{"length": int(f.Len), "expected": 4},
		}}
	}
	cmd := f.Data[0]
	if FormatCommand(cmd) == "UNRECOGNIZED" {
		return []ValidationError{{
			Type:    ANOMALY_UNKNOWN_COMMAND,
			Message: fmt.Sprintf("Unrecognized contactor command 0x%02X, contactors will open", cmd),
			Details: map[string]interface{}{"command": cmd},
		}}
	}
	return nil
}

// validateSetup checks a 0x300 setup frame
func validateSetup(f canbus.Frame) []ValidationError {
	if f.Len != 4 {
		return []ValidationError{{
			Type:    ANOMALY_LENGTH_MISMATCH,
			Message: fmt.Sprintf("Setup frame is %d bytes (expected 4), ignored", f.Len),
			Details: map[string]interface{}{"length": int(f.Len), "expected": 4},
		}}
	}
	if !bytes.Equal(f.Payload(), SetupUnlockPattern) {
		return []ValidationError{{
			Type:    ANOMALY_SETUP_LOCKED,
			Message: fmt.Sprintf("Setup frame % X is not the unlock pattern, contactor box locked", f.Payload()),
			Details: map[string]interface{}{"payload": f.Payload()},
		}}
	}
	return nil
}
