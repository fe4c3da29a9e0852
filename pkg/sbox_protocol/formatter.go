// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sbox_protocol decodes and checks SBox bus traffic for display:
// telemetry values, alive counters and contactor commands.
package sbox_protocol

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
	"github.com/Thermoquad/sboxsim/pkg/sbox"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f canbus.Frame, at time.Time) string {
	timestamp := at.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%03X) len=%d\n", timestamp, FormatFrameName(f.ID), f.ID, f.Len)
	if f.Len > 0 {
		result += FormatPayload(f)
	}
	return result
}

// FormatFrameName returns the human-readable name for an identifier
func FormatFrameName(id uint32) string {
	switch id {
	// Commands
	case sbox.ControlContactorsID:
		return "CONTROL_CONTACTORS"
	case sbox.SetupContactorsID:
		return "SETUP_CONTACTORS"

	// Telemetry
	case sbox.CurrentID:
		return "CURRENT"
	case sbox.PackVoltageID:
		return "PACK_VOLTAGE"
	case sbox.PostContactorVoltageID:
		return "POST_CONTACTOR_VOLTAGE"

	default:
		return "UNKNOWN"
	}
}

// FormatCommand returns the human-readable name for a contactor command
func FormatCommand(cmd byte) string {
	switch cmd {
	case sbox.CmdAllOpen:
		return "ALL_OPEN"
	case sbox.CmdPrecharge:
		return "PRECHARGE"
	case sbox.CmdAllClosed:
		return "ALL_CLOSED"
	case sbox.CmdPrechargeOnly:
		return "PRECHARGE_ONLY"
	case sbox.CmdPositiveOnly:
		return "POSITIVE_ONLY"
	case sbox.CmdNegativePchOnly:
		return "NEGATIVE_PRECHARGE"
	default:
		return "UNRECOGNIZED"
	}
}

// FormatPayload formats the payload of a known frame, or dumps it as hex
func FormatPayload(f canbus.Frame) string {
	var s strings.Builder
	p := f.Payload()

	switch f.ID {
	case sbox.CurrentID:
		if len(p) >= 6 {
			fmt.Fprintf(&s, "  Current: %.3f A\n", float64(sbox.Int24(p))/1000)
			fmt.Fprintf(&s, "  Alive: %d\n", aliveCounter(p))
			return s.String()
		}

	case sbox.PackVoltageID, sbox.PostContactorVoltageID:
		if len(p) >= 6 {
			fmt.Fprintf(&s, "  Voltage: %.3f V\n", float64(sbox.Int24(p))/1000)
			fmt.Fprintf(&s, "  Alive: %d\n", aliveCounter(p))
			return s.String()
		}

	case sbox.ControlContactorsID:
		if len(p) == 4 {
			fmt.Fprintf(&s, "  Command: %s (0x%02X)\n", FormatCommand(p[0]), p[0])
			return s.String()
		}

	case sbox.SetupContactorsID:
		if len(p) == 4 {
			if bytes.Equal(p, SetupUnlockPattern) {
				s.WriteString("  Setup: ENABLE\n")
			} else {
				s.WriteString("  Setup: DISABLE\n")
			}
			return s.String()
		}
	}

	fmt.Fprintf(&s, "  Data: % X\n", p)
	return s.String()
}

// SetupUnlockPattern is the 0x300 payload that enables contactor actuation
var SetupUnlockPattern = []byte{0xFF, 0xFE, 0xFF, 0xFF}

// aliveCounter extracts the telemetry alive counter (high nibble of byte 5)
func aliveCounter(p []byte) int {
	return int(p[5] >> 4)
}
