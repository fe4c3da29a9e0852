// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox_protocol

import (
	"fmt"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	TelemetryFrames  uint64
	CommandFrames    uint64
	OtherFrames      uint64
	LengthMismatches uint64
	AliveGaps        uint64
	AliveReserved    uint64
	UnknownCommands  uint64
	SetupLocked      uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a frame and its errors
func (s *Statistics) Update(f canbus.Frame, validationErrors []ValidationError) {
	s.TotalFrames++

	switch FormatFrameName(f.ID) {
	case "CURRENT", "PACK_VOLTAGE", "POST_CONTACTOR_VOLTAGE":
		s.TelemetryFrames++
	case "CONTROL_CONTACTORS", "SETUP_CONTACTORS":
		s.CommandFrames++
	default:
		s.OtherFrames++
	}

	if len(validationErrors) == 0 {
		s.ValidFrames++
	}
	for _, err := range validationErrors {
		switch err.Type {
		case ANOMALY_LENGTH_MISMATCH:
			s.LengthMismatches++
		case ANOMALY_ALIVE_GAP:
			s.AliveGaps++
		case ANOMALY_ALIVE_RESERVED:
			s.AliveReserved++
		case ANOMALY_UNKNOWN_COMMAND:
			s.UnknownCommands++
		case ANOMALY_SETUP_LOCKED:
			s.SetupLocked++
		}
	}

	s.LastUpdateTime = time.Now()
	s.calculateRates()
}

// calculateRates calculates frame and error rates
func (s *Statistics) calculateRates() {
	elapsed := s.LastUpdateTime.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.TotalErrors()) / elapsed
	}
}

// TotalErrors returns the total number of detected anomalies
func (s *Statistics) TotalErrors() uint64 {
	return s.LengthMismatches + s.AliveGaps + s.AliveReserved + s.UnknownCommands + s.SetupLocked
}

// SuccessRate returns the percentage of frames without anomalies
func (s *Statistics) SuccessRate() float64 {
	if s.TotalFrames == 0 {
		return 0
	}
	return float64(s.ValidFrames) / float64(s.TotalFrames) * 100
}

// String formats statistics as a human-readable summary
func (s *Statistics) String() string {
	elapsed := time.Since(s.StartTime)

	result := "=== Statistics ===\n"
	result += fmt.Sprintf("Runtime: %s\n", elapsed.Round(time.Second))
	result += fmt.Sprintf("Total frames: %d (%.1f/s)\n", s.TotalFrames, s.FrameRate)
	result += fmt.Sprintf("  Telemetry: %d  Commands: %d  Other: %d\n", s.TelemetryFrames, s.CommandFrames, s.OtherFrames)
	result += fmt.Sprintf("Valid frames: %d (%.2f%%)\n", s.ValidFrames, s.SuccessRate())
	result += fmt.Sprintf("Errors: %d (%.2f/s)\n", s.TotalErrors(), s.ErrorRate)
	if s.TotalErrors() > 0 {
		result += fmt.Sprintf("  Length mismatches: %d\n", s.LengthMismatches)
		result += fmt.Sprintf("  Alive counter gaps: %d\n", s.AliveGaps)
		result += fmt.Sprintf("  Reserved alive values: %d\n", s.AliveReserved)
		result += fmt.Sprintf("  Unknown commands: %d\n", s.UnknownCommands)
		result += fmt.Sprintf("  Locked setup frames: %d\n", s.SetupLocked)
	}
	return result
}
