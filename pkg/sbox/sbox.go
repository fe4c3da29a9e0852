// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sbox simulates the CAN behavior of a high-voltage contactor box for
// an EV battery pack. It tracks the contactor state commanded by a vehicle
// controller, synthesizes the resulting voltages, and produces the periodic
// telemetry frames a real box would transmit.
package sbox

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Thermoquad/sboxsim/pkg/canbus"
)

// SourceParameters are the operator-controlled pack values
type SourceParameters struct {
	Voltage float64 // V
	Current float64 // A
}

// DefaultSource is the power-on source state
var DefaultSource = SourceParameters{Voltage: 350, Current: 0}

// Options configure an SBox
type Options struct {
	Precharge PrechargeCircuit
	Source    SourceParameters
	Logger    *slog.Logger

	// Clock returns the current time; defaults to time.Now
	Clock func() time.Time
}

// Snapshot is a consistent view of the SBox for display
type Snapshot struct {
	Source            SourceParameters
	Contactors        ContactorState
	OutputVoltage     float64
	MessagesPerSecond int
	Stats             StatisticsSnapshot
}

// SBox is the shared handle between the receive task (which writes contactor
// state), the transmit tasks (which read it through the telemetry hooks) and
// the operator interface. All state is guarded by one lock so a reader never
// sees a partially applied command.
type SBox struct {
	mu         sync.RWMutex
	source     SourceParameters
	contactors *ContactorStateMachine
	rate       MessageRate
	rxOverlap  map[uint32]bool

	voltage VoltageModel
	frames  *FrameRegistry
	stats   Statistics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an SBox transmitting the given frame definitions. Two
// definitions with the same identifier fail with ErrDuplicateIdentifier.
func New(opts Options, defs ...FrameDefinition) (*SBox, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Precharge == (PrechargeCircuit{}) {
		opts.Precharge = DefaultPrecharge
	}

	s := &SBox{
		source:     opts.Source,
		contactors: NewContactorStateMachine(),
		rxOverlap:  make(map[uint32]bool),
		voltage:    NewVoltageModel(opts.Precharge),
		frames:     NewFrameRegistry(),
		logger:     opts.Logger,
		now:        opts.Clock,
	}

	for _, def := range defs {
		if err := s.frames.Register(def.Build(s)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Frames returns the registry of transmitted frames
func (s *SBox) Frames() *FrameRegistry {
	return s.frames
}

// Stats returns the live traffic counters
func (s *SBox) Stats() *Statistics {
	return &s.stats
}

// Logger returns the diagnostic logger
func (s *SBox) Logger() *slog.Logger {
	return s.logger
}

// Source returns the operator-controlled pack values
func (s *SBox) Source() SourceParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// SetVoltage sets the nominal pack voltage
func (s *SBox) SetVoltage(v float64) {
	s.mu.Lock()
	s.source.Voltage = v
	s.mu.Unlock()
	s.logger.Info("voltage changed", "volts", v)
}

// SetCurrent sets the shunt current
func (s *SBox) SetCurrent(a float64) {
	s.mu.Lock()
	s.source.Current = a
	s.mu.Unlock()
	s.logger.Info("current changed", "amps", a)
}

// Contactors returns the current contactor state
func (s *SBox) Contactors() ContactorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contactors.State()
}

// OutputVoltage returns the synthesized post-contactor voltage
func (s *SBox) OutputVoltage() float64 {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voltage.OutputVoltage(s.source.Voltage, s.contactors.State(), now)
}

// MessagesPerSecond returns the inbound frame count of the last full second
func (s *SBox) MessagesPerSecond() int {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate.PerSecond(now)
}

// Snapshot returns a consistent copy of the displayed state
func (s *SBox) Snapshot() Snapshot {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.contactors.State()
	return Snapshot{
		Source:            s.source,
		Contactors:        state,
		OutputVoltage:     s.voltage.OutputVoltage(s.source.Voltage, state, now),
		MessagesPerSecond: s.rate.PerSecond(now),
		Stats:             s.stats.Snapshot(),
	}
}

// SetFrameEnabled toggles transmission of a registered frame
func (s *SBox) SetFrameEnabled(id uint32, enabled bool) error {
	f, ok := s.frames.Get(id)
	if !ok {
		return fmt.Errorf("no transmitted frame with ID 0x%03X", id)
	}
	f.SetEnabled(enabled)
	s.logger.Info("frame toggled", "id", fmt.Sprintf("0x%03X", id), "enabled", enabled)
	return nil
}

// HandleFrame applies one inbound frame. Malformed and unknown commands
// leave the box in a safe state and never fail.
func (s *SBox) HandleFrame(f canbus.Frame) {
	now := s.now()
	s.stats.RxFrames.Add(1)

	s.mu.Lock()
	s.rate.Observe(now)
	warnOverlap := false
	if _, tx := s.frames.Get(f.ID); tx && !s.rxOverlap[f.ID] {
		s.rxOverlap[f.ID] = true
		warnOverlap = true
	}

	var applied bool
	var err error
	switch f.ID {
	case ControlContactorsID:
		s.stats.ControlFrames.Add(1)
		applied, err = s.contactors.HandleControl(f.Payload(), now)
	case SetupContactorsID:
		s.stats.SetupFrames.Add(1)
		applied = s.contactors.HandleSetup(f.Payload())
	default:
		applied = true
	}
	s.mu.Unlock()

	if warnOverlap {
		s.logger.Warn("frame ID appears in both TX and RX", "id", fmt.Sprintf("0x%03X", f.ID))
	}
	if !applied {
		s.stats.IgnoredCommands.Add(1)
	}
	if errors.Is(err, ErrUnrecognizedCommand) {
		s.stats.UnknownCommands.Add(1)
		s.logger.Warn("unrecognized ContactorControl state, opening contactors",
			"command", fmt.Sprintf("0x%02X", f.Payload()[0]))
	}
}
