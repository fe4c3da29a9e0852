// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

// Telemetry frame identifiers
const (
	CurrentID              = 0x200
	PackVoltageID          = 0x210
	PostContactorVoltageID = 0x220
)

// All telemetry frames carry a 4 bit alive counter in the high nibble of
// byte 5 that cycles 0..E, never F
const (
	telemetryRateHz  = 100
	aliveCounterByte = 5
	aliveCounterMask = 0xF0
	aliveCounterSkip = 0xF
)

// Telemetry is the state the telemetry update hooks read
type Telemetry interface {
	Source() SourceParameters
	OutputVoltage() float64
}

// FrameDefinition builds one periodic frame bound to the shared telemetry
// handle
type FrameDefinition struct {
	Name  string
	Build func(t Telemetry) *PeriodicFrame
}

// TelemetryFrames are the frames every SBox transmits
var TelemetryFrames = []FrameDefinition{
	{Name: "Current", Build: newCurrentFrame},
	{Name: "PackVoltage", Build: newPackVoltageFrame},
	{Name: "PostContactorVoltage", Build: newPostContactorVoltageFrame},
}

// newCurrentFrame reports the shunt current.
//
//	bits 0-23:  signed current in mA
//	bits 44-47: alive counter
func newCurrentFrame(t Telemetry) *PeriodicFrame {
	f := NewPeriodicFrame(CurrentID, "Current",
		[]byte{0x02, 0x00, 0x00, 0x80, 0x22, 0x01, 0xD9, 0x71}, telemetryRateHz)
	f.AddCounter(aliveCounterByte, aliveCounterMask, 1, aliveCounterSkip)
	f.OnUpdate(func(p []byte) {
		PutInt24(p, Milli(t.Source().Current))
	})
	return f
}

// newPackVoltageFrame reports the pack voltage ahead of the contactors.
//
//	bits 0-23:  signed voltage in mV
//	bits 44-47: alive counter
func newPackVoltageFrame(t Telemetry) *PeriodicFrame {
	f := NewPeriodicFrame(PackVoltageID, "PackVoltage",
		[]byte{0xF6, 0x09, 0x00, 0x80, 0x00, 0x04, 0xC8, 0xA7}, telemetryRateHz)
	f.AddCounter(aliveCounterByte, aliveCounterMask, 1, aliveCounterSkip)
	f.OnUpdate(func(p []byte) {
		PutInt24(p, Milli(t.Source().Voltage))
	})
	return f
}

// newPostContactorVoltageFrame reports the synthesized voltage after the
// contactors, including the precharge curve.
//
//	bits 0-23:  signed voltage in mV
//	bits 44-47: alive counter
func newPostContactorVoltageFrame(t Telemetry) *PeriodicFrame {
	f := NewPeriodicFrame(PostContactorVoltageID, "PostContactorVoltage",
		[]byte{0x23, 0x00, 0x00, 0x80, 0x01, 0x01, 0xC6, 0xF0}, telemetryRateHz)
	f.AddCounter(aliveCounterByte, aliveCounterMask, 1, aliveCounterSkip)
	f.OnUpdate(func(p []byte) {
		PutInt24(p, Milli(t.OutputVoltage()))
	})
	return f
}
