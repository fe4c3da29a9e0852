// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import (
	"math"
	"time"
)

// PrechargeCircuit describes the RC network charged through the precharge
// contactor
type PrechargeCircuit struct {
	ResistanceOhms    float64
	CapacitanceFarads float64
}

// DefaultPrecharge is a 300 ohm resistor into a Tesla Model 3 style inverter
// (550 + 68 + 68 uF)
var DefaultPrecharge = PrechargeCircuit{
	ResistanceOhms:    300,
	CapacitanceFarads: (550 + 68 + 68) * 1e-6,
}

// TimeConstant returns RC in seconds
func (c PrechargeCircuit) TimeConstant() float64 {
	return c.ResistanceOhms * c.CapacitanceFarads
}

// VoltageModel synthesizes the voltage seen after the contactors
type VoltageModel struct {
	rc float64
}

// NewVoltageModel creates a model for the given precharge circuit
func NewVoltageModel(c PrechargeCircuit) VoltageModel {
	return VoltageModel{rc: c.TimeConstant()}
}

// OutputVoltage returns the post-contactor voltage for a pack at nominal
// volts in contactor state s, observed at now
func (v VoltageModel) OutputVoltage(nominal float64, s ContactorState, now time.Time) float64 {
	switch {
	case !s.SetupEnabled:
		return 0
	case s.PrechargeActive():
		return v.PrechargeVoltage(nominal, now.Sub(s.PrechargeStart))
	case (s.PosClosed || s.PchClosed) && s.NegClosed:
		return nominal
	default:
		return 0
	}
}

// PrechargeVoltage follows the capacitor charging curve
// nominal * (1 - e^(-t/RC)) for an elapsed precharge time
func (v VoltageModel) PrechargeVoltage(nominal float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	if v.rc <= 0 {
		return nominal
	}
	return nominal * (1 - math.Exp(-elapsed.Seconds()/v.rc))
}
