// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import (
	"math"
	"testing"
	"time"
)

func TestPrechargeCircuit_TimeConstant(t *testing.T) {
	got := DefaultPrecharge.TimeConstant()
	if math.Abs(got-0.2058) > 1e-9 {
		t.Errorf("TimeConstant() = %v, want 0.2058", got)
	}
}

func TestVoltageModel_OutputVoltage(t *testing.T) {
	now := time.Unix(2000, 0)
	v := NewVoltageModel(DefaultPrecharge)
	rc := time.Duration(DefaultPrecharge.TimeConstant() * float64(time.Second))

	tests := []struct {
		name  string
		state ContactorState
		want  float64
	}{
		{
			name:  "setup locked",
			state: ContactorState{PosClosed: true, NegClosed: true, PchClosed: true},
			want:  0,
		},
		{
			name:  "all open",
			state: ContactorState{SetupEnabled: true},
			want:  0,
		},
		{
			name:  "all closed",
			state: ContactorState{SetupEnabled: true, PosClosed: true, NegClosed: true, PchClosed: true},
			want:  350,
		},
		{
			name:  "positive only",
			state: ContactorState{SetupEnabled: true, PosClosed: true},
			want:  0,
		},
		{
			name:  "precharge only",
			state: ContactorState{SetupEnabled: true, PchClosed: true},
			want:  0,
		},
		{
			name:  "negative and precharge without timer",
			state: ContactorState{SetupEnabled: true, NegClosed: true, PchClosed: true},
			want:  350,
		},
		{
			name:  "positive and negative",
			state: ContactorState{SetupEnabled: true, PosClosed: true, NegClosed: true},
			want:  350,
		},
		{
			name:  "one time constant into precharge",
			state: ContactorState{SetupEnabled: true, NegClosed: true, PchClosed: true, PrechargeStart: now.Add(-rc)},
			want:  350 * (1 - math.Exp(-1)),
		},
		{
			name:  "precharge timer set but setup locked",
			state: ContactorState{NegClosed: true, PchClosed: true, PrechargeStart: now.Add(-rc)},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.OutputVoltage(350, tt.state, now)
			if math.Abs(got-tt.want) > 1e-3 {
				t.Errorf("OutputVoltage() = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}

func TestVoltageModel_PrechargeCurve(t *testing.T) {
	v := NewVoltageModel(DefaultPrecharge)

	if got := v.PrechargeVoltage(350, 0); got != 0 {
		t.Errorf("PrechargeVoltage at t=0 = %v, want 0", got)
	}
	if got := v.PrechargeVoltage(350, -time.Second); got != 0 {
		t.Errorf("PrechargeVoltage before start = %v, want 0", got)
	}

	prev := 0.0
	for ms := 1; ms <= 3000; ms += 7 {
		got := v.PrechargeVoltage(350, time.Duration(ms)*time.Millisecond)
		if got < prev {
			t.Fatalf("curve decreased at %d ms: %v < %v", ms, got, prev)
		}
		if got > 350 {
			t.Fatalf("curve exceeded nominal at %d ms: %v", ms, got)
		}
		prev = got
	}
	// Five time constants is within 1% of nominal
	if got := v.PrechargeVoltage(350, 1030*time.Millisecond); got < 350*0.99 {
		t.Errorf("PrechargeVoltage after 5 RC = %v, want >= %v", got, 350*0.99)
	}
}

func TestVoltageModel_ZeroTimeConstant(t *testing.T) {
	v := NewVoltageModel(PrechargeCircuit{ResistanceOhms: 0, CapacitanceFarads: 686e-6})
	if got := v.PrechargeVoltage(400, time.Millisecond); got != 400 {
		t.Errorf("PrechargeVoltage with RC=0 = %v, want 400", got)
	}
}
