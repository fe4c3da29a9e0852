// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbox

import "sync/atomic"

// Statistics tracks frame traffic. Counters are updated from the scheduler
// goroutines and read by the operator interface.
type Statistics struct {
	TxFrames        atomic.Uint64
	TxErrors        atomic.Uint64
	RxFrames        atomic.Uint64
	ControlFrames   atomic.Uint64
	SetupFrames     atomic.Uint64
	IgnoredCommands atomic.Uint64 // wrong length on a command channel
	UnknownCommands atomic.Uint64
}

// StatisticsSnapshot is a point-in-time copy of Statistics
type StatisticsSnapshot struct {
	TxFrames        uint64
	TxErrors        uint64
	RxFrames        uint64
	ControlFrames   uint64
	SetupFrames     uint64
	IgnoredCommands uint64
	UnknownCommands uint64
}

// Snapshot copies the counters
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		TxFrames:        s.TxFrames.Load(),
		TxErrors:        s.TxErrors.Load(),
		RxFrames:        s.RxFrames.Load(),
		ControlFrames:   s.ControlFrames.Load(),
		SetupFrames:     s.SetupFrames.Load(),
		IgnoredCommands: s.IgnoredCommands.Load(),
		UnknownCommands: s.UnknownCommands.Load(),
	}
}
